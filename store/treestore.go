package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/mezonai/chainstore/db"
	"github.com/mezonai/chainstore/errors"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/merkle"
	"github.com/mezonai/chainstore/serial"
)

const treeEnvelopeVersion = 1

var ErrSnapshotNotFound = errors.New("tree snapshot not found")

// treeEnvelope is the stored form of a snapshot. Depth travels with the
// encoded tree so a snapshot cannot be opened under different parameters.
type treeEnvelope struct {
	Version uint64
	Depth   uint8
	Tree    []byte
}

// TreeStore persists encoded commitment trees by name
type TreeStore struct {
	table *db.Table
}

func NewTreeStore(provider db.DatabaseProvider) *TreeStore {
	return &TreeStore{table: db.NewTable(provider, PrefixTree)}
}

// Save encodes t and stores it under name, replacing any previous snapshot.
func (s *TreeStore) Save(name string, t *merkle.Tree) error {
	_, err := s.save(name, t)
	return err
}

func (s *TreeStore) save(name string, t *merkle.Tree) (int, error) {
	data, err := rlp.EncodeToBytes(&treeEnvelope{
		Version: treeEnvelopeVersion,
		Depth:   t.Depth(),
		Tree:    serial.EncodeTree(t),
	})
	if err != nil {
		return 0, errors.Codec("save tree", err)
	}
	if err := s.table.Put([]byte(name), data); err != nil {
		logx.Error("TREESTORE", "Failed to save tree", name, ":", err)
		return 0, errors.Storage("save tree", err)
	}
	logx.Debug("TREESTORE", "Saved tree", name, "size", len(data), "bytes")
	return len(data), nil
}

// Load decodes the snapshot stored under name at the depth it was saved with.
func (s *TreeStore) Load(name string, hasher merkle.Hasher) (*merkle.Tree, error) {
	env, err := s.envelope(name)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(env, hasher)
}

// LoadDepth is Load for callers with fixed tree parameters; a snapshot saved
// with a different depth is a codec error.
func (s *TreeStore) LoadDepth(name string, depth uint8, hasher merkle.Hasher) (*merkle.Tree, error) {
	env, err := s.envelope(name)
	if err != nil {
		return nil, err
	}
	if env.Depth != depth {
		return nil, errors.Codec("load tree", fmt.Errorf("snapshot %q has depth %d, want %d", name, env.Depth, depth))
	}
	return decodeEnvelope(env, hasher)
}

func (s *TreeStore) Delete(name string) error {
	if err := s.table.Delete([]byte(name)); err != nil {
		return errors.Storage("delete tree", err)
	}
	return nil
}

// Names lists stored snapshot names in key order.
func (s *TreeStore) Names() ([]string, error) {
	var names []string
	err := s.table.Iterate(func(key, _ []byte) bool {
		names = append(names, string(key))
		return true
	})
	if err != nil {
		return nil, errors.Storage("list trees", err)
	}
	return names, nil
}

func (s *TreeStore) envelope(name string) (*treeEnvelope, error) {
	data, err := s.table.Get([]byte(name))
	if err != nil {
		return nil, errors.Storage("load tree", err)
	}
	if data == nil {
		return nil, ErrSnapshotNotFound
	}
	var env treeEnvelope
	if err := rlp.DecodeBytes(data, &env); err != nil {
		return nil, errors.Codec("load tree", err)
	}
	if env.Version != treeEnvelopeVersion {
		return nil, errors.Codec("load tree", fmt.Errorf("%w: %d", errors.ErrUnsupportedVersion, env.Version))
	}
	if env.Depth == 0 || env.Depth > merkle.MaxDepth {
		return nil, errors.Codec("load tree", fmt.Errorf("invalid depth %d", env.Depth))
	}
	return &env, nil
}

func decodeEnvelope(env *treeEnvelope, hasher merkle.Hasher) (*merkle.Tree, error) {
	t, err := serial.DecodeTree(env.Tree, env.Depth, hasher)
	if err != nil {
		logx.Warn("TREESTORE", "Failed to decode tree snapshot:", err)
		return nil, err
	}
	return t, nil
}
