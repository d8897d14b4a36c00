package store

import (
	"fmt"
	"time"

	"github.com/mezonai/chainstore/block"
	"github.com/mezonai/chainstore/db"
	"github.com/mezonai/chainstore/errors"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/monitoring"
)

// Entry is a stored record together with the key it is stored under
type Entry struct {
	Hash  block.Digest
	Block *block.Block
}

// BlockStore is the content-addressed block store. Keys are the digest of the
// record's canonical serialization; ordered queries follow digest byte order.
type BlockStore interface {
	Insert(blocks []*block.Block) error
	Get(hashes []block.Digest) ([]*block.Block, error)
	Contains(hash block.Digest) (bool, error)
	GetFirst() (*Entry, error)
	GetLast() (*Entry, error)
	GetLt(hash block.Digest) (*Entry, error)
	GetGt(hash block.Digest) (*Entry, error)
	Close() error
}

// GenericBlockStore is a database-agnostic implementation that uses DatabaseProvider
type GenericBlockStore struct {
	provider   db.DatabaseProvider
	table      *db.Table
	txManager  *db.DBTxManager
	verifyKeys bool
}

// NewGenericBlockStore creates a new block store with the given provider.
// When verifyKeys is set, every entry returned by an ordered query is checked
// against its key.
func NewGenericBlockStore(provider db.DatabaseProvider, verifyKeys bool) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	table := db.NewTable(provider, PrefixBlock)
	return &GenericBlockStore{
		provider:   provider,
		table:      table,
		txManager:  db.NewDBTxManager(table),
		verifyKeys: verifyKeys,
	}, nil
}

// Insert writes all records in one atomic batch. Re-inserting a record writes
// the same key and value again.
func (s *GenericBlockStore) Insert(blocks []*block.Block) (err error) {
	defer s.observe(monitoring.OpInsert, time.Now(), &err)
	if len(blocks) == 0 {
		return nil
	}

	sizes := make([]int, 0, len(blocks))
	err = s.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		for i, b := range blocks {
			if b == nil {
				return errors.Codec("insert", fmt.Errorf("block %d is nil", i))
			}
			data, err := b.Serialize()
			if err != nil {
				return errors.Codec("insert", err)
			}
			hash := block.HashBytes(data)
			batch.Put(hash.Bytes(), data)
			sizes = append(sizes, len(data))
		}
		return nil
	})
	if err != nil {
		logx.Error("BLOCKSTORE", "Failed to insert", len(blocks), "blocks:", err)
		return errors.Storage("insert", err)
	}

	for _, size := range sizes {
		monitoring.RecordBlockSizeBytes(size)
	}
	monitoring.RecordBlocksInserted(len(blocks))
	logx.Debug("BLOCKSTORE", "Inserted", len(blocks), "blocks")
	return nil
}

// Get returns the records for hashes in input order; absent records are nil.
func (s *GenericBlockStore) Get(hashes []block.Digest) (out []*block.Block, err error) {
	defer s.observe(monitoring.OpGet, time.Now(), &err)

	out = make([]*block.Block, len(hashes))
	for i, hash := range hashes {
		data, err := s.table.Get(hash.Bytes())
		if err != nil {
			return nil, errors.Storage("get", fmt.Errorf("failed to get block %s: %w", hash, err))
		}
		if data == nil {
			continue
		}
		b, err := block.Decode(data)
		if err != nil {
			logx.Warn("BLOCKSTORE", "Corrupt block stored under", hash.String(), ":", err)
			return nil, errors.Codec("get", err)
		}
		out[i] = b
	}
	return out, nil
}

func (s *GenericBlockStore) Contains(hash block.Digest) (ok bool, err error) {
	defer s.observe(monitoring.OpContains, time.Now(), &err)

	ok, err = s.table.Has(hash.Bytes())
	if err != nil {
		return false, errors.Storage("contains", err)
	}
	return ok, nil
}

// GetFirst returns the entry with the smallest key, or nil when the store is empty.
func (s *GenericBlockStore) GetFirst() (e *Entry, err error) {
	defer s.observe(monitoring.OpFirst, time.Now(), &err)
	k, v, err := s.table.First()
	return s.entry("first", k, v, err)
}

// GetLast returns the entry with the largest key, or nil when the store is empty.
func (s *GenericBlockStore) GetLast() (e *Entry, err error) {
	defer s.observe(monitoring.OpLast, time.Now(), &err)
	k, v, err := s.table.Last()
	return s.entry("last", k, v, err)
}

// GetLt returns the entry with the largest key strictly below hash.
// hash does not need to be stored.
func (s *GenericBlockStore) GetLt(hash block.Digest) (e *Entry, err error) {
	defer s.observe(monitoring.OpLt, time.Now(), &err)
	k, v, err := s.table.Lower(hash.Bytes())
	return s.entry("lt", k, v, err)
}

// GetGt returns the entry with the smallest key strictly above hash.
func (s *GenericBlockStore) GetGt(hash block.Digest) (e *Entry, err error) {
	defer s.observe(monitoring.OpGt, time.Now(), &err)
	k, v, err := s.table.Higher(hash.Bytes())
	return s.entry("gt", k, v, err)
}

// Close closes the underlying database provider
func (s *GenericBlockStore) Close() error {
	if err := s.provider.Close(); err != nil {
		logx.Error("BLOCKSTORE", "Failed to close provider:", err)
		return errors.Storage("close", err)
	}
	return nil
}

func (s *GenericBlockStore) entry(op string, key, value []byte, err error) (*Entry, error) {
	if err != nil {
		return nil, errors.Storage(op, err)
	}
	if key == nil {
		return nil, nil
	}
	hash, err := block.DigestFromBytes(key)
	if err != nil {
		return nil, errors.Codec(op, fmt.Errorf("malformed block key: %w", err))
	}
	b, err := block.Decode(value)
	if err != nil {
		logx.Warn("BLOCKSTORE", "Corrupt block stored under", hash.String(), ":", err)
		return nil, errors.Codec(op, err)
	}
	if s.verifyKeys {
		mustMatchKey(hash, b)
	}
	return &Entry{Hash: hash, Block: b}, nil
}

// mustMatchKey panics when a decoded record does not hash to its key. Only
// records written by Insert are ever stored, so a mismatch is a bug.
func mustMatchKey(key block.Digest, b *block.Block) {
	got, err := b.Hash()
	if err != nil {
		panic(fmt.Sprintf("blockstore: re-serialize block %s: %v", key, err))
	}
	if got != key {
		panic(fmt.Sprintf("blockstore: block stored under %s hashes to %s", key, got))
	}
}

func (s *GenericBlockStore) observe(op monitoring.StoreOp, started time.Time, err *error) {
	monitoring.RecordStoreOp(op, started)
	if *err == nil {
		return
	}
	kind := "unknown"
	var se *errors.StoreError
	if errors.As(*err, &se) {
		kind = string(se.Kind)
	}
	monitoring.RecordStoreError(op, kind)
}
