package serial

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/mezonai/chainstore/errors"
	"github.com/mezonai/chainstore/merkle"
)

// Leaf discriminants
const (
	leafLeft  uint64 = 0
	leafRight uint64 = 1
)

func writeLeaf(w rlp.EncoderBuffer, l merkle.Leaf) {
	idx := w.List()
	switch l.Kind() {
	case merkle.LeafRight:
		w.WriteUint64(leafRight)
	default:
		w.WriteUint64(leafLeft)
	}
	for _, v := range l.Values() {
		writeNode(w, v)
	}
	w.ListEnd(idx)
}

func readLeaf(s *rlp.Stream) (merkle.Leaf, error) {
	if _, err := s.List(); err != nil {
		return merkle.Leaf{}, err
	}
	tag, err := s.Uint64()
	if err != nil {
		return merkle.Leaf{}, err
	}
	var leaf merkle.Leaf
	switch tag {
	case leafLeft:
		a, err := readNode(s)
		if err != nil {
			return leaf, err
		}
		leaf = merkle.NewLeftLeaf(a)
	case leafRight:
		a, err := readNode(s)
		if err != nil {
			return leaf, err
		}
		b, err := readNode(s)
		if err != nil {
			return leaf, err
		}
		leaf = merkle.NewRightLeaf(a, b)
	default:
		return leaf, fmt.Errorf("%w: leaf tag %d", errors.ErrInvalidDiscriminant, tag)
	}
	return leaf, s.ListEnd()
}

func writeFrontier(w rlp.EncoderBuffer, f *merkle.Frontier) {
	idx := w.List()
	w.WriteUint64(uint64(f.Position()))
	writeLeaf(w, f.Leaf())
	writeNodes(w, f.Ommers())
	w.ListEnd(idx)
}

func readFrontier(s *rlp.Stream) (*merkle.Frontier, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	pos, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	leaf, err := readLeaf(s)
	if err != nil {
		return nil, err
	}
	ommers, err := readNodes(s)
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	f, err := merkle.NewFrontierFromParts(merkle.Position(pos), leaf, ommers)
	if err != nil {
		return nil, errors.Reconstruction("frontier", err)
	}
	return f, nil
}

func writeFragment(w rlp.EncoderBuffer, a *merkle.AuthFragment) {
	idx := w.List()
	w.WriteUint64(uint64(a.Position()))
	w.WriteUint64(uint64(a.AltitudesObserved()))
	writeNodes(w, a.Values())
	w.ListEnd(idx)
}

func readFragment(s *rlp.Stream) (*merkle.AuthFragment, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	pos, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	observed, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	values, err := readNodes(s)
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	a, err := merkle.NewAuthFragmentFromParts(merkle.Position(pos), observed, values)
	if err != nil {
		return nil, errors.Reconstruction("auth fragment", err)
	}
	return a, nil
}

func writeBridge(w rlp.EncoderBuffer, b *merkle.Bridge) {
	idx := w.List()
	prior, hasPrior := b.PriorPosition()
	w.WriteBool(hasPrior)
	if hasPrior {
		w.WriteUint64(uint64(prior))
	}
	frags := w.List()
	for _, a := range b.Fragments() {
		writeFragment(w, a)
	}
	w.ListEnd(frags)
	writeFrontier(w, b.Frontier())
	w.ListEnd(idx)
}

func readBridge(s *rlp.Stream) (*merkle.Bridge, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	hasPrior, err := s.Bool()
	if err != nil {
		return nil, err
	}
	var prior uint64
	if hasPrior {
		if prior, err = s.Uint64(); err != nil {
			return nil, err
		}
	}
	frags, err := readList(s, readFragment)
	if err != nil {
		return nil, err
	}
	frontier, err := readFrontier(s)
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	b, err := merkle.NewBridgeFromParts(merkle.Position(prior), hasPrior, frags, frontier)
	if err != nil {
		return nil, errors.Reconstruction("bridge", err)
	}
	return b, nil
}

func writeCheckpoint(w rlp.EncoderBuffer, c *merkle.Checkpoint) {
	idx := w.List()
	w.WriteUint64(uint64(c.BridgesLen()))
	w.WriteBool(c.IsWitnessed())
	writePositions(w, c.Witnessed())
	writePositions(w, c.Forgotten())
	w.ListEnd(idx)
}

func readCheckpoint(s *rlp.Stream) (*merkle.Checkpoint, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	bridgesLen, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	isWitnessed, err := s.Bool()
	if err != nil {
		return nil, err
	}
	witnessed, err := readPositions(s)
	if err != nil {
		return nil, err
	}
	forgotten, err := readPositions(s)
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	c, err := merkle.NewCheckpointFromParts(bridgesLen, isWitnessed, witnessed, forgotten)
	if err != nil {
		return nil, errors.Reconstruction("checkpoint", err)
	}
	return c, nil
}

func writeTree(w rlp.EncoderBuffer, t *merkle.Tree) {
	idx := w.List()
	bridges := w.List()
	for _, b := range t.PriorBridges() {
		writeBridge(w, b)
	}
	w.ListEnd(bridges)

	current := t.CurrentBridge()
	w.WriteBool(current != nil)
	if current != nil {
		writeBridge(w, current)
	}

	writePositions(w, t.WitnessedPositions())

	cps := w.List()
	for _, c := range t.Checkpoints() {
		writeCheckpoint(w, c)
	}
	w.ListEnd(cps)

	w.WriteUint64(uint64(t.MaxCheckpoints()))
	w.ListEnd(idx)
}

func readTree(s *rlp.Stream, depth uint8, hasher merkle.Hasher) (*merkle.Tree, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	prior, err := readList(s, readBridge)
	if err != nil {
		return nil, err
	}
	hasCurrent, err := s.Bool()
	if err != nil {
		return nil, err
	}
	var current *merkle.Bridge
	if hasCurrent {
		if current, err = readBridge(s); err != nil {
			return nil, err
		}
	}
	witnessed, err := readPositions(s)
	if err != nil {
		return nil, err
	}
	cps, err := readList(s, readCheckpoint)
	if err != nil {
		return nil, err
	}
	maxCheckpoints, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	t, err := merkle.NewTreeFromParts(prior, current, witnessed, cps, maxCheckpoints, depth, hasher)
	if err != nil {
		return nil, errors.Reconstruction("tree", err)
	}
	return t, nil
}

// EncodeTree returns the canonical encoding of the tree's full state:
// prior bridges, current bridge, witnessed positions, checkpoints and the
// checkpoint bound, in that order. Depth and hasher are not encoded.
func EncodeTree(t *merkle.Tree) []byte {
	return encode(func(w rlp.EncoderBuffer) { writeTree(w, t) })
}

// DecodeTree rebuilds a tree of the given depth from EncodeTree output.
// Malformed framing yields a codec error; well-formed input describing an
// impossible tree yields a reconstruction error.
func DecodeTree(data []byte, depth uint8, hasher merkle.Hasher) (*merkle.Tree, error) {
	var t *merkle.Tree
	err := decode("decode tree", data, func(s *rlp.Stream) error {
		var err error
		t, err = readTree(s, depth, hasher)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func EncodeFrontier(f *merkle.Frontier) []byte {
	return encode(func(w rlp.EncoderBuffer) { writeFrontier(w, f) })
}

func DecodeFrontier(data []byte) (*merkle.Frontier, error) {
	var f *merkle.Frontier
	err := decode("decode frontier", data, func(s *rlp.Stream) error {
		var err error
		f, err = readFrontier(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func EncodeBridge(b *merkle.Bridge) []byte {
	return encode(func(w rlp.EncoderBuffer) { writeBridge(w, b) })
}

func DecodeBridge(data []byte) (*merkle.Bridge, error) {
	var b *merkle.Bridge
	err := decode("decode bridge", data, func(s *rlp.Stream) error {
		var err error
		b, err = readBridge(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func EncodeCheckpoint(c *merkle.Checkpoint) []byte {
	return encode(func(w rlp.EncoderBuffer) { writeCheckpoint(w, c) })
}

func DecodeCheckpoint(data []byte) (*merkle.Checkpoint, error) {
	var c *merkle.Checkpoint
	err := decode("decode checkpoint", data, func(s *rlp.Stream) error {
		var err error
		c, err = readCheckpoint(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
