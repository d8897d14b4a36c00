package merkle

import (
	"fmt"
	"maps"
	"slices"
)

type positionSet map[Position]struct{}

func newPositionSet(ps ...Position) positionSet {
	s := make(positionSet, len(ps))
	for _, p := range ps {
		s[p] = struct{}{}
	}
	return s
}

func (s positionSet) has(p Position) bool {
	_, ok := s[p]
	return ok
}

func (s positionSet) add(p Position) {
	s[p] = struct{}{}
}

func (s positionSet) sorted() []Position {
	return slices.Sorted(maps.Keys(s))
}

func strictlyAscending(ps []Position) bool {
	for i := 1; i < len(ps); i++ {
		if ps[i-1] >= ps[i] {
			return false
		}
	}
	return true
}

// Checkpoint records the tree shape at the time it was taken, and the
// witness changes made since, so Rewind can restore it.
type Checkpoint struct {
	bridgesLen  int
	isWitnessed bool
	witnessed   positionSet
	forgotten   positionSet
}

func newCheckpoint(bridgesLen int, isWitnessed bool) *Checkpoint {
	return &Checkpoint{
		bridgesLen:  bridgesLen,
		isWitnessed: isWitnessed,
		witnessed:   positionSet{},
		forgotten:   positionSet{},
	}
}

// NewCheckpointFromParts validates and assembles a checkpoint. Both position
// lists must be strictly ascending.
func NewCheckpointFromParts(bridgesLen uint64, isWitnessed bool, witnessed, forgotten []Position) (*Checkpoint, error) {
	if !strictlyAscending(witnessed) || !strictlyAscending(forgotten) {
		return nil, ErrUnsortedSet
	}
	if bridgesLen > uint64(maxInt) {
		return nil, fmt.Errorf("%w: bridge count %d", ErrCheckpointMismatch, bridgesLen)
	}
	return &Checkpoint{
		bridgesLen:  int(bridgesLen),
		isWitnessed: isWitnessed,
		witnessed:   newPositionSet(witnessed...),
		forgotten:   newPositionSet(forgotten...),
	}, nil
}

const maxInt = int(^uint(0) >> 1)

// BridgesLen is the number of prior bridges when the checkpoint was taken
func (c *Checkpoint) BridgesLen() int {
	return c.bridgesLen
}

// IsWitnessed reports whether the tip leaf was witnessed when the checkpoint was taken
func (c *Checkpoint) IsWitnessed() bool {
	return c.isWitnessed
}

// Witnessed lists positions witnessed since the checkpoint, ascending
func (c *Checkpoint) Witnessed() []Position {
	return c.witnessed.sorted()
}

// Forgotten lists positions forgotten since the checkpoint, ascending
func (c *Checkpoint) Forgotten() []Position {
	return c.forgotten.sorted()
}

func (c *Checkpoint) clone() *Checkpoint {
	return &Checkpoint{
		bridgesLen:  c.bridgesLen,
		isWitnessed: c.isWitnessed,
		witnessed:   maps.Clone(c.witnessed),
		forgotten:   maps.Clone(c.forgotten),
	}
}
