package merkle

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Bridge is a segment of tree history: the frontier reached after appending
// the leaves since priorPosition, plus auth fragments for tracked leaves.
type Bridge struct {
	priorPosition Position
	hasPrior      bool
	fragments     map[Position]*AuthFragment
	frontier      *Frontier
}

func newBridge(f *Frontier) *Bridge {
	return &Bridge{frontier: f, fragments: map[Position]*AuthFragment{}}
}

// NewBridgeFromParts validates and assembles a bridge. fragments must be
// strictly ascending by position and must not track leaves beyond the frontier.
func NewBridgeFromParts(priorPosition Position, hasPrior bool, fragments []*AuthFragment, frontier *Frontier) (*Bridge, error) {
	if frontier == nil {
		return nil, ErrNilFrontier
	}
	if hasPrior && frontier.position < priorPosition {
		return nil, fmt.Errorf("%w: frontier %d, prior %d", ErrBridgePosition, frontier.position, priorPosition)
	}
	b := &Bridge{
		priorPosition: priorPosition,
		hasPrior:      hasPrior,
		fragments:     make(map[Position]*AuthFragment, len(fragments)),
		frontier:      frontier.clone(),
	}
	if !hasPrior {
		b.priorPosition = 0
	}
	for i, frag := range fragments {
		if frag == nil {
			return nil, fmt.Errorf("%w: nil fragment", ErrFragmentAltitudes)
		}
		if i > 0 && fragments[i-1].position >= frag.position {
			return nil, ErrFragmentOrder
		}
		if frag.position > frontier.position {
			return nil, fmt.Errorf("%w: %d > %d", ErrFragmentPosition, frag.position, frontier.position)
		}
		b.fragments[frag.position] = frag.clone()
	}
	return b, nil
}

// PriorPosition is the frontier position of the preceding bridge; absent for
// the first bridge of a tree.
func (b *Bridge) PriorPosition() (Position, bool) {
	return b.priorPosition, b.hasPrior
}

// Fragments returns the auth fragments ascending by tracked position
func (b *Bridge) Fragments() []*AuthFragment {
	out := make([]*AuthFragment, 0, len(b.fragments))
	for _, pos := range slices.Sorted(maps.Keys(b.fragments)) {
		out = append(out, b.fragments[pos].clone())
	}
	return out
}

func (b *Bridge) Frontier() *Frontier {
	return b.frontier.clone()
}

// Position is the position of the bridge's most recent leaf
func (b *Bridge) Position() Position {
	return b.frontier.position
}

func (b *Bridge) currentLeaf() Node {
	return b.frontier.leaf.Value()
}

func (b *Bridge) clone() *Bridge {
	c := &Bridge{
		priorPosition: b.priorPosition,
		hasPrior:      b.hasPrior,
		fragments:     make(map[Position]*AuthFragment, len(b.fragments)),
		frontier:      b.frontier.clone(),
	}
	for pos, frag := range b.fragments {
		c.fragments[pos] = frag.clone()
	}
	return c
}

// successor starts the next bridge at this bridge's frontier
func (b *Bridge) successor(trackCurrentLeaf bool) *Bridge {
	next := &Bridge{
		priorPosition: b.frontier.position,
		hasPrior:      true,
		fragments:     make(map[Position]*AuthFragment, len(b.fragments)+1),
		frontier:      b.frontier.clone(),
	}
	for pos, frag := range b.fragments {
		next.fragments[pos] = frag.successor()
	}
	if trackCurrentLeaf {
		next.trackCurrentLeaf()
	}
	return next
}

func (b *Bridge) trackCurrentLeaf() {
	pos := b.frontier.position
	if _, ok := b.fragments[pos]; !ok {
		b.fragments[pos] = newAuthFragment(pos)
	}
}

func (b *Bridge) append(h Hasher, value Node) {
	b.frontier.append(h, value)
	for _, frag := range b.fragments {
		frag.augment(h, b.frontier)
	}
}

func (b *Bridge) canFollow(prev *Bridge) bool {
	return b.hasPrior && b.priorPosition == prev.frontier.position
}

// fuse joins b with the bridge that follows it into a single bridge spanning both
func (b *Bridge) fuse(next *Bridge) (*Bridge, bool) {
	if !next.canFollow(b) {
		return nil, false
	}
	fused := &Bridge{
		priorPosition: b.priorPosition,
		hasPrior:      b.hasPrior,
		fragments:     make(map[Position]*AuthFragment, len(b.fragments)+len(next.fragments)),
		frontier:      next.frontier.clone(),
	}
	for pos, frag := range b.fragments {
		fused.fragments[pos] = frag.clone()
	}
	for pos, frag := range next.fragments {
		cur, ok := fused.fragments[pos]
		if !ok {
			fused.fragments[pos] = frag.clone()
			continue
		}
		joined, ok := cur.fuse(frag)
		if !ok {
			return nil, false
		}
		fused.fragments[pos] = joined
	}
	return fused, true
}

func (b *Bridge) pruneFragments(keep func(Position) bool) {
	maps.DeleteFunc(b.fragments, func(pos Position, _ *AuthFragment) bool {
		return !keep(pos)
	})
}

// fuseAll folds a contiguous run of bridges into one
func fuseAll(bridges []*Bridge) (*Bridge, bool) {
	if len(bridges) == 0 {
		return nil, false
	}
	acc := bridges[0]
	for _, next := range bridges[1:] {
		var ok bool
		if acc, ok = acc.fuse(next); !ok {
			return nil, false
		}
	}
	return acc, true
}

func comparePosition(b *Bridge, pos Position) int {
	return cmp.Compare(b.Position(), pos)
}

// checkFragments requires every fragment to continue the same position's
// fragment in the nearest earlier bridge the way fuse joins them, and to
// observe no sibling its bridge's frontier has not yet completed.
func checkFragments(bridges []*Bridge) error {
	observed := map[Position]int{}
	for i, b := range bridges {
		for pos, frag := range b.fragments {
			prev := observed[pos]
			if prev+len(frag.values) != frag.altitudesObserved {
				return fmt.Errorf("%w: bridge %d position %d observes %d altitudes, %d before plus %d values",
					ErrFragmentAltitudes, i, pos, frag.altitudesObserved, prev, len(frag.values))
			}
			if limit := pos.completedAltitudeCount(b.frontier.position); frag.altitudesObserved > limit {
				return fmt.Errorf("%w: bridge %d position %d observes %d altitudes, frontier %d completes %d",
					ErrFragmentAltitudes, i, pos, frag.altitudesObserved, b.frontier.position, limit)
			}
			observed[pos] = frag.altitudesObserved
		}
	}
	return nil
}
