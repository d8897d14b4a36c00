package merkle

import (
	"fmt"
	"maps"
	"slices"
)

// Tree is an append-only Merkle tree of fixed depth that keeps only its
// frontier, plus whatever history is needed to produce authentication paths
// for witnessed leaves and to rewind to retained checkpoints.
//
// Tree is not safe for concurrent use.
type Tree struct {
	priorBridges   []*Bridge
	current        *Bridge
	witnessed      positionSet
	checkpoints    []*Checkpoint
	maxCheckpoints int
	depth          uint8
	hasher         Hasher
}

// NewTree returns an empty tree. depth must be in [1, MaxDepth].
func NewTree(depth uint8, maxCheckpoints int, hasher Hasher) *Tree {
	if depth == 0 || depth > MaxDepth {
		panic(fmt.Sprintf("merkle: depth %d out of range", depth))
	}
	if hasher == nil {
		panic("merkle: nil hasher")
	}
	return &Tree{
		witnessed:      positionSet{},
		maxCheckpoints: max(maxCheckpoints, 0),
		depth:          depth,
		hasher:         hasher,
	}
}

// NewTreeFromParts validates and assembles a tree from its persisted parts.
// Every witnessed and forgotten position must name a prior bridge, bridges must
// be contiguous, and checkpoints must fit within the retention bound and refer
// to existing bridges. A tracked position's fragments must chain from one bridge
// to the next and never run ahead of the frontier.
func NewTreeFromParts(
	priorBridges []*Bridge,
	current *Bridge,
	witnessed []Position,
	checkpoints []*Checkpoint,
	maxCheckpoints uint64,
	depth uint8,
	hasher Hasher,
) (*Tree, error) {
	if depth == 0 || depth > MaxDepth || hasher == nil {
		return nil, fmt.Errorf("%w: depth %d", ErrTreeParameters, depth)
	}
	if current == nil && len(priorBridges) > 0 {
		return nil, fmt.Errorf("%w: %d prior bridges without a current bridge", ErrDiscontinuity, len(priorBridges))
	}
	if maxCheckpoints > uint64(maxInt) || uint64(len(checkpoints)) > maxCheckpoints {
		return nil, fmt.Errorf("%w: %d checkpoints exceed bound %d", ErrCheckpointMismatch, len(checkpoints), maxCheckpoints)
	}

	t := &Tree{
		priorBridges:   make([]*Bridge, 0, len(priorBridges)),
		witnessed:      positionSet{},
		checkpoints:    make([]*Checkpoint, 0, len(checkpoints)),
		maxCheckpoints: int(maxCheckpoints),
		depth:          depth,
		hasher:         hasher,
	}

	all := slices.Clone(priorBridges)
	if current != nil {
		all = append(all, current)
	}
	for i, b := range all {
		if b == nil {
			return nil, ErrNilFrontier
		}
		if !t.addressable(b.Position()) {
			return nil, fmt.Errorf("%w: position %d does not fit depth %d", ErrTreeParameters, b.Position(), depth)
		}
		if i == 0 {
			if b.hasPrior {
				return nil, fmt.Errorf("%w: first bridge has a prior position", ErrDiscontinuity)
			}
			continue
		}
		if !b.canFollow(all[i-1]) {
			return nil, fmt.Errorf("%w: bridge %d", ErrDiscontinuity, i)
		}
		// frozen bridges are only created once the tip has moved
		if i < len(priorBridges) && b.Position() == all[i-1].Position() {
			return nil, fmt.Errorf("%w: bridge %d repeats position %d", ErrDiscontinuity, i, b.Position())
		}
	}
	if err := checkFragments(all); err != nil {
		return nil, err
	}
	for _, b := range priorBridges {
		t.priorBridges = append(t.priorBridges, b.clone())
	}
	if current != nil {
		t.current = current.clone()
	}

	if !strictlyAscending(witnessed) {
		return nil, ErrUnsortedSet
	}
	for _, pos := range witnessed {
		if _, ok := t.bridgeIndex(pos); !ok {
			return nil, fmt.Errorf("%w: %d", ErrWitnessMismatch, pos)
		}
		t.witnessed.add(pos)
	}

	for i, c := range checkpoints {
		if c == nil || c.bridgesLen > len(priorBridges) {
			return nil, fmt.Errorf("%w: checkpoint %d", ErrCheckpointMismatch, i)
		}
		if i > 0 && c.bridgesLen < checkpoints[i-1].bridgesLen {
			return nil, fmt.Errorf("%w: checkpoint %d precedes its predecessor", ErrCheckpointMismatch, i)
		}
		for _, set := range []positionSet{c.witnessed, c.forgotten} {
			for pos := range set {
				if _, ok := t.bridgeIndex(pos); !ok {
					return nil, fmt.Errorf("%w: checkpoint %d position %d", ErrWitnessMismatch, i, pos)
				}
			}
		}
		t.checkpoints = append(t.checkpoints, c.clone())
	}
	return t, nil
}

func (t *Tree) Depth() uint8 {
	return t.depth
}

func (t *Tree) Hasher() Hasher {
	return t.hasher
}

func (t *Tree) MaxCheckpoints() int {
	return t.maxCheckpoints
}

// PriorBridges returns copies of the frozen bridges, oldest first
func (t *Tree) PriorBridges() []*Bridge {
	out := make([]*Bridge, len(t.priorBridges))
	for i, b := range t.priorBridges {
		out[i] = b.clone()
	}
	return out
}

// CurrentBridge returns a copy of the bridge under construction, nil for an empty tree
func (t *Tree) CurrentBridge() *Bridge {
	if t.current == nil {
		return nil
	}
	return t.current.clone()
}

// Checkpoints returns copies of the retained checkpoints, oldest first
func (t *Tree) Checkpoints() []*Checkpoint {
	out := make([]*Checkpoint, len(t.checkpoints))
	for i, c := range t.checkpoints {
		out[i] = c.clone()
	}
	return out
}

// WitnessedPositions returns the witnessed leaf positions, ascending
func (t *Tree) WitnessedPositions() []Position {
	return t.witnessed.sorted()
}

// WitnessedLeaf returns the leaf value at a witnessed position
func (t *Tree) WitnessedLeaf(pos Position) (Node, bool) {
	if !t.witnessed.has(pos) {
		return Node{}, false
	}
	idx, ok := t.bridgeIndex(pos)
	if !ok {
		return Node{}, false
	}
	return t.priorBridges[idx].currentLeaf(), true
}

// CurrentPosition is the position of the most recently appended leaf
func (t *Tree) CurrentPosition() (Position, bool) {
	if t.current == nil {
		return 0, false
	}
	return t.current.Position(), true
}

// CurrentLeaf is the most recently appended leaf
func (t *Tree) CurrentLeaf() (Node, bool) {
	if t.current == nil {
		return Node{}, false
	}
	return t.current.currentLeaf(), true
}

// Size is the number of leaves appended so far
func (t *Tree) Size() uint64 {
	if t.current == nil {
		return 0
	}
	return uint64(t.current.Position()) + 1
}

// Clone returns a deep copy sharing only the hasher
func (t *Tree) Clone() *Tree {
	c := &Tree{
		priorBridges:   t.PriorBridges(),
		current:        t.CurrentBridge(),
		witnessed:      maps.Clone(t.witnessed),
		checkpoints:    t.Checkpoints(),
		maxCheckpoints: t.maxCheckpoints,
		depth:          t.depth,
		hasher:         t.hasher,
	}
	return c
}

func (t *Tree) addressable(pos Position) bool {
	return t.depth >= 64 || uint64(pos) < uint64(1)<<t.depth
}

func (t *Tree) bridgeIndex(pos Position) (int, bool) {
	return slices.BinarySearchFunc(t.priorBridges, pos, comparePosition)
}

func (t *Tree) lastPrior() *Bridge {
	if len(t.priorBridges) == 0 {
		return nil
	}
	return t.priorBridges[len(t.priorBridges)-1]
}

func (t *Tree) lastCheckpoint() *Checkpoint {
	if len(t.checkpoints) == 0 {
		return nil
	}
	return t.checkpoints[len(t.checkpoints)-1]
}

// Append adds a leaf. It returns false when the tree is already full.
func (t *Tree) Append(leaf Node) bool {
	if t.current == nil {
		t.current = newBridge(NewFrontier(leaf))
		return true
	}
	if !t.addressable(t.current.Position() + 1) {
		return false
	}
	if t.depth >= 64 && t.current.Position() == ^Position(0) {
		return false
	}
	t.current.append(t.hasher, leaf)
	return true
}

// Checkpoint records the current state so a later Rewind can restore it.
// When more than MaxCheckpoints are held the oldest is discarded.
func (t *Tree) Checkpoint() {
	if t.current == nil {
		t.checkpoints = append(t.checkpoints, newCheckpoint(0, false))
	} else {
		pos := t.current.Position()
		isWitnessed := t.witnessed.has(pos)
		if last := t.lastPrior(); last == nil || last.Position() != pos {
			next := t.current.successor(false)
			t.priorBridges = append(t.priorBridges, t.current)
			t.current = next
		}
		t.checkpoints = append(t.checkpoints, newCheckpoint(len(t.priorBridges), isWitnessed))
	}
	if len(t.checkpoints) > t.maxCheckpoints {
		t.checkpoints = slices.Delete(t.checkpoints, 0, len(t.checkpoints)-t.maxCheckpoints)
	}
}

// Rewind restores the tree to the most recent checkpoint and removes it.
// It returns false when there is no checkpoint.
func (t *Tree) Rewind() bool {
	c := t.lastCheckpoint()
	if c == nil {
		return false
	}
	t.checkpoints = t.checkpoints[:len(t.checkpoints)-1]

	for pos := range c.forgotten {
		t.witnessed.add(pos)
	}
	// witnesses made at or after the checkpointed tip are dropped; the tip
	// itself is re-witnessed below when it was witnessed at checkpoint time
	maps.DeleteFunc(t.witnessed, func(pos Position, _ struct{}) bool {
		idx, ok := t.bridgeIndex(pos)
		return !ok || idx+1 >= c.bridgesLen
	})

	clear(t.priorBridges[c.bridgesLen:])
	t.priorBridges = t.priorBridges[:c.bridgesLen]
	if last := t.lastPrior(); last != nil {
		t.current = last.successor(c.isWitnessed)
		if c.isWitnessed {
			t.witnessTip(false)
		}
	} else {
		t.current = nil
	}
	return true
}

// Witness marks the leaf at pos so that its authentication path stays
// available. Only the most recently appended leaf can be newly witnessed: any
// other position that is not already witnessed returns
// ErrPositionNotWitnessable, even if it is still inside the tree. Witnessing an
// already witnessed position is a no-op.
func (t *Tree) Witness(pos Position) error {
	if t.current == nil {
		return ErrEmptyTree
	}
	if t.witnessed.has(pos) {
		return nil
	}
	if tip := t.current.Position(); pos != tip {
		return fmt.Errorf("%w: position %d, tip %d", ErrPositionNotWitnessable, pos, tip)
	}
	t.witnessTip(true)
	return nil
}

func (t *Tree) witnessTip(record bool) {
	cur := t.current
	pos := cur.Position()
	if last := t.lastPrior(); last != nil && last.Position() == pos {
		// the tip is already frozen, e.g. right after a checkpoint
		cur.trackCurrentLeaf()
	} else {
		t.priorBridges = append(t.priorBridges, cur)
		t.current = cur.successor(true)
	}
	t.witnessed.add(pos)

	if c := t.lastCheckpoint(); record && c != nil {
		c.witnessed.add(pos)
	}
}

// Forget drops the witness for pos, allowing its history to be pruned once no
// retained checkpoint could restore it. It returns false if pos was not witnessed.
func (t *Tree) Forget(pos Position) bool {
	if !t.witnessed.has(pos) {
		return false
	}
	delete(t.witnessed, pos)
	if c := t.lastCheckpoint(); c != nil && !c.witnessed.has(pos) {
		c.forgotten.add(pos)
	}
	return true
}

// Root returns the current root for checkpointDepth 0, or the root as of the
// checkpointDepth-th most recent checkpoint.
func (t *Tree) Root(checkpointDepth int) (Node, bool) {
	if checkpointDepth == 0 {
		return t.currentRoot(), true
	}
	n := len(t.checkpoints)
	if checkpointDepth < 0 || checkpointDepth > n {
		return Node{}, false
	}
	return t.checkpointRoot(t.checkpoints[n-checkpointDepth]), true
}

func (t *Tree) currentRoot() Node {
	if t.current == nil {
		return t.hasher.EmptyRoot(Altitude(t.depth))
	}
	return t.current.frontier.Root(t.hasher, t.depth)
}

func (t *Tree) checkpointRoot(c *Checkpoint) Node {
	if c.bridgesLen == 0 {
		return t.hasher.EmptyRoot(Altitude(t.depth))
	}
	return t.priorBridges[c.bridgesLen-1].frontier.Root(t.hasher, t.depth)
}

func (t *Tree) checkpointPosition(c *Checkpoint) (Position, bool) {
	if c.bridgesLen == 0 {
		return 0, false
	}
	return t.priorBridges[c.bridgesLen-1].Position(), true
}

// GarbageCollect fuses frozen bridges that no witness, forgotten-but-restorable
// witness, or retained checkpoint still needs, and drops unneeded auth fragments.
// It returns the number of bridges removed. Roots and authentication paths are
// unaffected.
func (t *Tree) GarbageCollect() int {
	remember := maps.Clone(t.witnessed)
	for _, c := range t.checkpoints {
		for pos := range c.forgotten {
			remember.add(pos)
		}
	}

	n := len(t.priorBridges)
	limit := n
	if len(t.checkpoints) > 0 {
		limit = t.checkpoints[0].bridgesLen
	}

	merged := 0
	if n > 1 {
		kept := make([]*Bridge, 0, n)
		cur := t.priorBridges[0]
		for j := 0; j < n-1; j++ {
			next := t.priorBridges[j+1]
			if j < limit-1 && !remember.has(cur.Position()) {
				fused, ok := cur.fuse(next)
				if !ok {
					panic(fmt.Sprintf("merkle: bridges %d and %d are not contiguous", j, j+1))
				}
				cur = fused
				merged++
				continue
			}
			kept = append(kept, cur)
			cur = next
		}
		t.priorBridges = append(kept, cur)
	}

	for _, b := range t.priorBridges {
		b.pruneFragments(remember.has)
	}
	if t.current != nil {
		t.current.pruneFragments(remember.has)
	}
	for _, c := range t.checkpoints {
		c.bridgesLen -= merged
	}
	return merged
}
