package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrontierFromParts(t *testing.T) {
	a, b := leafAt(0), leafAt(1)

	_, err := NewFrontierFromParts(0, NewLeftLeaf(a), nil)
	require.NoError(t, err)

	_, err = NewFrontierFromParts(0, NewRightLeaf(a, b), nil)
	assert.ErrorIs(t, err, ErrLeafParity)

	_, err = NewFrontierFromParts(3, NewLeftLeaf(a), []Node{b})
	assert.ErrorIs(t, err, ErrLeafParity)

	// position 6 turns left at altitudes 1 and 2
	_, err = NewFrontierFromParts(6, NewLeftLeaf(a), []Node{b})
	assert.ErrorIs(t, err, ErrOmmerCount)
	_, err = NewFrontierFromParts(6, NewLeftLeaf(a), []Node{a, b})
	require.NoError(t, err)
}

func TestFrontierFromPartsMatchesAppended(t *testing.T) {
	tree := NewTree(5, 0, testHasher)
	for i := 0; i < 13; i++ {
		tree.Append(leafAt(i))
	}
	f := tree.CurrentBridge().Frontier()
	rebuilt, err := NewFrontierFromParts(f.Position(), f.Leaf(), f.Ommers())
	require.NoError(t, err)
	assert.Equal(t, f.Root(testHasher, 5), rebuilt.Root(testHasher, 5))
}

func TestNewAuthFragmentFromParts(t *testing.T) {
	_, err := NewAuthFragmentFromParts(4, 2, []Node{leafAt(0)})
	require.NoError(t, err)

	_, err = NewAuthFragmentFromParts(4, 1, []Node{leafAt(0), leafAt(1)})
	assert.ErrorIs(t, err, ErrFragmentAltitudes)

	// all 64 bits set leaves nothing to observe
	_, err = NewAuthFragmentFromParts(^Position(0), 1, nil)
	assert.ErrorIs(t, err, ErrFragmentAltitudes)

	_, err = NewAuthFragmentFromParts(0, 65, nil)
	assert.ErrorIs(t, err, ErrFragmentAltitudes)
}

func TestNewBridgeFromParts(t *testing.T) {
	f, err := NewFrontierFromParts(4, NewLeftLeaf(leafAt(4)), []Node{leafAt(0)})
	require.NoError(t, err)
	frag2, _ := NewAuthFragmentFromParts(2, 1, []Node{leafAt(3)})
	frag3, _ := NewAuthFragmentFromParts(3, 0, nil)
	frag9, _ := NewAuthFragmentFromParts(9, 0, nil)

	_, err = NewBridgeFromParts(2, true, []*AuthFragment{frag2, frag3}, f)
	require.NoError(t, err)

	_, err = NewBridgeFromParts(2, true, []*AuthFragment{frag3, frag2}, f)
	assert.ErrorIs(t, err, ErrFragmentOrder)

	_, err = NewBridgeFromParts(2, true, []*AuthFragment{frag2, frag2}, f)
	assert.ErrorIs(t, err, ErrFragmentOrder)

	_, err = NewBridgeFromParts(2, true, []*AuthFragment{frag9}, f)
	assert.ErrorIs(t, err, ErrFragmentPosition)

	_, err = NewBridgeFromParts(5, true, nil, f)
	assert.ErrorIs(t, err, ErrBridgePosition)

	_, err = NewBridgeFromParts(0, false, nil, nil)
	assert.ErrorIs(t, err, ErrNilFrontier)
}

func TestNewCheckpointFromParts(t *testing.T) {
	c, err := NewCheckpointFromParts(3, true, []Position{1, 4}, []Position{2})
	require.NoError(t, err)
	assert.Equal(t, 3, c.BridgesLen())
	assert.True(t, c.IsWitnessed())
	assert.Equal(t, []Position{1, 4}, c.Witnessed())

	_, err = NewCheckpointFromParts(3, false, []Position{4, 1}, nil)
	assert.ErrorIs(t, err, ErrUnsortedSet)

	_, err = NewCheckpointFromParts(3, false, nil, []Position{2, 2})
	assert.ErrorIs(t, err, ErrUnsortedSet)
}

func buildSampleTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree(5, 4, testHasher)
	for i := 0; i < 10; i++ {
		tree.Append(leafAt(i))
		if i == 3 || i == 7 {
			require.NoError(t, tree.Witness(Position(i)))
		}
		if i == 5 {
			tree.Checkpoint()
		}
	}
	tree.Forget(3)
	tree.Checkpoint()
	return tree
}

func TestNewTreeFromPartsRoundTrip(t *testing.T) {
	tree := buildSampleTree(t)
	rebuilt, err := NewTreeFromParts(
		tree.PriorBridges(),
		tree.CurrentBridge(),
		tree.WitnessedPositions(),
		tree.Checkpoints(),
		uint64(tree.MaxCheckpoints()),
		tree.Depth(),
		testHasher,
	)
	require.NoError(t, err)
	requireSameState(t, tree, rebuilt)

	// both continue identically
	tree.Append(leafAt(50))
	rebuilt.Append(leafAt(50))
	requireSameState(t, tree, rebuilt)
	root, _ := tree.Root(0)
	p1, ok1 := tree.AuthenticationPath(7, root)
	p2, ok2 := rebuilt.AuthenticationPath(7, root)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, p1, p2)
}

func TestNewTreeFromPartsRejectsInconsistentParts(t *testing.T) {
	tree := buildSampleTree(t)
	prior := tree.PriorBridges()
	current := tree.CurrentBridge()
	cps := tree.Checkpoints()
	bound := uint64(tree.MaxCheckpoints())

	_, err := NewTreeFromParts(prior, nil, nil, nil, bound, 5, testHasher)
	assert.ErrorIs(t, err, ErrDiscontinuity)

	swapped := []*Bridge{prior[1], prior[0]}
	swapped = append(swapped, prior[2:]...)
	_, err = NewTreeFromParts(swapped, current, nil, nil, bound, 5, testHasher)
	assert.ErrorIs(t, err, ErrDiscontinuity)

	_, err = NewTreeFromParts(prior, current, []Position{8}, nil, bound, 5, testHasher)
	assert.ErrorIs(t, err, ErrWitnessMismatch)

	_, err = NewTreeFromParts(prior, current, []Position{7, 3}, nil, bound, 5, testHasher)
	assert.ErrorIs(t, err, ErrUnsortedSet)

	_, err = NewTreeFromParts(prior, current, nil, cps, 1, 5, testHasher)
	assert.ErrorIs(t, err, ErrCheckpointMismatch)

	tooFar, _ := NewCheckpointFromParts(uint64(len(prior)+1), false, nil, nil)
	_, err = NewTreeFromParts(prior, current, nil, []*Checkpoint{tooFar}, bound, 5, testHasher)
	assert.ErrorIs(t, err, ErrCheckpointMismatch)

	// position 9 does not fit a depth 3 tree
	_, err = NewTreeFromParts(prior, current, nil, nil, bound, 3, testHasher)
	assert.ErrorIs(t, err, ErrTreeParameters)

	_, err = NewTreeFromParts(prior, current, nil, nil, bound, 5, nil)
	assert.ErrorIs(t, err, ErrTreeParameters)
}

func TestFragmentsTrackCompletedSiblings(t *testing.T) {
	tree := NewTree(6, 8, testHasher)
	for i := 0; i < 40; i++ {
		tree.Append(leafAt(i))
		if i%3 == 0 {
			require.NoError(t, tree.Witness(Position(i)))
		}
		if i%5 == 0 {
			tree.Checkpoint()
		}
	}
	bridges := append(tree.PriorBridges(), tree.CurrentBridge())
	for _, b := range bridges {
		for _, frag := range b.Fragments() {
			assert.Equal(t, frag.Position().completedAltitudeCount(b.Position()), frag.AltitudesObserved(),
				"position %d at frontier %d", frag.Position(), b.Position())
		}
	}
	require.NoError(t, checkFragments(bridges))
}

func TestNewTreeFromPartsRejectsBrokenFragmentChain(t *testing.T) {
	tree := buildSampleTree(t)
	prior := tree.PriorBridges()
	current := tree.CurrentBridge()

	// position 7 is witnessed, so the current bridge carries its fragment
	var frag *AuthFragment
	for _, f := range current.Fragments() {
		if f.Position() == 7 {
			frag = f
		}
	}
	require.NotNil(t, frag)
	skipped, err := NewAuthFragmentFromParts(7, uint64(frag.AltitudesObserved()+1), frag.Values())
	require.NoError(t, err)
	broken, err := NewBridgeFromParts(current.priorPosition, current.hasPrior, []*AuthFragment{skipped}, current.Frontier())
	require.NoError(t, err)

	_, err = NewTreeFromParts(prior, broken, nil, nil, uint64(tree.MaxCheckpoints()), tree.Depth(), testHasher)
	assert.ErrorIs(t, err, ErrFragmentAltitudes)
}

func TestCompletedAltitudeCount(t *testing.T) {
	assert.Equal(t, 0, Position(0).completedAltitudeCount(0))
	assert.Equal(t, 1, Position(0).completedAltitudeCount(1))
	assert.Equal(t, 1, Position(0).completedAltitudeCount(2))
	assert.Equal(t, 2, Position(0).completedAltitudeCount(3))
	// position 2 is a right child at altitude 1
	assert.Equal(t, 1, Position(2).completedAltitudeCount(3))
	assert.Equal(t, 1, Position(2).completedAltitudeCount(6))
	assert.Equal(t, 2, Position(2).completedAltitudeCount(7))
	assert.Equal(t, 0, Position(5).completedAltitudeCount(5))
}
