package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeRoot(t *testing.T) {
	tree := NewTree(4, 10, testHasher)
	root, ok := tree.Root(0)
	require.True(t, ok)
	assert.Equal(t, naiveRoot(4, nil), root)
	assert.Equal(t, testHasher.EmptyRoot(4), root)

	_, ok = tree.CurrentPosition()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), tree.Size())
}

func TestRootMatchesFullTree(t *testing.T) {
	const depth = 5
	tree := NewTree(depth, 0, testHasher)
	var leaves []Node
	for i := 0; i < 1<<depth; i++ {
		leaves = append(leaves, leafAt(i))
		require.True(t, tree.Append(leafAt(i)))

		root, _ := tree.Root(0)
		require.Equal(t, naiveRoot(depth, leaves), root, "after %d leaves", i+1)
	}
}

func TestAppendRejectsWhenFull(t *testing.T) {
	tree := NewTree(2, 0, testHasher)
	for i := 0; i < 4; i++ {
		require.True(t, tree.Append(leafAt(i)))
	}
	assert.False(t, tree.Append(leafAt(4)))
	assert.Equal(t, uint64(4), tree.Size())
}

func TestAuthenticationPathMatchesFullTree(t *testing.T) {
	const depth = 5
	tree := NewTree(depth, 0, testHasher)
	var leaves []Node
	witnessed := map[int]bool{}
	for i := 0; i < 27; i++ {
		leaves = append(leaves, leafAt(i))
		require.True(t, tree.Append(leafAt(i)))
		if i%3 == 0 || i == 7 || i == 8 {
			require.NoError(t, tree.Witness(Position(i)))
			witnessed[i] = true
		}

		root, _ := tree.Root(0)
		for pos := range witnessed {
			path, ok := tree.AuthenticationPath(Position(pos), root)
			require.True(t, ok, "position %d after %d leaves", pos, i+1)
			require.Equal(t, naivePath(depth, leaves, pos), path, "position %d after %d leaves", pos, i+1)
			assert.True(t, VerifyPath(testHasher, depth, Position(pos), leaves[pos], path, root))
		}
	}

	root, _ := tree.Root(0)
	_, ok := tree.AuthenticationPath(1, root)
	assert.False(t, ok, "unwitnessed position")
	_, ok = tree.AuthenticationPath(0, Node{0xff})
	assert.False(t, ok, "unknown root")
}

func TestWitness(t *testing.T) {
	tree := NewTree(4, 10, testHasher)
	assert.ErrorIs(t, tree.Witness(0), ErrEmptyTree)

	for i := 0; i < 5; i++ {
		tree.Append(leafAt(i))
	}
	assert.ErrorIs(t, tree.Witness(2), ErrPositionNotWitnessable)
	require.NoError(t, tree.Witness(4))
	require.NoError(t, tree.Witness(4))
	assert.Equal(t, []Position{4}, tree.WitnessedPositions())

	leaf, ok := tree.WitnessedLeaf(4)
	require.True(t, ok)
	assert.Equal(t, leafAt(4), leaf)

	// still witnessable after the tip moves on, as a no-op
	tree.Append(leafAt(5))
	require.NoError(t, tree.Witness(4))
}

func TestForget(t *testing.T) {
	tree := NewTree(4, 10, testHasher)
	tree.Append(leafAt(0))
	require.NoError(t, tree.Witness(0))
	tree.Checkpoint()
	tree.Append(leafAt(1))
	require.NoError(t, tree.Witness(1))

	assert.False(t, tree.Forget(7))
	assert.True(t, tree.Forget(0))
	assert.True(t, tree.Forget(1))
	assert.False(t, tree.Forget(0))
	assert.Empty(t, tree.WitnessedPositions())

	cps := tree.Checkpoints()
	require.Len(t, cps, 1)
	// 1 was witnessed after the checkpoint, so forgetting it needs no record
	assert.Equal(t, []Position{0}, cps[0].Forgotten())
	assert.Equal(t, []Position{1}, cps[0].Witnessed())
}

func TestCheckpointEvictsOldestFirst(t *testing.T) {
	const depth = 4
	tree := NewTree(depth, 3, testHasher)
	var leaves []Node
	var roots []Node
	for i := 0; i < 5; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
		tree.Checkpoint()
		roots = append(roots, naiveRoot(depth, leaves))
	}

	cps := tree.Checkpoints()
	require.Len(t, cps, 3)
	for k := 1; k <= 3; k++ {
		root, ok := tree.Root(k)
		require.True(t, ok)
		assert.Equal(t, roots[len(roots)-k], root, "checkpoint depth %d", k)
	}
	_, ok := tree.Root(4)
	assert.False(t, ok)
}

func TestCheckpointWithZeroRetention(t *testing.T) {
	tree := NewTree(4, 0, testHasher)
	tree.Checkpoint()
	tree.Append(leafAt(0))
	tree.Checkpoint()
	assert.Empty(t, tree.Checkpoints())
	assert.False(t, tree.Rewind())
}

func TestCheckpointDoesNotDuplicateBridge(t *testing.T) {
	tree := NewTree(4, 10, testHasher)
	tree.Append(leafAt(0))
	tree.Checkpoint()
	tree.Checkpoint()
	assert.Len(t, tree.PriorBridges(), 1)
	require.Len(t, tree.Checkpoints(), 2)
	assert.Equal(t, 1, tree.Checkpoints()[1].BridgesLen())
}

func TestRewindRestoresState(t *testing.T) {
	const depth = 5
	tree := NewTree(depth, 10, testHasher)
	var leaves []Node
	for i := 0; i < 6; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
		if i == 2 || i == 5 {
			require.NoError(t, tree.Witness(Position(i)))
		}
	}
	tree.Checkpoint()
	before := tree.Clone()

	for i := 6; i < 11; i++ {
		tree.Append(leafAt(i))
	}
	require.NoError(t, tree.Witness(10))
	require.True(t, tree.Forget(2))
	require.True(t, tree.Forget(5))

	require.True(t, tree.Rewind())
	assert.Equal(t, []Position{2, 5}, tree.WitnessedPositions())
	root, _ := tree.Root(0)
	assert.Equal(t, naiveRoot(depth, leaves), root)
	assert.Empty(t, tree.Checkpoints())

	// appending again behaves like the state before the checkpoint
	before.Append(leafAt(100))
	tree.Append(leafAt(100))
	leaves = append(leaves, leafAt(100))
	rootA, _ := before.Root(0)
	rootB, _ := tree.Root(0)
	assert.Equal(t, rootA, rootB)
	for _, pos := range []int{2, 5} {
		path, ok := tree.AuthenticationPath(Position(pos), rootB)
		require.True(t, ok)
		assert.Equal(t, naivePath(depth, leaves, pos), path)
	}
}

func TestRewindEmptyCheckpoint(t *testing.T) {
	tree := NewTree(4, 10, testHasher)
	tree.Checkpoint()
	tree.Append(leafAt(0))
	require.NoError(t, tree.Witness(0))
	require.True(t, tree.Rewind())
	_, ok := tree.CurrentPosition()
	assert.False(t, ok)
	assert.Empty(t, tree.WitnessedPositions())
	assert.False(t, tree.Rewind())
}

func TestAuthenticationPathAtCheckpoint(t *testing.T) {
	const depth = 5
	tree := NewTree(depth, 10, testHasher)
	var leaves []Node
	for i := 0; i < 4; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
	}
	require.NoError(t, tree.Witness(3))
	for i := 4; i < 9; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
	}
	tree.Checkpoint()
	checkpointRoot := naiveRoot(depth, leaves)
	checkpointPath := naivePath(depth, leaves, 3)

	for i := 9; i < 14; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
	}
	require.True(t, tree.Forget(3))

	root, ok := tree.Root(1)
	require.True(t, ok)
	require.Equal(t, checkpointRoot, root)

	// forgotten since the checkpoint, so still provable as of the checkpoint
	path, ok := tree.AuthenticationPath(3, checkpointRoot)
	require.True(t, ok)
	assert.Equal(t, checkpointPath, path)

	current, _ := tree.Root(0)
	_, ok = tree.AuthenticationPath(3, current)
	assert.False(t, ok)
}

func TestAuthenticationPathAtCheckpointOfWitnessedTip(t *testing.T) {
	const depth = 4
	tree := NewTree(depth, 10, testHasher)
	var leaves []Node
	for i := 0; i < 6; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
	}
	require.NoError(t, tree.Witness(5))
	tree.Checkpoint()
	root := naiveRoot(depth, leaves)
	tree.Append(leafAt(6))

	path, ok := tree.AuthenticationPath(5, root)
	require.True(t, ok)
	assert.Equal(t, naivePath(depth, leaves, 5), path)
}

func TestGarbageCollectPreservesRootsAndPaths(t *testing.T) {
	const depth = 6
	tree := NewTree(depth, 2, testHasher)
	var leaves []Node
	for i := 0; i < 40; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
		if i%4 == 1 {
			require.NoError(t, tree.Witness(Position(i)))
		}
		if i%5 == 0 {
			tree.Checkpoint()
		}
		if i%8 == 7 {
			tree.Forget(Position(i - 6))
		}
	}

	before := tree.Clone()
	bridgesBefore := len(tree.PriorBridges())
	merged := tree.GarbageCollect()
	assert.Greater(t, merged, 0)
	assert.Equal(t, bridgesBefore-merged, len(tree.PriorBridges()))

	for k := 0; k <= len(before.Checkpoints()); k++ {
		want, _ := before.Root(k)
		got, ok := tree.Root(k)
		require.True(t, ok)
		assert.Equal(t, want, got, "checkpoint depth %d", k)
	}

	root, _ := tree.Root(0)
	for _, pos := range tree.WitnessedPositions() {
		path, ok := tree.AuthenticationPath(pos, root)
		require.True(t, ok, "position %d", pos)
		assert.Equal(t, naivePath(depth, leaves, int(pos)), path)
	}

	// rewinding still works after collection
	for before.Rewind() {
		require.True(t, tree.Rewind())
		wantRoot, _ := before.Root(0)
		gotRoot, _ := tree.Root(0)
		assert.Equal(t, wantRoot, gotRoot)
		assert.Equal(t, before.WitnessedPositions(), tree.WitnessedPositions())
	}
}

func TestGarbageCollectWithoutCheckpoints(t *testing.T) {
	const depth = 5
	tree := NewTree(depth, 0, testHasher)
	var leaves []Node
	for i := 0; i < 20; i++ {
		leaves = append(leaves, leafAt(i))
		tree.Append(leafAt(i))
		require.NoError(t, tree.Witness(Position(i)))
		if i != 9 {
			require.True(t, tree.Forget(Position(i)))
		}
	}
	tree.GarbageCollect()
	// one bridge for the witness, one for the tip
	assert.Len(t, tree.PriorBridges(), 2)

	root, _ := tree.Root(0)
	path, ok := tree.AuthenticationPath(9, root)
	require.True(t, ok)
	assert.Equal(t, naivePath(depth, leaves, 9), path)
}

func TestCloneIsIndependent(t *testing.T) {
	tree := NewTree(4, 5, testHasher)
	tree.Append(leafAt(0))
	require.NoError(t, tree.Witness(0))
	tree.Checkpoint()

	clone := tree.Clone()
	tree.Append(leafAt(1))
	tree.Forget(0)
	tree.Checkpoint()

	assert.Equal(t, []Position{0}, clone.WitnessedPositions())
	assert.Len(t, clone.Checkpoints(), 1)
	pos, _ := clone.CurrentPosition()
	assert.Equal(t, Position(0), pos)
}

func TestNewTreePanicsOnBadDepth(t *testing.T) {
	assert.Panics(t, func() { NewTree(0, 1, testHasher) })
	assert.Panics(t, func() { NewTree(MaxDepth+1, 1, testHasher) })
}
