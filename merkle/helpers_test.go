package merkle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

var testHasher = NewBlake2bHasher()

func leafAt(i int) Node {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(i))
	return testHasher.Leaf(buf[:])
}

// naiveLevels materializes every layer of a full tree of the given depth
func naiveLevels(depth uint8, leaves []Node) [][]Node {
	width := 1 << depth
	level := make([]Node, width)
	for i := range level {
		if i < len(leaves) {
			level[i] = leaves[i]
		} else {
			level[i] = testHasher.EmptyLeaf()
		}
	}
	levels := [][]Node{level}
	for alt := 0; alt < int(depth); alt++ {
		next := make([]Node, len(level)/2)
		for i := range next {
			next[i] = testHasher.Combine(Altitude(alt), level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return levels
}

func naiveRoot(depth uint8, leaves []Node) Node {
	levels := naiveLevels(depth, leaves)
	return levels[depth][0]
}

func naivePath(depth uint8, leaves []Node, pos int) []Node {
	levels := naiveLevels(depth, leaves)
	path := make([]Node, 0, depth)
	for alt := 0; alt < int(depth); alt++ {
		path = append(path, levels[alt][pos^1])
		pos >>= 1
	}
	return path
}

// requireSameState compares the observable state of two trees
func requireSameState(t *testing.T, want, got *Tree) {
	t.Helper()
	wantRoot, _ := want.Root(0)
	gotRoot, _ := got.Root(0)
	require.Equal(t, wantRoot, gotRoot)
	require.Equal(t, want.WitnessedPositions(), got.WitnessedPositions())
	require.Equal(t, len(want.PriorBridges()), len(got.PriorBridges()))
	require.Equal(t, len(want.Checkpoints()), len(got.Checkpoints()))
	for i, c := range want.Checkpoints() {
		gc := got.Checkpoints()[i]
		require.Equal(t, c.BridgesLen(), gc.BridgesLen())
		require.Equal(t, c.IsWitnessed(), gc.IsWitnessed())
		require.Equal(t, c.Witnessed(), gc.Witnessed())
		require.Equal(t, c.Forgotten(), gc.Forgotten())
	}
	wantPos, wantOk := want.CurrentPosition()
	gotPos, gotOk := got.CurrentPosition()
	require.Equal(t, wantOk, gotOk)
	require.Equal(t, wantPos, gotPos)
}
