package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mezonai/chainstore/block"
	"github.com/mezonai/chainstore/config"
	"github.com/mezonai/chainstore/db"
	"github.com/mezonai/chainstore/jsonx"
	"github.com/mezonai/chainstore/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBlock() *block.Block {
	return &block.Block{
		PrevHash: block.HashBytes([]byte("prev")),
		Slot:     42,
		TxHashes: []block.Digest{block.HashBytes([]byte("tx1")), block.HashBytes([]byte("tx2"))},
		Metadata: "hello",
	}
}

func TestBlockView_RoundTrip(t *testing.T) {
	b := sampleBlock()
	h, err := b.Hash()
	require.NoError(t, err)

	view := toBlockView(h, b)
	assert.Equal(t, h.String(), view.Hash)

	got, err := view.toBlock()
	require.NoError(t, err)
	assert.Equal(t, b, got)

	view.Metadata = "tampered"
	_, err = view.toBlock()
	assert.Error(t, err)

	view.Hash = ""
	got, err = view.toBlock()
	require.NoError(t, err)
	assert.Equal(t, "tampered", got.Metadata)
}

func TestReadBlockFile(t *testing.T) {
	b := sampleBlock()
	h, err := b.Hash()
	require.NoError(t, err)
	data, err := jsonx.Marshal([]BlockView{toBlockView(h, b)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "blocks.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	blocks, err := readBlockFile(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, b, blocks[0])

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"prev_hash":"zz","slot":1,"tx_hashes":[],"metadata":""}]`), 0o644))
	_, err = readBlockFile(bad)
	assert.Error(t, err)
}

func TestParseDigests(t *testing.T) {
	d := block.HashBytes([]byte("x"))
	got, err := parseDigests([]string{d.String()})
	require.NoError(t, err)
	assert.Equal(t, []block.Digest{d}, got)

	_, err = parseDigests([]string{d.String(), "abc"})
	assert.Error(t, err)
}

func TestRunDemo(t *testing.T) {
	trees := store.NewTreeStore(db.NewMemoryProvider())
	tc := config.DefaultTreeConfig()
	tc.Depth = 10
	tc.MaxCheckpoints = 3

	view, err := runDemo(context.Background(), trees, "demo", tc, DemoConfig{Leaves: 20, WitnessEvery: 6, Batch: 8})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), view.Size)
	assert.Len(t, view.Checkpoints, 3)
	require.Len(t, view.Witnessed, 4)
	for i, w := range view.Witnessed {
		assert.Equal(t, uint64(6*i), w.Position)
		assert.True(t, w.PathValid, "position %d", w.Position)
	}

	// a second run continues the stored tree
	view, err = runDemo(context.Background(), trees, "demo", tc, DemoConfig{Leaves: 4, WitnessEvery: 0, Batch: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(24), view.Size)

	_, err = runDemo(context.Background(), trees, "demo", tc, DemoConfig{Leaves: 1, Batch: 0})
	assert.Error(t, err)
}

func TestRunDemo_FullTree(t *testing.T) {
	trees := store.NewTreeStore(db.NewMemoryProvider())
	tc := config.DefaultTreeConfig()
	tc.Depth = 2

	_, err := runDemo(context.Background(), trees, "small", tc, DemoConfig{Leaves: 5, Batch: 5})
	assert.Error(t, err)
}
