package store

import (
	"path/filepath"
	"testing"

	"github.com/mezonai/chainstore/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		config  StoreConfig
		wantErr bool
	}{
		{"memory", StoreConfig{Type: MemoryStoreType}, false},
		{"leveldb", StoreConfig{Type: LevelDBStoreType, Directory: "/tmp/x"}, false},
		{"bolt", StoreConfig{Type: BoltStoreType, Directory: "/tmp/x"}, false},
		{"redis", StoreConfig{Type: RedisStoreType, Directory: "ns", RedisAddr: "localhost:6379"}, false},
		{"empty type", StoreConfig{Directory: "/tmp/x"}, true},
		{"leveldb without directory", StoreConfig{Type: LevelDBStoreType}, true},
		{"redis without address", StoreConfig{Type: RedisStoreType, Directory: "ns"}, true},
		{"unknown", StoreConfig{Type: "sqlite", Directory: "/tmp/x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreFactory_CreateProviderRejectsNil(t *testing.T) {
	_, err := NewStoreFactory().CreateProvider(nil)
	assert.Error(t, err)

	_, _, err = CreateStore(&StoreConfig{Type: "sqlite"})
	assert.Error(t, err)
}

func TestStoreFactory_SharedProvider(t *testing.T) {
	for _, cfg := range []*StoreConfig{
		{Type: MemoryStoreType},
		{Type: BoltStoreType, Directory: filepath.Join(t.TempDir(), "bolt")},
		{Type: LevelDBStoreType, Directory: filepath.Join(t.TempDir(), "ldb"), SyncWrites: true},
	} {
		t.Run(string(cfg.Type), func(t *testing.T) {
			blocks, trees, err := CreateStore(cfg)
			require.NoError(t, err)
			defer blocks.Close()

			b := testBlock(1)
			require.NoError(t, blocks.Insert([]*block.Block{b}))
			require.NoError(t, trees.Save(DefaultTreeName, sampleTree(t)))

			// tree snapshots never show up in block queries
			first, err := blocks.GetFirst()
			require.NoError(t, err)
			last, err := blocks.GetLast()
			require.NoError(t, err)
			assert.Equal(t, first, last)
			assert.Equal(t, mustHash(t, b), first.Hash)

			names, err := trees.Names()
			require.NoError(t, err)
			assert.Equal(t, []string{DefaultTreeName}, names)
		})
	}
}
