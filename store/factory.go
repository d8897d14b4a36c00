package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/chainstore/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// RocksDBStoreType uses the RocksDB implementation (needs the rocksdb build tag)
	RocksDBStoreType StoreType = "rocksdb"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// BoltStoreType uses a single bbolt file
	BoltStoreType StoreType = "bolt"

	// MemoryStoreType keeps everything in process memory. Nothing is durable.
	MemoryStoreType StoreType = "memory"
)

const boltFileName = "chainstore.db"

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases).
	// For redis it is the keyspace every key is stored under.
	Directory string `json:"directory" yaml:"directory"`

	// SyncWrites fsyncs every LevelDB/RocksDB write
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// VerifyKeys re-derives the key of every block returned by an ordered query
	VerifyKeys bool `json:"verify_keys" yaml:"verify_keys"`

	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
}

// DefaultStoreConfig returns a durable LevelDB configuration rooted at dir
func DefaultStoreConfig(dir string) *StoreConfig {
	return &StoreConfig{
		Type:       LevelDBStoreType,
		Directory:  dir,
		SyncWrites: true,
	}
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case MemoryStoreType:
		return nil
	case RedisStoreType:
		if sc.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case LevelDBStoreType, RocksDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateStoreWithProvider opens one provider and builds the block store and
// tree store on it. Closing the block store closes the shared provider.
func (sf *StoreFactory) CreateStoreWithProvider(config *StoreConfig) (BlockStore, *TreeStore, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	blkStore, err := NewGenericBlockStore(provider, config.VerifyKeys)
	if err != nil {
		_ = provider.Close()
		return nil, nil, fmt.Errorf("failed to create block store: %w", err)
	}

	return blkStore, NewTreeStore(provider), nil
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.DatabaseProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory, config.SyncWrites)

	case RocksDBStoreType:
		return db.NewRocksDBProvider(config.Directory, config.SyncWrites)

	case RedisStoreType:
		return db.NewRedisProvider(config.RedisAddr, config.Directory)

	case BoltStoreType:
		if err := os.MkdirAll(config.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
		return db.NewBoltProvider(filepath.Join(config.Directory, boltFileName))

	case MemoryStoreType:
		return db.NewMemoryProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// Global factory instance
var globalFactory = NewStoreFactory()

// CreateStore creates new store instances using the global factory
func CreateStore(config *StoreConfig) (BlockStore, *TreeStore, error) {
	return globalFactory.CreateStoreWithProvider(config)
}
