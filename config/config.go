package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/merkle"
	"github.com/mezonai/chainstore/store"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadStoreConfig reads and validates the store section of a store.yml file.
// sync_writes defaults to true when the key is absent.
func LoadStoreConfig(path string) (*store.StoreConfig, error) {
	logx.Debug("CONFIG", "LoadStoreConfig called with path:", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfgFile := ConfigFile{Store: store.StoreConfig{SyncWrites: true}}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfgFile.Store.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config in %s: %w", path, err)
	}
	logx.Info("CONFIG", "Loaded store config: type", cfgFile.Store.Type, "directory", cfgFile.Store.Directory)
	return &cfgFile.Store, nil
}

// DefaultTreeConfig is used when no ini file is given
func DefaultTreeConfig() *TreeConfig {
	return &TreeConfig{
		Depth:              DefaultTreeDepth,
		MaxCheckpoints:     DefaultMaxCheckpoints,
		SnapshotIntervalMs: DefaultSnapshotIntervalMs,
		SnapshotName:       store.DefaultTreeName,
	}
}

// LoadTreeConfig reads tree parameters from an .ini file. Missing keys keep
// their defaults.
func LoadTreeConfig(path string) (*TreeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	treeSection := cfg.Section("tree")
	treeCfg := DefaultTreeConfig()
	err = treeSection.MapTo(treeCfg)
	if err != nil {
		return nil, err
	}
	if err := treeCfg.Validate(); err != nil {
		return nil, err
	}
	return treeCfg, nil
}

func (c *TreeConfig) Validate() error {
	if c.Depth <= 0 || c.Depth > merkle.MaxDepth {
		return fmt.Errorf("tree depth must be in [1, %d], got %d", merkle.MaxDepth, c.Depth)
	}
	if c.MaxCheckpoints < 0 {
		return fmt.Errorf("max_checkpoints cannot be negative")
	}
	if c.SnapshotIntervalMs <= 0 {
		return fmt.Errorf("snapshot_interval_ms must be positive")
	}
	if c.SnapshotName == "" {
		return fmt.Errorf("snapshot_name cannot be empty")
	}
	return nil
}

// TreeDepth is Depth as the tree constructors take it. Call after Validate.
func (c *TreeConfig) TreeDepth() uint8 {
	return uint8(c.Depth)
}

func (c *TreeConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMs) * time.Millisecond
}
