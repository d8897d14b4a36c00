package config

import "github.com/mezonai/chainstore/store"

// ConfigFile is the top-level structure for store.yml
type ConfigFile struct {
	Store store.StoreConfig `yaml:"store"`
}

// TreeConfig holds the commitment tree parameters from the [tree] ini section
type TreeConfig struct {
	Depth              int    `ini:"depth"`
	MaxCheckpoints     int    `ini:"max_checkpoints"`
	SnapshotIntervalMs int    `ini:"snapshot_interval_ms"`
	SnapshotName       string `ini:"snapshot_name"`
}
