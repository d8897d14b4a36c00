package config

const (
	DefaultTreeDepth          = 32
	DefaultMaxCheckpoints     = 100
	DefaultSnapshotIntervalMs = 5000
)
