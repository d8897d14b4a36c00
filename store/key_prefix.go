package store

// Declare database key prefix for objects
const (
	PrefixBlock = "blk:"
	PrefixTree  = "tree:"

	// DefaultTreeName is the snapshot key used when the caller keeps a single tree
	DefaultTreeName = "main"
)
