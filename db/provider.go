package db

// DatabaseProvider abstracts the low-level ordered key-value engine.
// Keys are raw bytes ordered byte-lexicographically; stores address a named
// namespace of the engine through a Table (see table.go).
//
// Every method returns nil values (not an error) for absent keys.
type DatabaseProvider interface {
	// Get retrieves a value by key
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch

	// First returns the smallest entry whose key starts with prefix
	First(prefix []byte) (key, value []byte, err error)

	// Last returns the largest entry whose key starts with prefix
	Last(prefix []byte) (key, value []byte, err error)

	// Lower returns the largest entry starting with prefix whose key is strictly below key
	Lower(prefix, key []byte) (foundKey, value []byte, err error)

	// Higher returns the smallest entry starting with prefix whose key is strictly above key
	Higher(prefix, key []byte) (foundKey, value []byte, err error)

	// IteratePrefix iterates over all key-value pairs with the given prefix in key order.
	// The callback function should return false to stop iteration
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error

	// Close closes the database connection
	Close() error
}

// DatabaseBatch provides atomic batch operations. Either every operation of a
// successful Write becomes visible or none does.
type DatabaseBatch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte)

	// Delete adds a deletion to the batch
	Delete(key []byte)

	// Len returns the number of queued operations
	Len() int

	// Write commits all operations in the batch
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close() error
}

// prefixEnd returns the smallest key that is greater than every key starting
// with prefix, or nil when no such key exists (prefix is empty or all 0xff).
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
