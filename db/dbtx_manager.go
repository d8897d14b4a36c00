package db

import (
	"fmt"

	"github.com/mezonai/chainstore/logx"
)

// BatchSource is anything that can open an atomic batch: a provider or a Table
type BatchSource interface {
	Batch() DatabaseBatch
}

// DBTxManager manages database transactions (batches) for atomic operations
// across multiple stores sharing one provider.
type DBTxManager struct {
	source BatchSource
}

// NewDBTxManager creates a new transaction manager with the given batch source
func NewDBTxManager(source BatchSource) *DBTxManager {
	return &DBTxManager{source: source}
}

// WithBatch executes the given function within a batch context.
// If the function returns nil, the batch is committed; otherwise, it's discarded.
// An empty batch is not written.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.source.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("TX_MANAGER", "Failed to close batch:", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return fmt.Errorf("transaction failed: %w", err)
	}

	if batch.Len() == 0 {
		return nil
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}
