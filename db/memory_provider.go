package db

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MemoryProvider is a non-durable DatabaseProvider over a goleveldb memdb skiplist.
// Batches are applied under an exclusive lock so readers never observe a
// partially applied batch.
type MemoryProvider struct {
	mu     sync.RWMutex
	db     *memdb.DB
	closed bool
}

var errMemoryClosed = errors.New("memory provider closed")

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() DatabaseProvider {
	return &MemoryProvider{db: memdb.New(comparer.DefaultComparer, 0)}
}

func (p *MemoryProvider) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errMemoryClosed
	}

	value, err := p.db.Get(key)
	if err != nil {
		if err == memdb.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "memdb get")
	}
	return copyBytes(value), nil
}

func (p *MemoryProvider) Has(key []byte) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, errMemoryClosed
	}
	return p.db.Contains(key), nil
}

func (p *MemoryProvider) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errMemoryClosed
	}
	return errors.Wrap(p.db.Put(key, value), "memdb put")
}

func (p *MemoryProvider) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errMemoryClosed
	}
	err := p.db.Delete(key)
	if err == memdb.ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "memdb delete")
}

func (p *MemoryProvider) Batch() DatabaseBatch {
	return &MemoryBatch{batch: new(leveldb.Batch), provider: p}
}

func (p *MemoryProvider) First(prefix []byte) ([]byte, []byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, nil, errMemoryClosed
	}
	iter := p.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	return iterFirst(iter)
}

func (p *MemoryProvider) Last(prefix []byte) ([]byte, []byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, nil, errMemoryClosed
	}
	iter := p.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	return iterLast(iter)
}

func (p *MemoryProvider) Lower(prefix, key []byte) ([]byte, []byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, nil, errMemoryClosed
	}
	iter := p.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	return iterLower(iter, key)
}

func (p *MemoryProvider) Higher(prefix, key []byte) ([]byte, []byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, nil, errMemoryClosed
	}
	iter := p.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	return iterHigher(iter, key)
}

func (p *MemoryProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errMemoryClosed
	}
	iter := p.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	return iterPrefix(iter, callback)
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// MemoryBatch records operations in a leveldb.Batch and replays them into the
// memdb on Write.
type MemoryBatch struct {
	batch    *leveldb.Batch
	provider *MemoryProvider
}

func (b *MemoryBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *MemoryBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *MemoryBatch) Len() int {
	return b.batch.Len()
}

func (b *MemoryBatch) Write() error {
	p := b.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errMemoryClosed
	}
	// memdb writes cannot fail, so the replay is all-or-nothing under the lock
	return b.batch.Replay(memdbReplay{p.db})
}

func (b *MemoryBatch) Reset() {
	b.batch.Reset()
}

func (b *MemoryBatch) Close() error {
	return nil
}

type memdbReplay struct {
	db *memdb.DB
}

func (r memdbReplay) Put(key, value []byte) {
	_ = r.db.Put(key, value)
}

func (r memdbReplay) Delete(key []byte) {
	_ = r.db.Delete(key)
}
