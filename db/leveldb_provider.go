package db

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBProvider implements DatabaseProvider for LevelDB
type LevelDBProvider struct {
	once sync.Once
	db   *leveldb.DB
	wo   *opt.WriteOptions
}

// NewLevelDBProvider opens (or creates) a LevelDB database in directory.
// With syncWrites every Put and batch Write is fsynced before returning.
func NewLevelDBProvider(directory string, syncWrites bool) (DatabaseProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open LevelDB at %s", directory)
	}

	return &LevelDBProvider{db: db, wo: &opt.WriteOptions{Sync: syncWrites}}, nil
}

// Get retrieves a value by key
func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, errors.Wrap(err, "leveldb get")
	}
	return value, nil
}

// Put stores a key-value pair
func (p *LevelDBProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Put(key, value, p.wo), "leveldb put")
}

// Delete removes a key-value pair
func (p *LevelDBProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Delete(key, p.wo), "leveldb delete")
}

// Has checks if a key exists
func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	ok, err := p.db.Has(key, nil)
	if err != nil {
		return false, errors.Wrap(err, "leveldb has")
	}
	return ok, nil
}

// Close closes the database connection
func (p *LevelDBProvider) Close() error {
	// avoid double close when being used for multiple store
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a new batch for atomic operations
func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &LevelDBBatch{
		batch: new(leveldb.Batch),
		db:    p.db,
		wo:    p.wo,
	}
}

func (p *LevelDBProvider) First(prefix []byte) ([]byte, []byte, error) {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	return iterFirst(iter)
}

func (p *LevelDBProvider) Last(prefix []byte) ([]byte, []byte, error) {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	return iterLast(iter)
}

func (p *LevelDBProvider) Lower(prefix, key []byte) ([]byte, []byte, error) {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	return iterLower(iter, key)
}

func (p *LevelDBProvider) Higher(prefix, key []byte) ([]byte, []byte, error) {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	return iterHigher(iter, key)
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	return iterPrefix(iter, callback)
}

// The helpers below are shared with MemoryProvider: both engines expose the
// same goleveldb iterator, already bounded to the prefix range.

func iterEntry(iter iterator.Iterator, ok bool) ([]byte, []byte, error) {
	if err := iter.Error(); err != nil {
		return nil, nil, errors.Wrap(err, "leveldb iterator")
	}
	if !ok {
		return nil, nil, nil
	}
	// iterator buffers are reused on the next move
	return copyBytes(iter.Key()), copyBytes(iter.Value()), nil
}

func iterFirst(iter iterator.Iterator) ([]byte, []byte, error) {
	return iterEntry(iter, iter.First())
}

func iterLast(iter iterator.Iterator) ([]byte, []byte, error) {
	return iterEntry(iter, iter.Last())
}

func iterLower(iter iterator.Iterator, key []byte) ([]byte, []byte, error) {
	var ok bool
	if iter.Seek(key) {
		// positioned at the first key >= key
		ok = iter.Prev()
	} else {
		// every key in range is below key
		ok = iter.Last()
	}
	return iterEntry(iter, ok)
}

func iterHigher(iter iterator.Iterator, key []byte) ([]byte, []byte, error) {
	ok := iter.Seek(key)
	if ok && bytes.Equal(iter.Key(), key) {
		ok = iter.Next()
	}
	return iterEntry(iter, ok)
}

func iterPrefix(iter iterator.Iterator, callback func(key, value []byte) bool) error {
	for iter.Next() {
		if !callback(copyBytes(iter.Key()), copyBytes(iter.Value())) {
			break
		}
	}
	return errors.Wrap(iter.Error(), "leveldb iterator")
}

// LevelDBBatch implements DatabaseBatch for LevelDB
type LevelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
	wo    *opt.WriteOptions
}

// Put adds a key-value pair to the batch
func (b *LevelDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Delete adds a deletion to the batch
func (b *LevelDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *LevelDBBatch) Len() int {
	return b.batch.Len()
}

// Write commits all operations in the batch
func (b *LevelDBBatch) Write() error {
	return errors.Wrap(b.db.Write(b.batch, b.wo), "leveldb write batch")
}

// Reset clears the batch
func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}

// Close releases batch resources
func (b *LevelDBBatch) Close() error {
	// LevelDB batch doesn't need explicit closing
	return nil
}
