//go:build rocksdb
// +build rocksdb

package db

import (
	"bytes"
	"sync"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"
)

// RocksDBProvider implements DatabaseProvider for RocksDB
type RocksDBProvider struct {
	once sync.Once
	db   *grocksdb.DB
	ro   *grocksdb.ReadOptions
	wo   *grocksdb.WriteOptions
}

// NewRocksDBProvider opens (or creates) a RocksDB database in directory
func NewRocksDBProvider(directory string, syncWrites bool) (DatabaseProvider, error) {
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := grocksdb.OpenDb(opts, directory)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open RocksDB at %s", directory)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(syncWrites)

	return &RocksDBProvider{
		db: db,
		ro: grocksdb.NewDefaultReadOptions(),
		wo: wo,
	}, nil
}

// Get retrieves a value by key
func (p *RocksDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(p.ro, key)
	if err != nil {
		return nil, errors.Wrap(err, "rocksdb get")
	}
	defer value.Free()

	if !value.Exists() {
		return nil, nil // Return nil for not found, consistent with interface
	}

	// Copy the data since we're freeing the slice
	return copyBytes(value.Data()), nil
}

// Put stores a key-value pair
func (p *RocksDBProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Put(p.wo, key, value), "rocksdb put")
}

// Delete removes a key-value pair
func (p *RocksDBProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Delete(p.wo, key), "rocksdb delete")
}

// Has checks if a key exists
func (p *RocksDBProvider) Has(key []byte) (bool, error) {
	value, err := p.db.Get(p.ro, key)
	if err != nil {
		return false, errors.Wrap(err, "rocksdb get")
	}
	defer value.Free()
	return value.Exists(), nil
}

// Close closes the database connection
func (p *RocksDBProvider) Close() error {
	// avoid double close when being used for multiple store
	p.once.Do(func() {
		p.ro.Destroy()
		p.wo.Destroy()
		p.db.Close()
	})
	return nil
}

// Batch creates a new batch for atomic operations
func (p *RocksDBProvider) Batch() DatabaseBatch {
	return &RocksDBBatch{
		batch:    grocksdb.NewWriteBatch(),
		provider: p,
	}
}

// entry copies the iterator's current entry when it is valid and inside prefix
func (p *RocksDBProvider) entry(it *grocksdb.Iterator, prefix []byte) ([]byte, []byte, error) {
	if err := it.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "rocksdb iterator")
	}
	if !it.Valid() {
		return nil, nil, nil
	}
	k := it.Key()
	v := it.Value()
	defer k.Free()
	defer v.Free()
	if !bytes.HasPrefix(k.Data(), prefix) {
		return nil, nil, nil
	}
	return copyBytes(k.Data()), copyBytes(v.Data()), nil
}

func (p *RocksDBProvider) First(prefix []byte) ([]byte, []byte, error) {
	it := p.db.NewIterator(p.ro)
	defer it.Close()
	it.Seek(prefix)
	return p.entry(it, prefix)
}

func (p *RocksDBProvider) Last(prefix []byte) ([]byte, []byte, error) {
	it := p.db.NewIterator(p.ro)
	defer it.Close()
	if end := prefixEnd(prefix); end == nil {
		it.SeekToLast()
	} else {
		it.Seek(end)
		if it.Valid() {
			it.Prev()
		} else {
			it.SeekToLast()
		}
	}
	return p.entry(it, prefix)
}

func (p *RocksDBProvider) Lower(prefix, key []byte) ([]byte, []byte, error) {
	it := p.db.NewIterator(p.ro)
	defer it.Close()
	it.SeekForPrev(key)
	if it.Valid() {
		k := it.Key()
		equal := bytes.Equal(k.Data(), key)
		k.Free()
		if equal {
			it.Prev()
		}
	}
	return p.entry(it, prefix)
}

func (p *RocksDBProvider) Higher(prefix, key []byte) ([]byte, []byte, error) {
	it := p.db.NewIterator(p.ro)
	defer it.Close()
	it.Seek(key)
	if it.Valid() {
		k := it.Key()
		equal := bytes.Equal(k.Data(), key)
		k.Free()
		if equal {
			it.Next()
		}
	}
	return p.entry(it, prefix)
}

// IteratePrefix implements ordered prefix iteration for RocksDB
func (p *RocksDBProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	it := p.db.NewIterator(p.ro)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		v := it.Value()
		if !bytes.HasPrefix(k.Data(), prefix) {
			k.Free()
			v.Free()
			break
		}
		kdata := copyBytes(k.Data())
		vdata := copyBytes(v.Data())
		k.Free()
		v.Free()
		if !fn(kdata, vdata) {
			break
		}
	}
	return errors.Wrap(it.Err(), "rocksdb iterator")
}

// RocksDBBatch implements DatabaseBatch for RocksDB
type RocksDBBatch struct {
	batch    *grocksdb.WriteBatch
	provider *RocksDBProvider
}

// Put adds a key-value pair to the batch
func (b *RocksDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Delete adds a deletion to the batch
func (b *RocksDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *RocksDBBatch) Len() int {
	return b.batch.Count()
}

// Write commits all operations in the batch
func (b *RocksDBBatch) Write() error {
	return errors.Wrap(b.provider.db.Write(b.provider.wo, b.batch), "rocksdb write batch")
}

// Reset clears the batch
func (b *RocksDBBatch) Reset() {
	b.batch.Clear()
}

// Close releases batch resources
func (b *RocksDBBatch) Close() error {
	b.batch.Destroy()
	return nil
}
