package db

import (
	"bytes"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("chainstore")

// BoltProvider implements DatabaseProvider over a single bbolt bucket.
// Every write transaction is fsynced on commit.
type BoltProvider struct {
	once sync.Once
	db   *bolt.DB
}

// NewBoltProvider opens (or creates) the bbolt file at path
func NewBoltProvider(path string) (DatabaseProvider, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create bolt bucket")
	}

	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		// bolt memory is only valid inside the transaction
		value = copyBytes(tx.Bucket(boltBucket).Get(key))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bolt get")
	}
	return value, nil
}

func (p *BoltProvider) Has(key []byte) (bool, error) {
	var found bool
	err := p.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "bolt has")
	}
	return found, nil
}

func (p *BoltProvider) Put(key, value []byte) error {
	err := p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
	return errors.Wrap(err, "bolt put")
}

func (p *BoltProvider) Delete(key []byte) error {
	err := p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
	return errors.Wrap(err, "bolt delete")
}

func (p *BoltProvider) Batch() DatabaseBatch {
	return &BoltBatch{db: p.db}
}

// seek runs fn on a cursor and returns a copy of the entry it lands on when
// that entry lies within prefix.
func (p *BoltProvider) seek(prefix []byte, fn func(c *bolt.Cursor) ([]byte, []byte)) ([]byte, []byte, error) {
	var key, value []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		k, v := fn(tx.Bucket(boltBucket).Cursor())
		if k != nil && bytes.HasPrefix(k, prefix) {
			key, value = copyBytes(k), copyBytes(v)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "bolt cursor")
	}
	return key, value, nil
}

func (p *BoltProvider) First(prefix []byte) ([]byte, []byte, error) {
	return p.seek(prefix, func(c *bolt.Cursor) ([]byte, []byte) {
		return c.Seek(prefix)
	})
}

func (p *BoltProvider) Last(prefix []byte) ([]byte, []byte, error) {
	end := prefixEnd(prefix)
	return p.seek(prefix, func(c *bolt.Cursor) ([]byte, []byte) {
		if end == nil {
			return c.Last()
		}
		if k, _ := c.Seek(end); k == nil {
			return c.Last()
		}
		return c.Prev()
	})
}

func (p *BoltProvider) Lower(prefix, key []byte) ([]byte, []byte, error) {
	return p.seek(prefix, func(c *bolt.Cursor) ([]byte, []byte) {
		if k, _ := c.Seek(key); k == nil {
			return c.Last()
		}
		return c.Prev()
	})
}

func (p *BoltProvider) Higher(prefix, key []byte) ([]byte, []byte, error) {
	return p.seek(prefix, func(c *bolt.Cursor) ([]byte, []byte) {
		k, v := c.Seek(key)
		if k != nil && bytes.Equal(k, key) {
			return c.Next()
		}
		return k, v
	})
}

func (p *BoltProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	err := p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !callback(copyBytes(k), copyBytes(v)) {
				break
			}
		}
		return nil
	})
	return errors.Wrap(err, "bolt iterate")
}

func (p *BoltProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

type boltOp struct {
	key    []byte
	value  []byte
	delete bool
}

// BoltBatch buffers operations and applies them in one bolt write transaction
type BoltBatch struct {
	db  *bolt.DB
	ops []boltOp
}

func (b *BoltBatch) Put(key, value []byte) {
	b.ops = append(b.ops, boltOp{key: copyBytes(key), value: copyBytes(value)})
}

func (b *BoltBatch) Delete(key []byte) {
	b.ops = append(b.ops, boltOp{key: copyBytes(key), delete: true})
}

func (b *BoltBatch) Len() int {
	return len(b.ops)
}

func (b *BoltBatch) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "bolt write batch")
}

func (b *BoltBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *BoltBatch) Close() error {
	b.ops = nil
	return nil
}
