package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisScanPage = 1000

// RedisProvider implements DatabaseProvider for Redis.
// Values live under "<keyspace>:v:<key>"; key order comes from a sorted set
// "<keyspace>:idx" whose members all share score 0, so ZRANGEBYLEX walks them
// byte-lexicographically. Batches run inside MULTI/EXEC.
type RedisProvider struct {
	client   *redis.Client
	ctx      context.Context
	keyspace string
}

// NewRedisProvider connects to address and namespaces every key under keyspace
func NewRedisProvider(address string, keyspace string) (DatabaseProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisProvider{
		client:   client,
		ctx:      ctx,
		keyspace: keyspace,
	}, nil
}

func (p *RedisProvider) valueKey(key []byte) string {
	return p.keyspace + ":v:" + string(key)
}

func (p *RedisProvider) indexKey() string {
	return p.keyspace + ":idx"
}

// Get retrieves a value by key
func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, p.valueKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, errors.Wrap(err, "redis get")
	}
	return value, nil
}

// Put stores a key-value pair
func (p *RedisProvider) Put(key, value []byte) error {
	b := p.Batch()
	defer b.Close()
	b.Put(key, value)
	return b.Write()
}

// Delete removes a key-value pair
func (p *RedisProvider) Delete(key []byte) error {
	b := p.Batch()
	defer b.Close()
	b.Delete(key)
	return b.Write()
}

// Has checks if a key exists
func (p *RedisProvider) Has(key []byte) (bool, error) {
	count, err := p.client.Exists(p.ctx, p.valueKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return count > 0, nil
}

// lexMax is the exclusive upper lex bound of prefix
func lexMax(prefix []byte) string {
	end := prefixEnd(prefix)
	if end == nil {
		return "+"
	}
	return "(" + string(end)
}

// entry loads the value for the single member returned by a lex range query
func (p *RedisProvider) entry(members []string, err error) ([]byte, []byte, error) {
	if err != nil {
		return nil, nil, errors.Wrap(err, "redis range by lex")
	}
	if len(members) == 0 {
		return nil, nil, nil
	}
	key := []byte(members[0])
	value, err := p.Get(key)
	if err != nil || value == nil {
		return nil, nil, err
	}
	return key, value, nil
}

func (p *RedisProvider) First(prefix []byte) ([]byte, []byte, error) {
	return p.entry(p.client.ZRangeByLex(p.ctx, p.indexKey(), &redis.ZRangeBy{
		Min:   "[" + string(prefix),
		Max:   lexMax(prefix),
		Count: 1,
	}).Result())
}

func (p *RedisProvider) Last(prefix []byte) ([]byte, []byte, error) {
	return p.entry(p.client.ZRevRangeByLex(p.ctx, p.indexKey(), &redis.ZRangeBy{
		Min:   "[" + string(prefix),
		Max:   lexMax(prefix),
		Count: 1,
	}).Result())
}

func (p *RedisProvider) Lower(prefix, key []byte) ([]byte, []byte, error) {
	return p.entry(p.client.ZRevRangeByLex(p.ctx, p.indexKey(), &redis.ZRangeBy{
		Min:   "[" + string(prefix),
		Max:   "(" + string(key),
		Count: 1,
	}).Result())
}

func (p *RedisProvider) Higher(prefix, key []byte) ([]byte, []byte, error) {
	return p.entry(p.client.ZRangeByLex(p.ctx, p.indexKey(), &redis.ZRangeBy{
		Min:   "(" + string(key),
		Max:   lexMax(prefix),
		Count: 1,
	}).Result())
}

// IteratePrefix pages through the lex index
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	var offset int64
	for {
		members, err := p.client.ZRangeByLex(p.ctx, p.indexKey(), &redis.ZRangeBy{
			Min:    "[" + string(prefix),
			Max:    lexMax(prefix),
			Offset: offset,
			Count:  redisScanPage,
		}).Result()
		if err != nil {
			return errors.Wrap(err, "redis range by lex")
		}
		for _, m := range members {
			key := []byte(m)
			val, err := p.Get(key)
			if err != nil {
				return err
			}
			if val == nil {
				continue
			}
			if !fn(key, val) {
				return nil
			}
		}
		if len(members) < redisScanPage {
			return nil
		}
		offset += int64(len(members))
	}
}

// Close closes the database connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Batch returns a new batch for atomic operations
func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		provider: p,
		pipe:     p.client.TxPipeline(),
	}
}

// RedisBatch implements DatabaseBatch for Redis
type RedisBatch struct {
	provider *RedisProvider
	pipe     redis.Pipeliner
	n        int
}

// Put adds a key-value pair to the batch
func (b *RedisBatch) Put(key, value []byte) {
	p := b.provider
	b.pipe.Set(p.ctx, p.valueKey(key), value, 0)
	b.pipe.ZAdd(p.ctx, p.indexKey(), redis.Z{Score: 0, Member: string(key)})
	b.n++
}

// Delete adds a deletion to the batch
func (b *RedisBatch) Delete(key []byte) {
	p := b.provider
	b.pipe.Del(p.ctx, p.valueKey(key))
	b.pipe.ZRem(p.ctx, p.indexKey(), string(key))
	b.n++
}

func (b *RedisBatch) Len() int {
	return b.n
}

// Write commits all operations in the batch
func (b *RedisBatch) Write() error {
	if b.n == 0 {
		return nil
	}
	_, err := b.pipe.Exec(b.provider.ctx)
	return errors.Wrap(err, "redis exec")
}

// Reset clears the batch
func (b *RedisBatch) Reset() {
	b.pipe.Discard()
	b.pipe = b.provider.client.TxPipeline()
	b.n = 0
}

// Close releases batch resources
func (b *RedisBatch) Close() error {
	b.pipe.Discard()
	return nil
}
