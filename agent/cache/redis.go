package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-backed Cache for multi-process deployments where
// process-local LRU-by-insertion is insufficient. TTL eviction is delegated
// to Redis key expiry (SET ... EX); insertion-order (LRU) bookkeeping is kept
// in a sorted set keyed by insertion timestamp so capacity overflow can still
// evict the oldest entry as spec §4.3 requires.
type RedisCache struct {
	rdb       *redis.Client
	keyPrefix string
	orderKey  string
	capacity  int
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// Client is a connected go-redis client. Required.
	Client *redis.Client
	// KeyPrefix namespaces Action Cache keys in the shared Redis keyspace.
	KeyPrefix string
	// Capacity bounds how many entries are retained before the oldest (by
	// insertion time) is evicted. Defaults to DefaultCapacity.
	Capacity int
}

// NewRedisCache constructs a RedisCache from opts.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	if opts.Client == nil {
		return nil, errors.New("cache: redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "actioncache:"
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisCache{
		rdb:       opts.Client,
		keyPrefix: prefix,
		orderKey:  prefix + "order",
		capacity:  capacity,
	}, nil
}

func (c *RedisCache) fullKey(key string) string { return c.keyPrefix + key }

func (c *RedisCache) Get(ctx context.Context, key string) (map[string]any, bool) {
	raw, err := c.rdb.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value: %w", err)
	}
	now := float64(time.Now().UnixNano())
	if err := c.rdb.Set(ctx, c.fullKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	if err := c.rdb.ZAdd(ctx, c.orderKey, redis.Z{Score: now, Member: key}).Err(); err != nil {
		return fmt.Errorf("cache: track insertion order: %w", err)
	}
	if err := c.evictOverflow(ctx); err != nil {
		return err
	}
	return nil
}

func (c *RedisCache) evictOverflow(ctx context.Context) error {
	count, err := c.rdb.ZCard(ctx, c.orderKey).Result()
	if err != nil {
		return fmt.Errorf("cache: count entries: %w", err)
	}
	overflow := count - int64(c.capacity)
	if overflow <= 0 {
		return nil
	}
	oldest, err := c.rdb.ZRange(ctx, c.orderKey, 0, overflow-1).Result()
	if err != nil {
		return fmt.Errorf("cache: list oldest entries: %w", err)
	}
	for _, key := range oldest {
		_ = c.rdb.Del(ctx, c.fullKey(key)).Err()
	}
	if len(oldest) > 0 {
		members := make([]any, len(oldest))
		for i, k := range oldest {
			members[i] = k
		}
		_ = c.rdb.ZRem(ctx, c.orderKey, members...).Err()
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return c.rdb.ZRem(ctx, c.orderKey, key).Err()
}

func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, c.keyPrefix+"*"+pattern+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key := full[len(c.keyPrefix):]
		if err := c.Delete(ctx, key); err != nil {
			return err
		}
	}
	return iter.Err()
}

// CleanupExpired is a no-op: Redis key expiry handles TTL eviction natively.
// The insertion-order sorted set may accumulate stale members for keys that
// already expired; evictOverflow self-heals this by deleting already-gone
// keys the next time capacity is exceeded.
func (c *RedisCache) CleanupExpired(context.Context) {}
