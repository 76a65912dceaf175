package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup is a Redis-backed Dedup for multi-process deployments, using
// SETNX semantics (SetNX) so only the first process to see a key within the
// window records it.
type RedisDedup struct {
	rdb       *redis.Client
	keyPrefix string
	window    time.Duration
}

// NewRedisDedup constructs a RedisDedup. window <= 0 defaults to DefaultWindow.
func NewRedisDedup(rdb *redis.Client, keyPrefix string, window time.Duration) (*RedisDedup, error) {
	if rdb == nil {
		return nil, errors.New("dedup: redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = "dedup:"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisDedup{rdb: rdb, keyPrefix: keyPrefix, window: window}, nil
}

func (d *RedisDedup) SeenOrRecord(ctx context.Context, userID, input, requestID string) (string, bool) {
	key := d.keyPrefix + hashKey(userID, input)
	ok, err := d.rdb.SetNX(ctx, key, requestID, d.window).Result()
	if err != nil || ok {
		// On a Redis error, fail open: treat as unseen so the request still
		// proceeds rather than silently dropping it as a duplicate.
		return "", false
	}
	original, err := d.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return original, true
}
