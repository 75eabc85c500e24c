// Package cache provides ResultCache implementations backed by Redis and by
// process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/p2pwallet/wallet/pkg/domain/transfer"
	"github.com/redis/go-redis/v9"
)

// RedisResultCache implements cache.ResultCache using Redis. Entries expire
// with the TTL passed to Set, matching the idempotency retention window.
type RedisResultCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisResultCache creates a RedisResultCache from redis options.
func NewRedisResultCache(opt *redis.Options, prefix string, logger *slog.Logger) *RedisResultCache {
	return &RedisResultCache{
		client: redis.NewClient(opt),
		prefix: prefix,
		logger: logger,
	}
}

func (r *RedisResultCache) key(key string) string {
	return r.prefix + key
}

// Get returns the cached result for key, or (nil, nil) on a miss.
func (r *RedisResultCache) Get(ctx context.Context, key string) (*transfer.Result, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("result cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		r.logger.Error("result cache get error", "key", key, "error", err)
		return nil, err
	}
	var result transfer.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		r.logger.Error("result cache unmarshal error", "key", key, "error", err)
		return nil, err
	}
	r.logger.Debug("result cache hit", "key", key, "txId", result.TxID)
	return &result, nil
}

// Set stores the result for key with the given TTL.
func (r *RedisResultCache) Set(
	ctx context.Context,
	key string,
	result *transfer.Result,
	ttl time.Duration,
) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		r.logger.Error("result cache set error", "key", key, "error", err)
		return err
	}
	return nil
}
