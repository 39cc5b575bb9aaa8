package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 200

// RedisCache stores JSON-encoded values in redis under keyPrefix.
// Redis failures degrade to a cache miss and are logged, never returned.
type RedisCache[V any] struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a cache whose keys are namespaced by keyPrefix
func NewRedisCache[V any](client redis.UniversalClient, keyPrefix string) *RedisCache[V] {
	return &RedisCache[V]{client: client, keyPrefix: keyPrefix}
}

// Get decodes the stored value
func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L(ctx).Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.L(ctx).Warn("redis cache entry undecodable", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set encodes value and stores it with ttl
func (c *RedisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.L(ctx).Warn("redis cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, ttl).Err(); err != nil {
		logger.L(ctx).Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key
func (c *RedisCache[V]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		logger.L(ctx).Warn("redis cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// DeletePrefix removes every key under prefix using SCAN, never KEYS
func (c *RedisCache[V]) DeletePrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
			logger.L(ctx).Warn("redis cache prefix delete failed", zap.String("prefix", prefix), zap.Error(err))
		}
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		logger.L(ctx).Warn("redis cache scan failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

var _ settlement.Cache[int] = (*RedisCache[int])(nil)
