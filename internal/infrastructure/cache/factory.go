package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Drivers accepted by cache.driver and idempotency.driver
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// NewRedisClient connects to redis and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// New builds the read-path cache selected by cfg.Driver. namespace separates
// value types sharing one redis database.
func New[V any](cfg config.CacheConfig, client redis.UniversalClient, namespace string, log *zap.Logger) (settlement.Cache[V], error) {
	switch cfg.Driver {
	case DriverNone:
		return NoopCache[V]{}, nil
	case DriverMemory, "":
		return NewTTLCache[V](), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("cache driver redis requires a redis client")
		}
		log.Debug("using redis cache", zap.String("namespace", namespace))
		return NewRedisCache[V](client, cfg.KeyPrefix+namespace+":"), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// NewIdempotencyStore builds the Idempotency-Key store selected by cfg.Driver
func NewIdempotencyStore(cfg config.IdempotencyConfig, client redis.UniversalClient, keyPrefix string) (shared.IdempotencyStore, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewInMemoryIdempotencyStore(), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("idempotency driver redis requires a redis client")
		}
		return NewRedisIdempotencyStore(client, keyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown idempotency driver %q", cfg.Driver)
	}
}
