package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/config"
)

// IdempotencyStoreFactory picks the idempotency store for the outbox handlers
type IdempotencyStoreFactory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
	fallback    shared.IdempotencyStore
	connect     func(config.RedisConfig) (*redis.Client, error)
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithFallback sets the store used when Redis is disabled or unreachable.
// The server passes the database-backed store here.
func WithFallback(store shared.IdempotencyStore) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.fallback = store
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
		connect:     NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable,
// otherwise the fallback, otherwise an in-memory store.
func (f *IdempotencyStoreFactory) CreateStore() shared.IdempotencyStore {
	if f.redisConfig.Enabled {
		client, err := f.connect(f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
			return NewRedisIdempotencyStore(client, "")
		}
		f.logger.Warn("Redis unavailable for idempotency", zap.Error(err))
	}

	if f.fallback != nil {
		f.logger.Info("using fallback idempotency store", zap.String("type", fmt.Sprintf("%T", f.fallback)))
		return f.fallback
	}

	f.logger.Warn("using in-memory idempotency store; duplicates are possible across instances")
	return NewInMemoryIdempotencyStore()
}
