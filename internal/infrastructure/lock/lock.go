// Package lock provides named mutual exclusion across goroutines or, backed
// by Redis, across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

const defaultKeyPrefix = "ledger:lock:"

// RedisLocker obtains locks with bsm/redislock. Obtain retries with linear
// backoff until the context ends.
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
	backoff   time.Duration
	logger    *zap.Logger
}

// NewRedisLocker wraps a connected client
func NewRedisLocker(client redis.UniversalClient, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    redislock.New(client),
		keyPrefix: defaultKeyPrefix,
		backoff:   50 * time.Millisecond,
		logger:    logger,
	}
}

// Acquire blocks until key is held or ctx is done. A lock that could not be
// obtained in time is a CONCURRENCY_CONFLICT.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lk, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, shared.NewDomainError(shared.CodeConcurrencyConflict, "lock "+key+" is held by another process")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return func() {
		// the caller's context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// LocalLocker serializes holders of the same key within one process. It is
// used when Redis is disabled and in tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done. ttl is ignored.
func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, shared.NewDomainError(shared.CodeConcurrencyConflict, "lock "+key+" is held by another goroutine")
	}
}
