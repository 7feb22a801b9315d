package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/infrastructure/config"
)

func TestIdempotencyStoreFactory_DisabledRedisUsesFallback(t *testing.T) {
	fallback := NewInMemoryIdempotencyStore()
	defer fallback.Close()

	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}, WithFallback(fallback))
	f.connect = func(config.RedisConfig) (*redis.Client, error) {
		t.Fatal("redis must not be dialled when disabled")
		return nil, nil
	}

	assert.Same(t, fallback, f.CreateStore())
}

func TestIdempotencyStoreFactory_UnreachableRedis(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	f.connect = func(config.RedisConfig) (*redis.Client, error) {
		return nil, errors.New("connection refused")
	}

	store := f.CreateStore()
	defer store.Close()
	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)
}

func TestIdempotencyStoreFactory_RedisAvailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	f.connect = func(config.RedisConfig) (*redis.Client, error) { return client, nil }

	store := f.CreateStore()
	defer store.Close()
	rs, ok := store.(*RedisIdempotencyStore)
	require.True(t, ok)
	assert.Equal(t, defaultIdempotencyPrefix, rs.keyPrefix)
}

func TestRedisIdempotencyStore_WrapsClientErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisIdempotencyStore(client, "test:")
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "evt", time.Minute)
	assert.ErrorContains(t, err, "failed to mark evt as processed")

	_, err = store.IsProcessed(ctx, "evt")
	assert.ErrorContains(t, err, "failed to check evt")

	assert.ErrorContains(t, store.Release(ctx, "evt"), "failed to release evt")
}
