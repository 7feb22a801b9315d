package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/cache"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestIdempotentHandler_SkipsDuplicateDelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())
	boom := errors.New("catalog stock insufficient")
	inner.On("Handle", mock.Anything, event).Return(boom).Once()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	err := handler.Handle(context.Background(), event)
	assert.ErrorIs(t, err, boom)

	processed, err := store.IsProcessed(context.Background(), event.EventID().String())
	require.NoError(t, err)
	assert.False(t, processed, "a failed delivery must be retryable")

	require.NoError(t, handler.Handle(context.Background(), event))
	inner.AssertExpectations(t)
	assert.Equal(t, int64(1), handler.GetMetrics().Stats().EventsFailed)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockRestoreRequested, uuid.New())

	store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).
		Return(false, errors.New("redis unavailable"))
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), event))
	store.AssertExpectations(t)
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_KeyPrefix(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())

	store.On("MarkProcessed", mock.Anything, "catalog-stock:"+event.EventID().String(), 2*time.Hour).Return(true, nil)
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithKeyPrefix("catalog-stock:"),
		WithIdempotencyConfig(shared.IdempotencyConfig{TTL: 2 * time.Hour, Enabled: true}),
	)

	require.NoError(t, handler.Handle(context.Background(), event))
	store.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
	)

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))
	inner.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_ConcurrentDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Once()
	inner.On("EventTypes").Return([]string{sales.EventTypeCatalogStockReductionRequested})

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	assert.Equal(t, []string{sales.EventTypeCatalogStockReductionRequested}, handler.EventTypes())

	const workers = 32
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- handler.Handle(context.Background(), event)
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-errs)
	}

	inner.AssertNumberOfCalls(t, "Handle", 1)
	assert.Equal(t, int64(workers-1), handler.GetMetrics().Stats().EventsDuplicate)
}

func TestWrapHandlersWithIdempotency(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	wrapped := WrapHandlersWithIdempotency(
		[]shared.EventHandler{new(MockEventHandler), new(MockEventHandler)},
		store, zap.NewNop(),
	)

	require.Len(t, wrapped, 2)
	for _, h := range wrapped {
		_, ok := h.(*IdempotentHandler)
		assert.True(t, ok)
	}
}
