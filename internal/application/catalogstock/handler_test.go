package catalogstock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/cache"
	"github.com/jewelryerp/backend/internal/infrastructure/event"
	"github.com/jewelryerp/backend/tests/testutil"
)

var (
	ctx      = context.Background()
	tenant   = testutil.TestTenantID()
	customer = testutil.NewTestUUID("customer-meera")
	ring     = testutil.NewTestUUID("catalog-ring")
	bangle   = testutil.NewTestUUID("catalog-bangle")
)

type fixture struct {
	env       *testutil.LedgerEnv
	svc       *Service
	handler   *event.IdempotentHandler
	processor *event.OutboxProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewLedgerEnv(t)
	svc := NewService(env.Scope, zap.NewNop())
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	handler := event.NewIdempotentHandler(NewStockChangeHandler(svc, zap.NewNop()), store, zap.NewNop(),
		event.WithKeyPrefix("catalog-stock:"))

	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(handler)
	processor := event.NewOutboxProcessor(env.Outbox, bus, env.Serializer, event.DefaultOutboxProcessorConfig(), zap.NewNop())
	return &fixture{env: env, svc: svc, handler: handler, processor: processor}
}

func (f *fixture) setLevel(t *testing.T, item uuid.UUID, name, qty string) {
	t.Helper()
	_, err := f.svc.SetLevel(ctx, tenant, SetLevelRequest{CatalogItemID: item, Name: name, Quantity: testutil.D(qty)})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, item uuid.UUID) string {
	t.Helper()
	l, err := f.svc.GetLevel(ctx, tenant, item)
	require.NoError(t, err)
	return l.Quantity.String()
}

// queue writes the bill's stock event to the outbox the way posting does
func (f *fixture) queue(t *testing.T, bill *sales.SaleBill) {
	t.Helper()
	err := f.env.Scope.Execute(ctx, func(repos scope.Repositories) error {
		return scope.PublishEvents(ctx, repos, bill)
	})
	require.NoError(t, err)
}

func newBill(t *testing.T, number string, items ...sales.ItemInput) *sales.SaleBill {
	t.Helper()
	b, err := sales.NewSaleBill(tenant, number, customer, "Meera", testutil.Day(3), items, nil)
	require.NoError(t, err)
	return b
}

func sold(item uuid.UUID, qty string) sales.ItemInput {
	return sales.ItemInput{CatalogItemID: item, Quantity: testutil.D(qty), UnitPrice: testutil.D("1000")}
}

func TestStockChangeHandler_ReduceThenRestoreThroughOutbox(t *testing.T) {
	f := newFixture(t)
	f.setLevel(t, ring, "Temple ring", "5")
	f.setLevel(t, bangle, "Kada bangle", "2")

	bill := newBill(t, "SB-1", sold(ring, "2"), sold(bangle, "1"))
	bill.RequestStockReduction()
	f.queue(t, bill)

	assert.Equal(t, 1, f.processor.ProcessOnce(ctx))
	assert.Equal(t, "3", f.quantity(t, ring))
	assert.Equal(t, "1", f.quantity(t, bangle))

	bill.RequestStockRestore()
	f.queue(t, bill)

	assert.Equal(t, 1, f.processor.ProcessOnce(ctx))
	assert.Equal(t, "5", f.quantity(t, ring))
	assert.Equal(t, "2", f.quantity(t, bangle))
	assert.Equal(t, int64(2), f.handler.GetMetrics().Stats().EventsProcessed)
}

func TestStockChangeHandler_DuplicateDeliveryAppliedOnce(t *testing.T) {
	f := newFixture(t)
	f.setLevel(t, ring, "Temple ring", "5")

	bill := newBill(t, "SB-2", sold(ring, "2"))
	bill.RequestStockReduction()
	evt := bill.GetDomainEvents()[0]

	require.NoError(t, f.handler.Handle(ctx, evt))
	require.NoError(t, f.handler.Handle(ctx, evt))

	assert.Equal(t, "3", f.quantity(t, ring))
	assert.Equal(t, int64(1), f.handler.GetMetrics().Stats().EventsDuplicate)
}

func TestStockChangeHandler_ShortStockIsRetried(t *testing.T) {
	f := newFixture(t)
	f.setLevel(t, ring, "Temple ring", "1")
	f.setLevel(t, bangle, "Kada bangle", "4")

	bill := newBill(t, "SB-3", sold(bangle, "1"), sold(ring, "2"))
	bill.RequestStockReduction()
	evt := bill.GetDomainEvents()[0]

	err := f.handler.Handle(ctx, evt)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	// nothing from the bill was applied
	assert.Equal(t, "4", f.quantity(t, bangle))
	assert.Equal(t, "1", f.quantity(t, ring))

	// the failed key was released, so a later delivery is processed
	f.setLevel(t, ring, "Temple ring", "3")
	require.NoError(t, f.handler.Handle(ctx, evt))
	assert.Equal(t, "1", f.quantity(t, ring))
	assert.Equal(t, "3", f.quantity(t, bangle))
}

func TestStockChangeHandler_RestoreCreatesMissingLevel(t *testing.T) {
	f := newFixture(t)
	bill := newBill(t, "SB-4", sold(ring, "2"))
	bill.RequestStockRestore()

	require.NoError(t, f.handler.Handle(ctx, bill.GetDomainEvents()[0]))
	assert.Equal(t, "2", f.quantity(t, ring))

	levels, err := f.svc.ListLevels(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, levels, 1)
}

func TestStockChangeHandler_RejectsForeignEvents(t *testing.T) {
	f := newFixture(t)
	h := NewStockChangeHandler(f.svc, nil)
	err := h.Handle(ctx, testutil.NewTestEvent(sales.EventTypeCatalogStockReductionRequested, tenant))
	assert.Error(t, err)
}
