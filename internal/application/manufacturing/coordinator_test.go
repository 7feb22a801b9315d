package manufacturing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/lock"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
	"github.com/jewelryerp/backend/tests/testutil"
)

const (
	gold   = "GOLD@916"
	silver = "SILVER@925"
)

var (
	ctx      = context.Background()
	tenant   = testutil.TestTenantID()
	supplier = testutil.NewTestUUID("supplier-kundan")
)

type fixture struct {
	env   *testutil.LedgerEnv
	stock *metalledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewLedgerEnv(t)
	return &fixture{env: env, stock: metalledger.NewMetalStockLedger(env.Scope, zap.NewNop())}
}

func (f *fixture) coordinator(opts ...Option) *Coordinator {
	return NewCoordinator(f.env.Scope, f.stock, zap.NewNop(), opts...)
}

// purchase posts an event and acquires its lines into stock, as posting does
func (f *fixture) purchase(t *testing.T, number string, lines ...purchase.LineInput) uuid.UUID {
	t.Helper()
	ev, err := purchase.NewPurchaseEvent(tenant, number, supplier, "Kundan Bullion", testutil.Day(1), lines, nil)
	require.NoError(t, err)
	err = f.env.Scope.Execute(ctx, func(repos scope.Repositories) error {
		if err := repos.PurchaseEvents().Create(ctx, ev); err != nil {
			return err
		}
		for _, l := range ev.Lines {
			mv := metal.Movement{Source: metal.SourcePurchase, Reference: ev.Reference()}
			if _, err := f.stock.AcquireTx(ctx, repos, tenant, l.Key, l.GrossWeight, l.NetWeight, mv); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return ev.ID
}

func line(metalType, purity, gross, net string) purchase.LineInput {
	return purchase.LineInput{MetalType: metalType, Purity: purity, GrossWeight: testutil.D(gross), NetWeight: testutil.D(net), Rate: testutil.D("6000")}
}

func item(name, metalType, purity, net, qty string) ItemRequest {
	return ItemRequest{Name: name, MetalType: metalType, Purity: purity, NetWeight: testutil.D(net), Quantity: testutil.D(qty)}
}

func (f *fixture) available(t *testing.T, metalType, purity string) string {
	t.Helper()
	v, err := f.stock.Available(ctx, tenant, metalledger.KeyInput{MetalType: metalType, Purity: purity})
	require.NoError(t, err)
	return v.String()
}

func TestCoordinator_SaveConsumesStockAndLinks(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator()
	event := f.purchase(t, "PI-100", line("gold", "916", "10", "9.5"))

	rec, err := c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-1", PurchaseEventID: event,
		Items: []ItemRequest{item("Bangle", "GOLD", "916", "2", "2")},
	})
	require.NoError(t, err)
	assert.Equal(t, string(manufacturing.RecordActive), rec.Status)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "4", rec.Items[0].ConsumedWeight.String())
	assert.Equal(t, gold, rec.Items[0].MetalKey)

	assert.Equal(t, "5.5", f.available(t, "GOLD", "916"))

	remaining, err := c.RemainingForPurchase(ctx, tenant, event)
	require.NoError(t, err)
	assert.Equal(t, "6", remaining.Remaining[gold].String())
	assert.Empty(t, remaining.Blocked)

	_, err = c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-1", PurchaseEventID: event,
		Items: []ItemRequest{item("Ring", "GOLD", "916", "1", "1")},
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestCoordinator_SaveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator()
	event := f.purchase(t, "PI-101", line("GOLD", "916", "10", "9.5"), line("SILVER", "925", "50", "50"))

	_, err := c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-2", PurchaseEventID: event,
		Items: []ItemRequest{
			item("Anklet", "SILVER", "925", "20", "1"),
			item("Necklace", "GOLD", "916", "10", "1"),
		},
	})
	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "9.5", stockErr.Available.String())

	assert.Equal(t, "50", f.available(t, "SILVER", "925"))
	assert.Equal(t, "9.5", f.available(t, "GOLD", "916"))
	remaining, err := c.RemainingForPurchase(ctx, tenant, event)
	require.NoError(t, err)
	assert.Equal(t, "50", remaining.Remaining[silver].String())

	recs, total, err := c.ListRecords(ctx, tenant, &event, shared.DefaultPage())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
}

func TestCoordinator_EventGate(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator()

	empty := f.purchase(t, "PI-102")
	err := c.ValidateForConsumption(ctx, tenant, empty)
	var blocked *manufacturing.ConsumptionBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, manufacturing.BlockNoMetal, blocked.Reason)

	_, err = c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-3", PurchaseEventID: empty,
		Items: []ItemRequest{item("Chain", "GOLD", "916", "1", "1")},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	full := f.purchase(t, "PI-103", line("GOLD", "916", "5", "5"))
	_, err = c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-4", PurchaseEventID: full,
		Items: []ItemRequest{item("Chain", "GOLD", "916", "5", "1")},
	})
	require.NoError(t, err)

	remaining, err := c.RemainingForPurchase(ctx, tenant, full)
	require.NoError(t, err)
	assert.Empty(t, remaining.Remaining)
	assert.Equal(t, string(manufacturing.BlockFullyConsumed), remaining.Blocked)

	_, err = c.RemainingForPurchase(ctx, tenant, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCoordinator_GlobalPoolVersusStrictScope(t *testing.T) {
	f := newFixture(t)
	first := f.purchase(t, "PI-104", line("GOLD", "916", "5", "5"))
	f.purchase(t, "PI-105", line("GOLD", "916", "5", "5"))

	strict := f.coordinator(WithStrictEventScope(true))
	_, err := strict.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-5", PurchaseEventID: first,
		Items: []ItemRequest{item("Haram", "GOLD", "916", "8", "1")},
	})
	var blocked *manufacturing.ConsumptionBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, manufacturing.BlockExceedsEvent, blocked.Reason)
	assert.Equal(t, "10", f.available(t, "GOLD", "916"))

	_, err = f.coordinator().SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-5", PurchaseEventID: first,
		Items: []ItemRequest{item("Haram", "GOLD", "916", "8", "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", f.available(t, "GOLD", "916"))
}

func TestCoordinator_CancelRestoresEverything(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator()
	event := f.purchase(t, "PI-106", line("GOLD", "916", "10", "9.5"))
	rec, err := c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-6", PurchaseEventID: event,
		Items: []ItemRequest{item("Ring", "GOLD", "916", "1.5", "2"), item("Stud", "GOLD", "916", "0.5", "4")},
	})
	require.NoError(t, err)
	assert.Equal(t, "4.5", f.available(t, "GOLD", "916"))

	result, err := c.CancelManufacturingRecord(ctx, tenant, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, string(shared.ReversalComplete), result.Outcome)
	assert.Equal(t, string(manufacturing.RecordCancelled), result.Status)
	assert.Len(t, result.Reversed, 2)
	assert.Equal(t, "9.5", f.available(t, "GOLD", "916"))

	remaining, err := c.RemainingForPurchase(ctx, tenant, event)
	require.NoError(t, err)
	assert.Equal(t, "10", remaining.Remaining[gold].String())

	_, err = c.CancelManufacturingRecord(ctx, tenant, rec.ID)
	assert.ErrorIs(t, err, shared.ErrDuplicateProcessing)
}

func TestCoordinator_PartialCancelThenRetry(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator()
	event := f.purchase(t, "PI-107", line("GOLD", "916", "10", "10"), line("SILVER", "925", "40", "40"))
	rec, err := c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
		RecordNumber: "MR-7", PurchaseEventID: event,
		Items: []ItemRequest{item("Pendant", "GOLD", "916", "3", "1"), item("Payal", "SILVER", "925", "15", "1")},
	})
	require.NoError(t, err)
	var silverItem uuid.UUID
	for _, it := range rec.Items {
		if it.MetalKey == silver {
			silverItem = it.ID
		}
	}

	linkConsumed := func(v string) {
		require.NoError(t, f.env.DB.Model(&models.ConsumptionLinkModel{}).
			Where("purchase_event_id = ? AND metal_key = ?", event, silver).
			Update("consumed", testutil.D(v)).Error)
	}
	linkConsumed("0")

	result, err := c.CancelManufacturingRecord(ctx, tenant, rec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPartialReversal)
	var partial *shared.PartialReversalError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, partial.Succeeded)
	require.NotNil(t, result)
	assert.Equal(t, string(shared.ReversalPartial), result.Outcome)
	assert.Equal(t, string(manufacturing.RecordPartiallyCancelled), result.Status)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, silverItem.String(), result.Failures[0].ItemID)
	assert.Equal(t, shared.CodeInvalidState, result.Failures[0].Code)

	assert.Equal(t, "10", f.available(t, "GOLD", "916"))
	assert.Equal(t, "25", f.available(t, "SILVER", "925"))

	linkConsumed("15")
	result, err = c.CancelManufacturingRecord(ctx, tenant, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{silverItem}, result.Reversed)
	assert.Equal(t, string(manufacturing.RecordCancelled), result.Status)
	assert.Equal(t, "40", f.available(t, "SILVER", "925"))
}

func TestCoordinator_LockedConcurrentSaves(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(WithLocker(lock.NewLocalLocker(), 0))
	event := f.purchase(t, "PI-108", line("GOLD", "916", "10", "10"))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.SaveManufacturingRecord(ctx, tenant, SaveRecordRequest{
				RecordNumber: "MR-L" + string(rune('A'+n)), PurchaseEventID: event,
				Items: []ItemRequest{item("Coin", "GOLD", "916", "3", "1")},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, "1", f.available(t, "GOLD", "916"))
}
