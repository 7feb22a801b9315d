package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/catalogstock"
	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

func newTestPurchaseEvent(t *testing.T, number string) *purchase.PurchaseEvent {
	t.Helper()
	ev, err := purchase.NewPurchaseEvent(testTenant, number, uuid.New(), "Shree Bullion", day(1),
		[]purchase.LineInput{
			{MetalType: "GOLD", Purity: "22K", GrossWeight: dec("100"), NetWeight: dec("97"), Rate: dec("6000")},
			{MetalType: "SILVER", Purity: "925", GrossWeight: dec("500"), NetWeight: dec("480"), Rate: dec("80")},
		},
		[]purchase.ExchangeInput{
			{MetalType: "GOLD", Purity: "18K", Weight: dec("10"), Value: dec("45000")},
		})
	require.NoError(t, err)
	return ev
}

func TestGormPurchaseEventRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormPurchaseEventRepository(db)

	ev := newTestPurchaseEvent(t, "PI-100")
	require.NoError(t, repo.Create(testCtx, ev))

	exists, err := repo.ExistsByNumber(testCtx, testTenant, ev.SupplierID, "PI-100")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByNumber(testCtx, testTenant, uuid.New(), "PI-100")
	require.NoError(t, err)
	assert.False(t, exists, "invoice numbers are per supplier")

	stored, err := repo.FindByID(testCtx, testTenant, ev.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	require.Len(t, stored.Exchanges, 1)
	assert.Equal(t, ev.Lines[0].Key.String(), stored.Lines[0].Key.String())
	assert.Equal(t, "SILVER", stored.Lines[1].Key.MetalType)
	assert.True(t, stored.GrandTotal.Equal(ev.GrandTotal))

	at := day(6)
	stored.Lines[0].ReversedAt = &at
	stored.Exchanges[0].RestoredAt = &at
	stored.MarkCancelled(false, at)
	require.NoError(t, repo.Save(testCtx, stored))

	reloaded, err := repo.FindByIDForUpdate(testCtx, testTenant, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusPartiallyCancelled, reloaded.Status)
	assert.NotNil(t, reloaded.Lines[0].ReversedAt)
	assert.Nil(t, reloaded.Lines[1].ReversedAt)
	assert.NotNil(t, reloaded.Exchanges[0].RestoredAt)

	list, total, err := repo.List(testCtx, testTenant, shared.DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list[0].Lines, 2)
}

func TestGormSaleBillRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormSaleBillRepository(db)
	ring := uuid.New()

	bill, err := sales.NewSaleBill(testTenant, "SB-1", uuid.New(), "Meera", day(2),
		[]sales.ItemInput{{CatalogItemID: ring, Name: "Ring", Quantity: dec("2"), UnitPrice: dec("15000")}},
		[]sales.ExchangeInput{{MetalType: "GOLD", Purity: "22K", GrossWeight: dec("5"), NetWeight: dec("4.5"), Value: dec("25000")}})
	require.NoError(t, err)
	require.NoError(t, repo.Create(testCtx, bill))

	exists, err := repo.ExistsByNumber(testCtx, testTenant, "SB-1")
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := repo.FindByID(testCtx, testTenant, bill.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, ring, stored.Items[0].CatalogItemID)
	require.Len(t, stored.Exchanges, 1)
	assert.Equal(t, "4.5", stored.Exchanges[0].NetWeight.String())
	assert.Equal(t, "5000", stored.GrandTotal.String())

	at := day(3)
	stored.Exchanges[0].ReversedAt = &at
	stored.MarkCancelled(true, at)
	require.NoError(t, repo.Save(testCtx, stored))

	reloaded, err := repo.FindByID(testCtx, testTenant, bill.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsCancelled())
	assert.NotNil(t, reloaded.Exchanges[0].ReversedAt)
}

func TestGormManufacturingRepositories(t *testing.T) {
	db := newSQLiteDB(t)
	records := NewGormManufacturingRecordRepository(db)
	links := NewGormConsumptionLinkRepository(db)
	eventID := uuid.New()

	rec, err := manufacturing.NewManufacturingRecord(testTenant, "MR-1", eventID, []manufacturing.ItemInput{
		{Name: "Bangle", MetalType: "GOLD", Purity: "22K", NetWeight: dec("12.5"), Quantity: dec("2")},
		{Name: "Chain", MetalType: "GOLD", Purity: "22K", NetWeight: dec("8"), Quantity: dec("1")},
	})
	require.NoError(t, err)
	require.NoError(t, records.Create(testCtx, rec))

	exists, err := records.ExistsByNumber(testCtx, testTenant, "MR-1")
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := records.FindByID(testCtx, testTenant, rec.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "25", stored.Items[0].ConsumedWeight.String())

	require.NoError(t, stored.MarkItemReversed(stored.Items[0].ID, day(4)))
	stored.RefreshStatus(day(4))
	require.NoError(t, records.Save(testCtx, stored))

	list, total, err := records.List(testCtx, testTenant, &eventID, shared.DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, manufacturing.RecordPartiallyCancelled, list[0].Status)
	assert.True(t, list[0].Items[0].IsReversed())
	assert.False(t, list[0].Items[1].IsReversed())

	t.Run("consumption links", func(t *testing.T) {
		key := rec.Items[0].Key.String()
		link, err := links.GetOrCreateForUpdate(testCtx, testTenant, eventID, key)
		require.NoError(t, err)
		assert.True(t, link.Consumed.IsZero())

		stale, err := links.GetOrCreateForUpdate(testCtx, testTenant, eventID, key)
		require.NoError(t, err)
		assert.Equal(t, link.ID, stale.ID)

		link.Add(dec("33"))
		require.NoError(t, links.SaveWithLock(testCtx, link))

		stale.Add(dec("1"))
		assert.ErrorIs(t, links.SaveWithLock(testCtx, stale), shared.ErrConcurrencyConflict)

		all, err := links.ListByEvent(testCtx, testTenant, eventID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "33", all[0].Consumed.String())
	})
}

func TestGormCatalogStockRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormCatalogStockRepository(db)
	item := uuid.New()

	level, err := catalogstock.NewLevel(testTenant, item, "Ring", dec("5"))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(testCtx, level))

	replacement, err := catalogstock.NewLevel(testTenant, item, "Ring 22K", dec("8"))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(testCtx, replacement))

	stored, err := repo.FindByItemForUpdate(testCtx, testTenant, item)
	require.NoError(t, err)
	assert.Equal(t, level.ID, stored.ID, "upsert keeps the original row")
	assert.Equal(t, "8", stored.Quantity.String())
	assert.Equal(t, "Ring 22K", stored.Name)

	require.NoError(t, stored.Reduce(dec("3")))
	require.NoError(t, repo.SaveWithLock(testCtx, stored))

	levels, err := repo.List(testCtx, testTenant)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "5", levels[0].Quantity.String())

	_, err = repo.FindByItem(testCtx, testTenant, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
