package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

func purchaseMovement(number string) metal.Movement {
	return metal.Movement{
		Source:    metal.SourcePurchase,
		Reference: metal.Reference{Type: metal.RefPurchaseInvoice, ID: uuid.New(), Number: number},
		OccurredAt: day(1),
	}
}

func TestGormMetalAccountRepository_GetOrCreateForUpdate(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormMetalAccountRepository(db)
	key := metal.MustMetalKey("GOLD", "22K")

	first, err := repo.GetOrCreateForUpdate(testCtx, testTenant, metal.PoolStock, key)
	require.NoError(t, err)
	assert.True(t, first.Available.IsZero())

	second, err := repo.GetOrCreateForUpdate(testCtx, testTenant, metal.PoolStock, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Key.Equal(key))

	other, err := repo.GetOrCreateForUpdate(testCtx, testTenant, metal.PoolExchange, key)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "pools keep separate accounts")

	all, err := repo.ListAll(testCtx, testTenant)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.FindByKey(testCtx, testTenant, metal.PoolStock, metal.MustMetalKey("SILVER", "925"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormMetalAccountRepository_SaveWithLock(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormMetalAccountRepository(db)
	key := metal.MustMetalKey("GOLD", "22K")

	created, err := repo.GetOrCreateForUpdate(testCtx, testTenant, metal.PoolStock, key)
	require.NoError(t, err)

	a, err := repo.FindByID(testCtx, testTenant, created.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(testCtx, testTenant, created.ID)
	require.NoError(t, err)

	_, err = a.Acquire(dec("100"), dec("97"), purchaseMovement("PI-1"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(testCtx, a))

	_, err = b.Acquire(dec("10"), dec("9"), purchaseMovement("PI-2"))
	require.NoError(t, err)
	err = repo.SaveWithLock(testCtx, b)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := repo.FindByKey(testCtx, testTenant, metal.PoolStock, key)
	require.NoError(t, err)
	assert.Equal(t, "97", stored.Available.String())
	assert.Equal(t, "100", stored.TotalGross.String())
	assert.Equal(t, a.Version, stored.Version)
}

func TestGormMetalEntryRepository(t *testing.T) {
	db := newSQLiteDB(t)
	accounts := NewGormMetalAccountRepository(db)
	entries := NewGormMetalEntryRepository(db)

	account, err := accounts.GetOrCreateForUpdate(testCtx, testTenant, metal.PoolStock, metal.MustMetalKey("GOLD", "22K"))
	require.NoError(t, err)

	mv := purchaseMovement("PI-7")
	acquired, err := account.Acquire(dec("100"), dec("97"), mv)
	require.NoError(t, err)
	consumed, err := account.Consume(dec("40"), metal.Movement{
		Source:    metal.SourceConsumption,
		Reference: metal.Reference{Type: metal.RefManufacturingRecord, ID: uuid.New()},
	})
	require.NoError(t, err)
	require.NoError(t, entries.Append(testCtx, acquired, consumed))
	require.NoError(t, entries.Append(testCtx))

	t.Run("exists by reference is scoped to the pool", func(t *testing.T) {
		ok, err := entries.ExistsByReference(testCtx, testTenant, metal.PoolStock, metal.RefPurchaseInvoice, mv.Reference.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = entries.ExistsByReference(testCtx, testTenant, metal.PoolExchange, metal.RefPurchaseInvoice, mv.Reference.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("net movement equals available", func(t *testing.T) {
		net, err := entries.NetMovement(testCtx, testTenant, account.ID)
		require.NoError(t, err)
		assert.True(t, net.Equal(account.Available), "net %s, available %s", net, account.Available)
	})

	t.Run("list is newest first", func(t *testing.T) {
		list, total, err := entries.ListByAccount(testCtx, testTenant, account.ID, shared.Page{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, list, 2)
		assert.Equal(t, metal.DirectionOut, list[0].Direction)
		assert.Equal(t, "57", list[0].AvailableAfter.String())
		assert.Equal(t, metal.DirectionIn, list[1].Direction)
		assert.Equal(t, "PI-7", list[1].Reference.Number)
	})
}
