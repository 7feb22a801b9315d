package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// On postgres the locked reads must carry FOR UPDATE and saves must compare the version.
func TestMetalAccountRepository_PostgresLockingSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormMetalAccountRepository(db.DB)
	key := metal.MustMetalKey("GOLD", "22K")

	t.Run("find for update locks the row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "metal_accounts" WHERE tenant_id = \$1 AND pool = \$2 AND metal_key = \$3 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByKeyForUpdate(testCtx, testTenant, metal.PoolStock, key)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save compares the previous version", func(t *testing.T) {
		account, err := metal.NewMetalAccount(testTenant, metal.PoolStock, key)
		require.NoError(t, err)
		_, err = account.Acquire(dec("10"), dec("9"), metal.Movement{
			Source:    metal.SourcePurchase,
			Reference: metal.Reference{Type: metal.RefPurchaseInvoice, ID: uuid.New()},
		})
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "metal_accounts" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(testCtx, account)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
