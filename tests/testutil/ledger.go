package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/infrastructure/config"
	"github.com/jewelryerp/backend/internal/infrastructure/event"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// LedgerEnv is a migrated in-memory ledger database with a transaction scope
// that writes domain events into the real outbox table.
type LedgerEnv struct {
	DB         *gorm.DB
	Scope      *persistence.GormTransactionScope
	Serializer *event.EventSerializer
	Publisher  *event.OutboxPublisher
	Outbox     *event.GormOutboxRepository
}

// NewLedgerEnv opens the database and closes it when the test ends.
// The sqlite pool has a single connection, so code running inside
// Scope.Execute must only use the repositories it is handed.
func NewLedgerEnv(t *testing.T, opts ...persistence.TransactionScopeOption) *LedgerEnv {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	serializer := event.NewLedgerEventSerializer()
	publisher := event.NewOutboxPublisher(serializer)

	return &LedgerEnv{
		DB:         db.DB,
		Scope:      persistence.NewGormTransactionScope(db.DB, publisher, opts...),
		Serializer: serializer,
		Publisher:  publisher,
		Outbox:     event.NewGormOutboxRepository(db.DB),
	}
}

// OutboxEventTypes returns the stored event types in no guaranteed order.
func (e *LedgerEnv) OutboxEventTypes(t *testing.T) []string {
	t.Helper()

	var types []string
	err := e.DB.WithContext(context.Background()).
		Model(&models.OutboxEntryModel{}).
		Pluck("event_type", &types).Error
	require.NoError(t, err)
	return types
}
