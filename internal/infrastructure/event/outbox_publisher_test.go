package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

func TestOutboxPublisher_WriterCommitsWithTransaction(t *testing.T) {
	db := newOutboxTestDB(t)
	publisher := NewOutboxPublisher(NewLedgerEventSerializer(), WithMaxRetries(3))
	ctx := context.Background()

	event := newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New())
	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.Writer(tx).Write(ctx, event)
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, event.EventID(), pending[0].EventID)
	assert.Equal(t, event.TenantID(), pending[0].TenantID)
	assert.Equal(t, 3, pending[0].MaxRetries)
	assert.Equal(t, shared.OutboxStatusPending, pending[0].Status)
}

func TestOutboxPublisher_RollbackDiscardsEvents(t *testing.T) {
	db := newOutboxTestDB(t)
	publisher := NewOutboxPublisher(NewLedgerEventSerializer())
	ctx := context.Background()

	rollback := errors.New("insufficient stock")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.PublishWithTx(ctx, tx,
			newStockEvent(sales.EventTypeCatalogStockReductionRequested, uuid.New()),
			newStockEvent(sales.EventTypeCatalogStockRestoreRequested, uuid.New()),
		); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	counts, err := NewGormOutboxRepository(db).CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestOutboxPublisher_NoEvents(t *testing.T) {
	publisher := NewOutboxPublisher(NewLedgerEventSerializer())
	assert.NoError(t, publisher.PublishWithTx(context.Background(), nil))
}
