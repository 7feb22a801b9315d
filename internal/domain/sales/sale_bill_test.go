package sales

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

func TestNewSaleBill(t *testing.T) {
	ring := uuid.New()
	items := []ItemInput{{CatalogItemID: ring, Name: "Ring", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(15000)}}
	exchanges := []ExchangeInput{{MetalType: "GOLD", Purity: "22K", GrossWeight: decimal.NewFromInt(3), NetWeight: decimal.RequireFromString("2.8"), Value: decimal.NewFromInt(12000)}}

	b, err := NewSaleBill(uuid.New(), "SB-1", uuid.New(), "Ravi", time.Now(), items, exchanges)

	require.NoError(t, err)
	assert.Equal(t, "30000", b.ItemsTotal.String())
	assert.Equal(t, "12000", b.ExchangeTotal.String())
	assert.Equal(t, "18000", b.GrandTotal.String())
	assert.Equal(t, "GOLD@916.6667", b.Exchanges[0].Key.String())

	b.RequestStockReduction()
	events := b.GetDomainEvents()
	require.Len(t, events, 1)
	evt := events[0].(*CatalogStockChangeEvent)
	assert.Equal(t, EventTypeCatalogStockReductionRequested, evt.EventType())
	assert.Equal(t, ring, evt.Lines[0].CatalogItemID)
}

func TestNewSaleBill_ExchangeAboveTotalOwesNothing(t *testing.T) {
	items := []ItemInput{{CatalogItemID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}}
	exchanges := []ExchangeInput{{MetalType: "GOLD", Purity: "916", GrossWeight: decimal.NewFromInt(1), NetWeight: decimal.NewFromInt(1), Value: decimal.NewFromInt(500)}}

	b, err := NewSaleBill(uuid.New(), "SB-2", uuid.New(), "", time.Now(), items, exchanges)

	require.NoError(t, err)
	assert.True(t, b.GrandTotal.IsZero())
}

func TestNewSaleBill_Validation(t *testing.T) {
	_, err := NewSaleBill(uuid.New(), "SB-3", uuid.New(), "", time.Now(), nil, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewSaleBill(uuid.New(), "SB-3", uuid.New(), "", time.Now(),
		[]ItemInput{{CatalogItemID: uuid.New(), Quantity: decimal.Zero, UnitPrice: decimal.NewFromInt(1)}}, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaleBill_ExchangeReversal(t *testing.T) {
	items := []ItemInput{{CatalogItemID: uuid.New(), Name: "Chain", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50000)}}
	exchanges := []ExchangeInput{
		{MetalType: "GOLD", Purity: "18K", GrossWeight: decimal.NewFromInt(4), NetWeight: decimal.NewFromInt(4), Value: decimal.NewFromInt(16000)},
		{MetalType: "SILVER", Purity: "925", GrossWeight: decimal.NewFromInt(30), NetWeight: decimal.NewFromInt(29), Value: decimal.NewFromInt(2000)},
	}
	b, err := NewSaleBill(uuid.New(), "SB-2", uuid.New(), "", time.Now(), items, exchanges)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, b.MarkExchangeReversed(b.Exchanges[1].ID, now))
	assert.ErrorIs(t, b.MarkExchangeReversed(b.Exchanges[1].ID, now), shared.ErrDuplicateProcessing)
	assert.ErrorIs(t, b.MarkExchangeReversed(uuid.New(), now), shared.ErrNotFound)

	pending := b.PendingExchanges()
	require.Len(t, pending, 1)
	assert.Equal(t, b.Exchanges[0].ID, pending[0].ID)

	b.RequestStockRestore()
	evt := b.GetDomainEvents()[0].(*CatalogStockChangeEvent)
	assert.Equal(t, EventTypeCatalogStockRestoreRequested, evt.EventType())
}
