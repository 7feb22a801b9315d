package purchase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

func TestNewPurchaseEvent(t *testing.T) {
	lines := []LineInput{
		{MetalType: "gold", Purity: "22K", GrossWeight: decimal.NewFromInt(100), NetWeight: decimal.NewFromInt(97), Rate: decimal.NewFromInt(6000)},
		{MetalType: "GOLD", Purity: "916.6667", GrossWeight: decimal.NewFromInt(10), NetWeight: decimal.NewFromInt(10), Rate: decimal.NewFromInt(6000)},
		{MetalType: "SILVER", Purity: "92.5", GrossWeight: decimal.NewFromInt(50), NetWeight: decimal.NewFromInt(48), Rate: decimal.NewFromInt(80)},
	}
	exchanges := []ExchangeInput{{MetalType: "GOLD", Purity: "18K", Weight: decimal.NewFromInt(5), Value: decimal.NewFromInt(20000)}}

	ev, err := NewPurchaseEvent(uuid.New(), "PI-7", uuid.New(), "Bullion Co", time.Now(), lines, exchanges)

	require.NoError(t, err)
	assert.True(t, ev.HasMetal())
	assert.Equal(t, StatusPosted, ev.Status)
	assert.Equal(t, "625840", ev.GrandTotal.String())

	gross := ev.GrossByKey()
	assert.Len(t, gross, 2)
	assert.Equal(t, "110", gross["GOLD@916.6667"].String())
	assert.Equal(t, "50", gross["SILVER@925"].String())
}

func TestNewPurchaseEvent_Validation(t *testing.T) {
	supplier := uuid.New()

	_, err := NewPurchaseEvent(uuid.New(), "", supplier, "", time.Now(), nil, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewPurchaseEvent(uuid.New(), "PI-1", supplier, "", time.Now(),
		[]LineInput{{MetalType: "GOLD", Purity: "22K", GrossWeight: decimal.NewFromInt(1), NetWeight: decimal.NewFromInt(2)}}, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewPurchaseEvent(uuid.New(), "PI-1", supplier, "", time.Now(),
		[]LineInput{{MetalType: "GOLD", Purity: "abc", GrossWeight: decimal.NewFromInt(1), NetWeight: decimal.NewFromInt(1)}}, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	ev, err := NewPurchaseEvent(uuid.New(), "PI-2", supplier, "", time.Now(), nil, nil)
	require.NoError(t, err)
	assert.False(t, ev.HasMetal())
}

func TestPurchaseEvent_ReversalMarkers(t *testing.T) {
	ev, err := NewPurchaseEvent(uuid.New(), "PI-8", uuid.New(), "", time.Now(),
		[]LineInput{
			{MetalType: "GOLD", Purity: "24K", GrossWeight: decimal.NewFromInt(10), NetWeight: decimal.NewFromInt(10), Rate: decimal.NewFromInt(7000)},
			{MetalType: "SILVER", Purity: "999", GrossWeight: decimal.NewFromInt(20), NetWeight: decimal.NewFromInt(20), Rate: decimal.NewFromInt(90)},
		},
		[]ExchangeInput{{MetalType: "GOLD", Purity: "22K", Weight: decimal.NewFromInt(2), Value: decimal.NewFromInt(1000)}})
	require.NoError(t, err)
	now := time.Now()

	require.NoError(t, ev.MarkLineReversed(ev.Lines[0].ID, now))
	assert.ErrorIs(t, ev.MarkLineReversed(ev.Lines[0].ID, now), shared.ErrDuplicateProcessing)
	assert.ErrorIs(t, ev.MarkLineReversed(uuid.New(), now), shared.ErrNotFound)
	require.Len(t, ev.PendingLines(), 1)
	assert.Equal(t, ev.Lines[1].ID, ev.PendingLines()[0].ID)

	require.Len(t, ev.PendingExchanges(), 1)
	require.NoError(t, ev.MarkExchangeRestored(ev.Exchanges[0].ID, now))
	assert.Empty(t, ev.PendingExchanges())
	assert.ErrorIs(t, ev.MarkExchangeRestored(ev.Exchanges[0].ID, now), shared.ErrDuplicateProcessing)

	ev.MarkCancelled(false, now)
	assert.Equal(t, StatusPartiallyCancelled, ev.Status)
	assert.False(t, ev.IsCancelled())
	ev.MarkCancelled(true, now)
	assert.True(t, ev.IsCancelled())
	assert.NotNil(t, ev.CancelledAt)
}
