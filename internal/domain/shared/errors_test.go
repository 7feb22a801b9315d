package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainError(CodeNotFound, "metal account 22K not found")
	wrapped := fmt.Errorf("consume: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, CodeNotFound, ErrorCode(wrapped))
}

func TestInsufficientStockError(t *testing.T) {
	err := NewInsufficientStockError("GOLD@916", decimal.NewFromInt(57), decimal.NewFromInt(60))
	wrapped := fmt.Errorf("save record: %w", err)

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.Equal(t, CodeInsufficientStock, ErrorCode(wrapped))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, wrapped, &stockErr)
	assert.True(t, stockErr.Available.Equal(decimal.NewFromInt(57)))
	assert.True(t, stockErr.Requested.Equal(decimal.NewFromInt(60)))
	assert.Contains(t, err.Error(), "available 57, requested 60")
}

func TestPartialReversalError(t *testing.T) {
	cause := NewInsufficientStockError("GOLD@750", decimal.Zero, decimal.NewFromInt(1))
	err := &PartialReversalError{
		Operation: "manufacturing record",
		Succeeded: 2,
		Failures:  []ItemFailure{{ItemID: "item-3", Err: cause}},
	}

	assert.ErrorIs(t, err, ErrPartialReversal)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, CodePartialReversal, ErrorCode(err))
	assert.Contains(t, err.Error(), "2 succeeded, 1 failed [item-3]")
	assert.ErrorIs(t, err.Joined(), ErrInsufficientStock)
}
