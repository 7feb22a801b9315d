package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

func target(number string, capacity int64, date time.Time) AllocationTarget {
	return AllocationTarget{ID: uuid.New(), Number: number, Capacity: decimal.NewFromInt(capacity), Date: date, CreatedAt: date}
}

func TestFIFOAllocationStrategy(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	o1 := target("O1", 500, day)
	o2 := target("O2", 700, day.AddDate(0, 0, 5))
	strategy := NewFIFOAllocationStrategy()

	t.Run("oldest obligation is paid first", func(t *testing.T) {
		plan, err := strategy.Allocate(decimal.NewFromInt(600), []AllocationTarget{o2, o1})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, "O1", plan.Allocations[0].TargetNumber)
		assert.Equal(t, "500", plan.Allocations[0].Amount.String())
		assert.Equal(t, "O2", plan.Allocations[1].TargetNumber)
		assert.Equal(t, "100", plan.Allocations[1].Amount.String())
		assert.True(t, plan.Remaining.IsZero())
		assert.Equal(t, []uuid.UUID{o1.ID}, plan.FullyApplied)
		assert.Equal(t, []uuid.UUID{o2.ID}, plan.PartialApplied)
	})

	t.Run("overpayment is left as remaining", func(t *testing.T) {
		plan, err := strategy.Allocate(decimal.NewFromInt(1500), []AllocationTarget{o1, o2})
		require.NoError(t, err)
		assert.Equal(t, "1200", plan.TotalAllocated.String())
		assert.Equal(t, "300", plan.Remaining.String())
	})

	t.Run("same date falls back to creation time", func(t *testing.T) {
		a := target("A", 100, day)
		b := target("B", 100, day)
		b.CreatedAt = day.Add(-time.Minute)
		plan, err := strategy.Allocate(decimal.NewFromInt(50), []AllocationTarget{a, b})
		require.NoError(t, err)
		assert.Equal(t, "B", plan.Allocations[0].TargetNumber)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := strategy.Allocate(decimal.Zero, []AllocationTarget{o1})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("no targets leaves everything remaining", func(t *testing.T) {
		plan, err := strategy.Allocate(decimal.NewFromInt(10), nil)
		require.NoError(t, err)
		assert.Empty(t, plan.Allocations)
		assert.Equal(t, "10", plan.Remaining.String())
	})
}

func TestLIFOAllocationStrategy(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	o1 := target("O1", 500, day)
	o2 := target("O2", 100, day.AddDate(0, 0, 5))

	plan, err := NewLIFOAllocationStrategy().Allocate(decimal.NewFromInt(600), []AllocationTarget{o1, o2})

	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "O2", plan.Allocations[0].TargetNumber)
	assert.Equal(t, "100", plan.Allocations[0].Amount.String())
	assert.Equal(t, "O1", plan.Allocations[1].TargetNumber)
	assert.Equal(t, "500", plan.Allocations[1].Amount.String())
}

func TestSortObligations(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	obligation := func(number string, date time.Time) Obligation {
		o := Obligation{Number: number, ObligationDate: date}
		o.CreatedAt = day
		return o
	}
	items := []Obligation{
		obligation("INV-3", day.AddDate(0, 0, 2)),
		obligation("INV-2", day),
		obligation("INV-1", day),
	}

	SortOldestFirst(items)
	assert.Equal(t, []string{"INV-1", "INV-2", "INV-3"}, []string{items[0].Number, items[1].Number, items[2].Number})

	SortNewestFirst(items)
	assert.Equal(t, []string{"INV-3", "INV-2", "INV-1"}, []string{items[0].Number, items[1].Number, items[2].Number})
}

func TestAllocationStrategies_TieBreakOnNumber(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	a := target("INV-1", 100, day)
	b := target("INV-2", 100, day)

	plan, err := NewFIFOAllocationStrategy().Allocate(decimal.NewFromInt(50), []AllocationTarget{b, a})
	require.NoError(t, err)
	assert.Equal(t, "INV-1", plan.Allocations[0].TargetNumber)

	plan, err = NewLIFOAllocationStrategy().Allocate(decimal.NewFromInt(50), []AllocationTarget{a, b})
	require.NoError(t, err)
	assert.Equal(t, "INV-2", plan.Allocations[0].TargetNumber)
}
