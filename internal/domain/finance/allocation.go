package finance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// AllocationStrategyType names an ordering for spreading an amount over obligations
type AllocationStrategyType string

const (
	// AllocationFIFO pays the oldest obligation first
	AllocationFIFO AllocationStrategyType = "FIFO"
	// AllocationLIFO unwinds the newest obligation first
	AllocationLIFO AllocationStrategyType = "LIFO"
)

// AllocationTarget is an obligation seen by an allocation strategy
type AllocationTarget struct {
	ID        uuid.UUID
	Number    string
	Capacity  decimal.Decimal // pending amount when paying, paid amount when reversing
	Date      time.Time
	CreatedAt time.Time
}

// AllocationResult is the share of the amount given to one target
type AllocationResult struct {
	TargetID     uuid.UUID
	TargetNumber string
	Amount       decimal.Decimal
}

// AllocationPlan is the complete outcome of a strategy run
type AllocationPlan struct {
	Allocations    []AllocationResult
	TotalAllocated decimal.Decimal
	Remaining      decimal.Decimal
	FullyApplied   []uuid.UUID
	PartialApplied []uuid.UUID
}

// AllocationStrategy spreads an amount over targets in a fixed order
type AllocationStrategy interface {
	StrategyType() AllocationStrategyType
	Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error)
}

// FIFOAllocationStrategy allocates to the oldest obligation first, by
// obligation date and then creation time.
type FIFOAllocationStrategy struct{}

func NewFIFOAllocationStrategy() *FIFOAllocationStrategy { return &FIFOAllocationStrategy{} }

func (s *FIFOAllocationStrategy) StrategyType() AllocationStrategyType { return AllocationFIFO }

func (s *FIFOAllocationStrategy) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	return allocate(amount, targets, func(a, b AllocationTarget) bool {
		return older(a.Date, a.CreatedAt, a.Number, b.Date, b.CreatedAt, b.Number)
	})
}

// LIFOAllocationStrategy walks obligations newest first. Payment deletion
// uses it to move paid amounts back to pending.
type LIFOAllocationStrategy struct{}

func NewLIFOAllocationStrategy() *LIFOAllocationStrategy { return &LIFOAllocationStrategy{} }

func (s *LIFOAllocationStrategy) StrategyType() AllocationStrategyType { return AllocationLIFO }

func (s *LIFOAllocationStrategy) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	return allocate(amount, targets, func(a, b AllocationTarget) bool {
		return older(b.Date, b.CreatedAt, b.Number, a.Date, a.CreatedAt, a.Number)
	})
}

// older orders by obligation date, then creation time, then number
func older(aDate, aCreated time.Time, aNumber string, bDate, bCreated time.Time, bNumber string) bool {
	if !aDate.Equal(bDate) {
		return aDate.Before(bDate)
	}
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}
	return aNumber < bNumber
}

// SortOldestFirst puts obligations in FIFO payment order
func SortOldestFirst(obligations []Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		return older(a.ObligationDate, a.CreatedAt, a.Number, b.ObligationDate, b.CreatedAt, b.Number)
	})
}

// SortNewestFirst puts obligations in LIFO unwind order
func SortNewestFirst(obligations []Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		return older(b.ObligationDate, b.CreatedAt, b.Number, a.ObligationDate, a.CreatedAt, a.Number)
	})
}

func allocate(amount decimal.Decimal, targets []AllocationTarget, less func(a, b AllocationTarget) bool) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("allocation amount must be positive")
	}

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	plan := &AllocationPlan{
		Allocations:    make([]AllocationResult, 0, len(sorted)),
		TotalAllocated: decimal.Zero,
		Remaining:      amount,
		FullyApplied:   make([]uuid.UUID, 0),
		PartialApplied: make([]uuid.UUID, 0),
	}
	for _, t := range sorted {
		if plan.Remaining.IsZero() {
			break
		}
		if !t.Capacity.IsPositive() {
			continue
		}
		share := decimal.Min(plan.Remaining, t.Capacity)
		plan.Allocations = append(plan.Allocations, AllocationResult{TargetID: t.ID, TargetNumber: t.Number, Amount: share})
		plan.TotalAllocated = plan.TotalAllocated.Add(share)
		plan.Remaining = plan.Remaining.Sub(share)
		if share.Equal(t.Capacity) {
			plan.FullyApplied = append(plan.FullyApplied, t.ID)
		} else {
			plan.PartialApplied = append(plan.PartialApplied, t.ID)
		}
	}
	return plan, nil
}

// PendingTargets builds FIFO targets from obligations
func PendingTargets(obligations []Obligation) []AllocationTarget {
	out := make([]AllocationTarget, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, AllocationTarget{ID: o.ID, Number: o.Number, Capacity: o.PendingAmount, Date: o.ObligationDate, CreatedAt: o.CreatedAt})
	}
	return out
}

// PaidTargets builds reversal targets from obligations
func PaidTargets(obligations []Obligation) []AllocationTarget {
	out := make([]AllocationTarget, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, AllocationTarget{ID: o.ID, Number: o.Number, Capacity: o.PaidAmount, Date: o.ObligationDate, CreatedAt: o.CreatedAt})
	}
	return out
}
