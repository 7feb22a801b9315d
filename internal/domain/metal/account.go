package metal

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// MetalAccount is the running position of one metal key within a pool.
// It is the aggregate root for every weight movement of that key:
//
//	Available + Used == TotalNet
//	TotalGross >= TotalNet
//
// Accounts are created lazily on the first acquisition and never deleted.
type MetalAccount struct {
	shared.TenantAggregateRoot
	Pool       Pool
	Key        MetalKey
	TotalGross decimal.Decimal
	TotalNet   decimal.Decimal
	Used       decimal.Decimal
	Available  decimal.Decimal
	EntryCount int64
}

// NewMetalAccount creates an empty account for a pool and key
func NewMetalAccount(tenantID uuid.UUID, pool Pool, key MetalKey) (*MetalAccount, error) {
	if !pool.IsValid() {
		return nil, shared.NewValidationError("invalid metal pool %q", pool)
	}
	if key.IsZero() {
		return nil, shared.NewValidationError("metal key is required")
	}
	return &MetalAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Pool:                pool,
		Key:                 key,
		TotalGross:          decimal.Zero,
		TotalNet:            decimal.Zero,
		Used:                decimal.Zero,
		Available:           decimal.Zero,
	}, nil
}

// Acquire adds purchased or received metal to the pool
func (a *MetalAccount) Acquire(gross, net decimal.Decimal, mv Movement) (*MetalLedgerEntry, error) {
	if !gross.IsPositive() || !net.IsPositive() {
		return nil, shared.NewValidationError("gross and net weight must be positive")
	}
	if net.GreaterThan(gross) {
		return nil, shared.NewValidationError("net weight %s exceeds gross weight %s", net, gross)
	}
	if mv.Source == "" {
		mv.Source = SourcePurchase
	}
	if err := validateMovement(mv); err != nil {
		return nil, err
	}

	entry := a.newEntry(DirectionIn, net, gross, mv)
	a.TotalGross = a.TotalGross.Add(gross)
	a.TotalNet = a.TotalNet.Add(net)
	a.Available = a.Available.Add(net)
	a.commit(entry, EventTypeMetalAcquired)
	return entry, nil
}

// Consume moves weight from available to used. Nothing changes when the
// available weight cannot cover the full request.
func (a *MetalAccount) Consume(weight decimal.Decimal, mv Movement) (*MetalLedgerEntry, error) {
	if !weight.IsPositive() {
		return nil, shared.NewValidationError("consumed weight must be positive")
	}
	if mv.Source == "" {
		mv.Source = SourceConsumption
	}
	if err := validateMovement(mv); err != nil {
		return nil, err
	}
	if a.Available.LessThan(weight) {
		return nil, shared.NewInsufficientStockError(a.subject(), a.Available, weight)
	}

	entry := a.newEntry(DirectionOut, weight, weight, mv)
	a.Available = a.Available.Sub(weight)
	a.Used = a.Used.Add(weight)
	a.commit(entry, EventTypeMetalConsumed)
	return entry, nil
}

// Restore returns previously consumed weight to available. It does not check
// the amount against Used.
func (a *MetalAccount) Restore(weight decimal.Decimal, mv Movement) (*MetalLedgerEntry, error) {
	if !weight.IsPositive() {
		return nil, shared.NewValidationError("restored weight must be positive")
	}
	if mv.Source == "" {
		mv.Source = SourceReversal
	}
	if err := validateMovement(mv); err != nil {
		return nil, err
	}

	entry := a.newEntry(DirectionIn, weight, weight, mv)
	a.Available = a.Available.Add(weight)
	a.Used = a.Used.Sub(weight)
	a.commit(entry, EventTypeMetalRestored)
	return entry, nil
}

// ReverseAcquisition takes an earlier acquisition back out of the pool, as
// when a purchase invoice is cancelled. The net weight must still be available.
func (a *MetalAccount) ReverseAcquisition(gross, net decimal.Decimal, mv Movement) (*MetalLedgerEntry, error) {
	if !gross.IsPositive() || !net.IsPositive() || net.GreaterThan(gross) {
		return nil, shared.NewValidationError("invalid acquisition weights gross=%s net=%s", gross, net)
	}
	mv.Source = SourceReversal
	if err := validateMovement(mv); err != nil {
		return nil, err
	}
	if a.Available.LessThan(net) {
		return nil, shared.NewInsufficientStockError(a.subject(), a.Available, net)
	}

	entry := a.newEntry(DirectionOut, net, gross, mv)
	a.TotalGross = a.TotalGross.Sub(gross)
	if a.TotalGross.LessThan(a.TotalNet.Sub(net)) {
		a.TotalGross = a.TotalNet.Sub(net)
	}
	a.TotalNet = a.TotalNet.Sub(net)
	a.Available = a.Available.Sub(net)
	a.commit(entry, EventTypeAcquisitionReversed)
	return entry, nil
}

// Reconcile resets the total net weight to a counted value. The signed delta
// is recorded as a manual adjustment; a zero delta records nothing and
// returns a nil entry. Used weight is kept, so the count cannot drop below it.
func (a *MetalAccount) Reconcile(newTotal decimal.Decimal, reason string) (*MetalLedgerEntry, error) {
	if newTotal.IsNegative() {
		return nil, shared.NewValidationError("counted weight cannot be negative")
	}
	if newTotal.LessThan(a.Used) {
		return nil, shared.NewValidationError("counted weight %s is below used weight %s", newTotal, a.Used)
	}
	delta := newTotal.Sub(a.TotalNet)
	if delta.IsZero() {
		return nil, nil
	}

	dir := DirectionIn
	if delta.IsNegative() {
		dir = DirectionOut
	}
	mv := Movement{
		Source:    SourceManualAdjustment,
		Reference: Reference{Type: RefAdjustment, ID: a.ID},
		Note:      reason,
	}
	entry := a.newEntry(dir, delta.Abs(), delta.Abs(), mv)

	a.TotalGross = a.TotalGross.Add(delta)
	if a.TotalGross.LessThan(newTotal) {
		a.TotalGross = newTotal
	}
	a.TotalNet = newTotal
	a.Available = newTotal.Sub(a.Used)
	a.commit(entry, EventTypeMetalReconciled)
	return entry, nil
}

// CheckInvariant verifies the weight identities of the account
func (a *MetalAccount) CheckInvariant() error {
	if !a.Available.Add(a.Used).Equal(a.TotalNet) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"metal account "+a.Key.String()+": available + used != total net")
	}
	if a.TotalGross.LessThan(a.TotalNet) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"metal account "+a.Key.String()+": total gross below total net")
	}
	if a.Available.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidState,
			"metal account "+a.Key.String()+": negative available weight")
	}
	return nil
}

func (a *MetalAccount) subject() string {
	return string(a.Pool) + " " + a.Key.String()
}

func (a *MetalAccount) newEntry(dir Direction, weight, gross decimal.Decimal, mv Movement) *MetalLedgerEntry {
	return &MetalLedgerEntry{
		ID:              uuid.New(),
		TenantID:        a.TenantID,
		AccountID:       a.ID,
		Pool:            a.Pool,
		MetalKey:        a.Key.String(),
		Sequence:        a.EntryCount + 1,
		Direction:       dir,
		Weight:          weight,
		GrossWeight:     gross,
		WeightBefore:    a.TotalNet,
		AvailableBefore: a.Available,
		Source:          mv.Source,
		Reference:       mv.Reference,
		Counterparty:    mv.Counterparty,
		Note:            mv.Note,
		CreatedAt:       mv.at(),
	}
}

func (a *MetalAccount) commit(entry *MetalLedgerEntry, eventType string) {
	entry.WeightAfter = a.TotalNet
	entry.AvailableAfter = a.Available
	a.EntryCount = entry.Sequence
	a.Touch()
	a.IncrementVersion()
	a.AddDomainEvent(NewMetalMovedEvent(eventType, a, entry))
}

func validateMovement(mv Movement) error {
	if !mv.Source.IsValid() {
		return shared.NewValidationError("invalid source kind %q", mv.Source)
	}
	if mv.Reference.Type == "" {
		return shared.NewValidationError("reference type is required")
	}
	return nil
}
