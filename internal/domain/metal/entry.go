package metal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetalLedgerEntry is an immutable record of one weight movement.
// WeightBefore/WeightAfter track the account's total net weight;
// AvailableBefore/AvailableAfter track the unconsumed part.
type MetalLedgerEntry struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	AccountID       uuid.UUID
	Pool            Pool
	MetalKey        string
	Sequence        int64
	Direction       Direction
	Weight          decimal.Decimal
	GrossWeight     decimal.Decimal
	WeightBefore    decimal.Decimal
	WeightAfter     decimal.Decimal
	AvailableBefore decimal.Decimal
	AvailableAfter  decimal.Decimal
	Source          SourceKind
	Reference       Reference
	Counterparty    string
	Note            string
	CreatedAt       time.Time
}

// SignedWeight is the weight with OUT entries negative
func (e *MetalLedgerEntry) SignedWeight() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Weight.Neg()
	}
	return e.Weight
}
