package manufacturing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// ConsumptionLink tracks the cumulative weight consumed against one
// (purchase event, metal key) pair.
type ConsumptionLink struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PurchaseEventID uuid.UUID
	MetalKey        string
	Consumed        decimal.Decimal
	Version         int
	UpdatedAt       time.Time
}

// NewConsumptionLink creates an empty link
func NewConsumptionLink(tenantID, eventID uuid.UUID, key string) *ConsumptionLink {
	return &ConsumptionLink{
		ID:              uuid.New(),
		TenantID:        tenantID,
		PurchaseEventID: eventID,
		MetalKey:        key,
		Consumed:        decimal.Zero,
		Version:         1,
		UpdatedAt:       time.Now(),
	}
}

// Add records consumption
func (l *ConsumptionLink) Add(weight decimal.Decimal) {
	l.Consumed = l.Consumed.Add(weight)
	l.UpdatedAt = time.Now()
	l.Version++
}

// Subtract releases consumption. The link never goes below zero.
func (l *ConsumptionLink) Subtract(weight decimal.Decimal) error {
	if weight.GreaterThan(l.Consumed) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"cannot release "+weight.String()+" from "+l.MetalKey+": only "+l.Consumed.String()+" consumed")
	}
	l.Consumed = l.Consumed.Sub(weight)
	l.UpdatedAt = time.Now()
	l.Version++
	return nil
}

// BlockReason explains why a purchase cannot feed manufacturing
type BlockReason string

const (
	BlockNoMetal       BlockReason = "PURCHASE_HAS_NO_METAL"
	BlockFullyConsumed BlockReason = "PURCHASE_FULLY_CONSUMED"
	BlockCancelled     BlockReason = "PURCHASE_CANCELLED"
	BlockExceedsEvent  BlockReason = "EXCEEDS_PURCHASE_REMAINING"
)

// ConsumptionBlockedError is the descriptor returned by ValidateForConsumption
type ConsumptionBlockedError struct {
	Reason  BlockReason
	EventID uuid.UUID
	Detail  string
}

func (e *ConsumptionBlockedError) Error() string {
	if e.Detail != "" {
		return string(e.Reason) + ": " + e.Detail
	}
	return string(e.Reason)
}

// Unwrap exposes VALIDATION_ERROR for code mapping
func (e *ConsumptionBlockedError) Unwrap() error {
	return shared.NewDomainError(shared.CodeValidation, e.Error())
}

// RemainingForPurchase returns, per metal key, the purchased gross weight less
// the weight consumed against the event. Keys with nothing left are omitted.
func RemainingForPurchase(ev *purchase.PurchaseEvent, links []ConsumptionLink) map[string]decimal.Decimal {
	remaining := ev.GrossByKey()
	for _, l := range links {
		if l.PurchaseEventID != ev.ID {
			continue
		}
		if _, ok := remaining[l.MetalKey]; ok {
			remaining[l.MetalKey] = remaining[l.MetalKey].Sub(l.Consumed)
		}
	}
	for k, v := range remaining {
		if !v.IsPositive() {
			delete(remaining, k)
		}
	}
	return remaining
}

// ValidateForConsumption checks that a purchase still has metal to consume
func ValidateForConsumption(ev *purchase.PurchaseEvent, links []ConsumptionLink) error {
	if ev.IsCancelled() {
		return &ConsumptionBlockedError{Reason: BlockCancelled, EventID: ev.ID}
	}
	if !ev.HasMetal() {
		return &ConsumptionBlockedError{Reason: BlockNoMetal, EventID: ev.ID}
	}
	if len(RemainingForPurchase(ev, links)) == 0 {
		return &ConsumptionBlockedError{Reason: BlockFullyConsumed, EventID: ev.ID}
	}
	return nil
}

// CheckWithinEvent verifies that a record's consumption fits the event's
// remaining weight per key. Used only when strict event scope is enabled.
func CheckWithinEvent(ev *purchase.PurchaseEvent, links []ConsumptionLink, rec *ManufacturingRecord) error {
	remaining := RemainingForPurchase(ev, links)
	for key, need := range rec.ConsumptionByKey() {
		have := remaining[key]
		if have.LessThan(need) {
			return &ConsumptionBlockedError{
				Reason:  BlockExceedsEvent,
				EventID: ev.ID,
				Detail:  key + " needs " + need.String() + ", purchase has " + have.String() + " left",
			}
		}
	}
	return nil
}
