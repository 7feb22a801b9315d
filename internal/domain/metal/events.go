package metal

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

const AggregateTypeMetalAccount = "MetalAccount"

const (
	EventTypeMetalAcquired       = "MetalAcquired"
	EventTypeMetalConsumed       = "MetalConsumed"
	EventTypeMetalRestored       = "MetalRestored"
	EventTypeMetalReconciled     = "MetalReconciled"
	EventTypeAcquisitionReversed = "MetalAcquisitionReversed"
)

// MetalMovedEvent is raised for every entry appended to a metal ledger
type MetalMovedEvent struct {
	shared.BaseDomainEvent
	Pool           Pool            `json:"pool"`
	MetalKey       string          `json:"metal_key"`
	EntryID        uuid.UUID       `json:"entry_id"`
	Direction      Direction       `json:"direction"`
	Weight         decimal.Decimal `json:"weight"`
	AvailableAfter decimal.Decimal `json:"available_after"`
	Source         SourceKind      `json:"source"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    uuid.UUID       `json:"reference_id"`
}

// NewMetalMovedEvent creates the event for an appended entry
func NewMetalMovedEvent(eventType string, a *MetalAccount, e *MetalLedgerEntry) *MetalMovedEvent {
	return &MetalMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeMetalAccount, a.ID, a.TenantID),
		Pool:            a.Pool,
		MetalKey:        e.MetalKey,
		EntryID:         e.ID,
		Direction:       e.Direction,
		Weight:          e.Weight,
		AvailableAfter:  e.AvailableAfter,
		Source:          e.Source,
		ReferenceType:   e.Reference.Type,
		ReferenceID:     e.Reference.ID,
	}
}
