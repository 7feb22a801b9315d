package manufacturing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// RecordStatus of a manufacturing record
type RecordStatus string

const (
	RecordActive             RecordStatus = "ACTIVE"
	RecordPartiallyCancelled RecordStatus = "PARTIALLY_CANCELLED"
	RecordCancelled          RecordStatus = "CANCELLED"
)

// RecordItem is one finished piece made from stock metal.
// ConsumedWeight = NetWeight × Quantity.
type RecordItem struct {
	ID             uuid.UUID
	CatalogItemID  *uuid.UUID
	Name           string
	Key            metal.MetalKey
	NetWeight      decimal.Decimal
	Quantity       decimal.Decimal
	ConsumedWeight decimal.Decimal
	ReversedAt     *time.Time
}

// IsReversed reports whether the item's metal was given back to stock
func (i *RecordItem) IsReversed() bool {
	return i.ReversedAt != nil
}

// ManufacturingRecord turns metal bought on a purchase event into pieces
type ManufacturingRecord struct {
	shared.TenantAggregateRoot
	RecordNumber    string
	PurchaseEventID uuid.UUID
	Items           []RecordItem
	Status          RecordStatus
	CancelledAt     *time.Time
}

// ItemInput describes a piece before its metal key is normalized
type ItemInput struct {
	CatalogItemID *uuid.UUID
	Name          string
	MetalID       *uuid.UUID
	MetalType     string
	Purity        string
	NetWeight     decimal.Decimal
	Quantity      decimal.Decimal
}

// NewManufacturingRecord validates items and computes consumed weights
func NewManufacturingRecord(tenantID uuid.UUID, number string, purchaseEventID uuid.UUID, items []ItemInput) (*ManufacturingRecord, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewValidationError("record number is required")
	}
	if purchaseEventID == uuid.Nil {
		return nil, shared.NewValidationError("purchase event is required")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("a manufacturing record needs at least one item")
	}

	rec := &ManufacturingRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		RecordNumber:        strings.TrimSpace(number),
		PurchaseEventID:     purchaseEventID,
		Items:               make([]RecordItem, 0, len(items)),
		Status:              RecordActive,
	}
	for i, in := range items {
		key, err := metal.NewMetalKey(in.MetalID, in.MetalType, in.Purity)
		if err != nil {
			return nil, shared.NewValidationError("item %d: %s", i+1, err.Error())
		}
		if !in.NetWeight.IsPositive() || !in.Quantity.IsPositive() {
			return nil, shared.NewValidationError("item %d: net weight and quantity must be positive", i+1)
		}
		rec.Items = append(rec.Items, RecordItem{
			ID:             uuid.New(),
			CatalogItemID:  in.CatalogItemID,
			Name:           in.Name,
			Key:            key,
			NetWeight:      in.NetWeight,
			Quantity:       in.Quantity,
			ConsumedWeight: in.NetWeight.Mul(in.Quantity),
		})
	}
	return rec, nil
}

// ConsumptionByKey totals consumed weight per canonical metal key
func (r *ManufacturingRecord) ConsumptionByKey() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range r.Items {
		k := it.Key.String()
		out[k] = out[k].Add(it.ConsumedWeight)
	}
	return out
}

// PendingReversal returns the items whose metal has not been restored yet
func (r *ManufacturingRecord) PendingReversal() []RecordItem {
	out := make([]RecordItem, 0, len(r.Items))
	for _, it := range r.Items {
		if !it.IsReversed() {
			out = append(out, it)
		}
	}
	return out
}

// MarkItemReversed flags one item as restored
func (r *ManufacturingRecord) MarkItemReversed(itemID uuid.UUID, at time.Time) error {
	for i := range r.Items {
		if r.Items[i].ID != itemID {
			continue
		}
		if r.Items[i].IsReversed() {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "item "+itemID.String()+" is already reversed")
		}
		r.Items[i].ReversedAt = &at
		return nil
	}
	return shared.NewDomainError(shared.CodeNotFound, "item "+itemID.String()+" not found on record "+r.RecordNumber)
}

// RefreshStatus derives the record status from its items
func (r *ManufacturingRecord) RefreshStatus(at time.Time) {
	reversed := 0
	for _, it := range r.Items {
		if it.IsReversed() {
			reversed++
		}
	}
	switch {
	case reversed == len(r.Items):
		r.Status = RecordCancelled
		r.CancelledAt = &at
	case reversed > 0:
		r.Status = RecordPartiallyCancelled
	default:
		r.Status = RecordActive
	}
	r.Touch()
}

// IsCancelled reports a fully reversed record
func (r *ManufacturingRecord) IsCancelled() bool {
	return r.Status == RecordCancelled
}

// Reference is the ledger reference for this record
func (r *ManufacturingRecord) Reference() metal.Reference {
	return metal.Reference{Type: metal.RefManufacturingRecord, ID: r.ID, Number: r.RecordNumber}
}
