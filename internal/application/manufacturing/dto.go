package manufacturing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// ItemRequest is one finished piece
type ItemRequest struct {
	CatalogItemID *uuid.UUID      `json:"catalog_item_id,omitempty"`
	Name          string          `json:"name" binding:"max=200"`
	MetalID       *uuid.UUID      `json:"metal_id,omitempty"`
	MetalType     string          `json:"metal_type,omitempty"`
	Purity        string          `json:"purity,omitempty"`
	NetWeight     decimal.Decimal `json:"net_weight"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// SaveRecordRequest creates a manufacturing record against a purchase event
type SaveRecordRequest struct {
	RecordNumber    string        `json:"record_number" binding:"required,max=50"`
	PurchaseEventID uuid.UUID     `json:"purchase_event_id" binding:"required"`
	Items           []ItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r SaveRecordRequest) items() []manufacturing.ItemInput {
	out := make([]manufacturing.ItemInput, len(r.Items))
	for i, it := range r.Items {
		out[i] = manufacturing.ItemInput{
			CatalogItemID: it.CatalogItemID,
			Name:          it.Name,
			MetalID:       it.MetalID,
			MetalType:     it.MetalType,
			Purity:        it.Purity,
			NetWeight:     it.NetWeight,
			Quantity:      it.Quantity,
		}
	}
	return out
}

// ItemResponse is a piece with its consumed weight
type ItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	CatalogItemID  *uuid.UUID      `json:"catalog_item_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	MetalKey       string          `json:"metal_key"`
	NetWeight      decimal.Decimal `json:"net_weight"`
	Quantity       decimal.Decimal `json:"quantity"`
	ConsumedWeight decimal.Decimal `json:"consumed_weight"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
}

// RecordResponse is a manufacturing record
type RecordResponse struct {
	ID              uuid.UUID      `json:"id"`
	RecordNumber    string         `json:"record_number"`
	PurchaseEventID uuid.UUID      `json:"purchase_event_id"`
	Status          string         `json:"status"`
	Items           []ItemResponse `json:"items"`
	CreatedAt       time.Time      `json:"created_at"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
}

// RemainingResponse is what is left of a purchase event per metal key
type RemainingResponse struct {
	PurchaseEventID uuid.UUID                  `json:"purchase_event_id"`
	Remaining       map[string]decimal.Decimal `json:"remaining"`
	// Blocked is set when the event cannot feed manufacturing
	Blocked string `json:"blocked,omitempty"`
}

// ItemFailureResponse is an item whose metal could not be restored
type ItemFailureResponse struct {
	ItemID  string `json:"item_id"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// CancelResult reports a best-effort cancellation
type CancelResult struct {
	RecordID uuid.UUID             `json:"record_id"`
	Outcome  string                `json:"outcome"`
	Status   string                `json:"status"`
	Reversed []uuid.UUID           `json:"reversed"`
	Failures []ItemFailureResponse `json:"failures,omitempty"`
}

// ToRecordResponse converts a domain record
func ToRecordResponse(r *manufacturing.ManufacturingRecord) RecordResponse {
	items := make([]ItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = ItemResponse{
			ID:             it.ID,
			CatalogItemID:  it.CatalogItemID,
			Name:           it.Name,
			MetalKey:       it.Key.String(),
			NetWeight:      it.NetWeight,
			Quantity:       it.Quantity,
			ConsumedWeight: it.ConsumedWeight,
			ReversedAt:     it.ReversedAt,
		}
	}
	return RecordResponse{
		ID:              r.ID,
		RecordNumber:    r.RecordNumber,
		PurchaseEventID: r.PurchaseEventID,
		Status:          string(r.Status),
		Items:           items,
		CreatedAt:       r.CreatedAt,
		CancelledAt:     r.CancelledAt,
	}
}

func toFailureResponses(failures []shared.ItemFailure) []ItemFailureResponse {
	out := make([]ItemFailureResponse, len(failures))
	for i, f := range failures {
		out[i] = ItemFailureResponse{ItemID: f.ItemID, Code: shared.ErrorCode(f.Err), Message: f.Err.Error()}
	}
	return out
}
