package metal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
)

// KeyInput identifies a metal account by id or by type and purity
type KeyInput struct {
	MetalID   *uuid.UUID `json:"metal_id,omitempty"`
	MetalType string     `json:"metal_type,omitempty"`
	Purity    string     `json:"purity,omitempty"`
}

// Key normalizes the input into a metal key
func (k KeyInput) Key() (metal.MetalKey, error) {
	return metal.NewMetalKey(k.MetalID, k.MetalType, k.Purity)
}

// ReferenceInput names the document behind a movement
type ReferenceInput struct {
	Type   string    `json:"type" binding:"required"`
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number,omitempty"`
}

// MovementInput is the descriptive part shared by all mutating requests
type MovementInput struct {
	Source       string         `json:"source,omitempty"`
	Reference    ReferenceInput `json:"reference"`
	Counterparty string         `json:"counterparty,omitempty"`
	Note         string         `json:"note,omitempty"`
}

func (m MovementInput) toMovement(at time.Time) metal.Movement {
	return metal.Movement{
		Source: metal.SourceKind(m.Source),
		Reference: metal.Reference{
			Type:   m.Reference.Type,
			ID:     m.Reference.ID,
			Number: m.Reference.Number,
		},
		Counterparty: m.Counterparty,
		Note:         m.Note,
		OccurredAt:   at,
	}
}

// AcquireRequest adds metal to a pool
type AcquireRequest struct {
	KeyInput
	MovementInput
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight" binding:"decimal_gt0"`
}

// WeightRequest consumes, restores or reverses a weight
type WeightRequest struct {
	KeyInput
	MovementInput
	Weight decimal.Decimal `json:"weight" binding:"decimal_gt0"`
	// GrossWeight is read only by ReverseAcquisition; zero means equal to Weight
	GrossWeight decimal.Decimal `json:"gross_weight,omitempty"`
}

// ReconcileRequest resets an account to a counted total
type ReconcileRequest struct {
	KeyInput
	CountedWeight decimal.Decimal `json:"counted_weight" binding:"decimal_gte0"`
	Reason        string          `json:"reason" binding:"required"`
}

// AccountResponse is the snapshot of a metal account
type AccountResponse struct {
	ID         uuid.UUID       `json:"id"`
	Pool       string          `json:"pool"`
	MetalKey   string          `json:"metal_key"`
	MetalID    *uuid.UUID      `json:"metal_id,omitempty"`
	MetalType  string          `json:"metal_type,omitempty"`
	Purity     decimal.Decimal `json:"purity"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalNet   decimal.Decimal `json:"total_net"`
	Used       decimal.Decimal `json:"used"`
	Available  decimal.Decimal `json:"available"`
	EntryCount int64           `json:"entry_count"`
	Version    int             `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// EntryResponse is one metal ledger line
type EntryResponse struct {
	ID              uuid.UUID       `json:"id"`
	Sequence        int64           `json:"sequence"`
	Direction       string          `json:"direction"`
	Weight          decimal.Decimal `json:"weight"`
	GrossWeight     decimal.Decimal `json:"gross_weight"`
	WeightBefore    decimal.Decimal `json:"weight_before"`
	WeightAfter     decimal.Decimal `json:"weight_after"`
	AvailableBefore decimal.Decimal `json:"available_before"`
	AvailableAfter  decimal.Decimal `json:"available_after"`
	Source          string          `json:"source"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     uuid.UUID       `json:"reference_id"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Counterparty    string          `json:"counterparty,omitempty"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToAccountResponse converts a domain account to its response
func ToAccountResponse(a *metal.MetalAccount) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Pool:       string(a.Pool),
		MetalKey:   a.Key.String(),
		MetalID:    a.Key.MetalID,
		MetalType:  a.Key.MetalType,
		Purity:     a.Key.Purity,
		TotalGross: a.TotalGross,
		TotalNet:   a.TotalNet,
		Used:       a.Used,
		Available:  a.Available,
		EntryCount: a.EntryCount,
		Version:    a.Version,
		UpdatedAt:  a.UpdatedAt,
	}
}

// ToAccountResponses converts a slice of accounts
func ToAccountResponses(accounts []metal.MetalAccount) []AccountResponse {
	out := make([]AccountResponse, len(accounts))
	for i := range accounts {
		out[i] = ToAccountResponse(&accounts[i])
	}
	return out
}

// ToEntryResponse converts a ledger entry
func ToEntryResponse(e *metal.MetalLedgerEntry) EntryResponse {
	return EntryResponse{
		ID:              e.ID,
		Sequence:        e.Sequence,
		Direction:       string(e.Direction),
		Weight:          e.Weight,
		GrossWeight:     e.GrossWeight,
		WeightBefore:    e.WeightBefore,
		WeightAfter:     e.WeightAfter,
		AvailableBefore: e.AvailableBefore,
		AvailableAfter:  e.AvailableAfter,
		Source:          string(e.Source),
		ReferenceType:   e.Reference.Type,
		ReferenceID:     e.Reference.ID,
		ReferenceNumber: e.Reference.Number,
		Counterparty:    e.Counterparty,
		Note:            e.Note,
		CreatedAt:       e.CreatedAt,
	}
}
