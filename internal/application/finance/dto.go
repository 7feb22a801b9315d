package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/finance"
)

// ApplyPaymentRequest is a payment received from a customer (INVOICE) or
// made to a supplier (BILL)
type ApplyPaymentRequest struct {
	ReceiptNumber  string          `json:"receipt_number,omitempty" binding:"max=50"`
	ObligationKind string          `json:"obligation_kind" binding:"required,oneof=INVOICE BILL"`
	PartyID        uuid.UUID       `json:"party_id" binding:"required"`
	PartyName      string          `json:"party_name,omitempty"`
	BankAccountID  uuid.UUID       `json:"bank_account_id" binding:"required"`
	Mode           string          `json:"mode" binding:"required"`
	Reference      string          `json:"reference,omitempty" binding:"max=100"`
	Notes          string          `json:"notes,omitempty"`
	Amount         decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	// PaidAt defaults to now
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

func (r ApplyPaymentRequest) input() finance.ReceiptInput {
	return finance.ReceiptInput{
		ReceiptNumber:  r.ReceiptNumber,
		ObligationKind: finance.ObligationKind(r.ObligationKind),
		PartyID:        r.PartyID,
		PartyName:      r.PartyName,
		BankAccountID:  r.BankAccountID,
		Mode:           finance.PaymentMode(r.Mode),
		Reference:      r.Reference,
		Notes:          r.Notes,
		Amount:         r.Amount,
	}
}

// DeletePaymentRequest voids a receipt and unwinds it
type DeletePaymentRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=255"`
}

// RegisterObligationRequest records an invoice or bill raised outside posting,
// such as a party's opening dues
type RegisterObligationRequest struct {
	Kind           string          `json:"kind" binding:"required,oneof=INVOICE BILL"`
	Number         string          `json:"number" binding:"required,max=50"`
	PartyID        uuid.UUID       `json:"party_id" binding:"required"`
	PartyName      string          `json:"party_name,omitempty"`
	ObligationDate time.Time       `json:"obligation_date"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// ObligationListFilter narrows obligation listings
type ObligationListFilter struct {
	Kind     string     `form:"kind"`
	PartyID  *uuid.UUID `form:"party_id"`
	Status   string     `form:"status"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir"`
}

// AllocationResponse is one obligation's share of a payment or reversal
type AllocationResponse struct {
	ObligationID     uuid.UUID       `json:"obligation_id"`
	ObligationNumber string          `json:"obligation_number"`
	Amount           decimal.Decimal `json:"amount"`
	PendingBefore    decimal.Decimal `json:"pending_before"`
	PendingAfter     decimal.Decimal `json:"pending_after"`
}

// ReceiptResponse is a payment receipt
type ReceiptResponse struct {
	ID                     uuid.UUID            `json:"id"`
	ReceiptNumber          string               `json:"receipt_number"`
	ObligationKind         string               `json:"obligation_kind"`
	PartyID                uuid.UUID            `json:"party_id"`
	PartyName              string               `json:"party_name,omitempty"`
	BankAccountID          uuid.UUID            `json:"bank_account_id"`
	Mode                   string               `json:"mode"`
	Reference              string               `json:"reference,omitempty"`
	Notes                  string               `json:"notes,omitempty"`
	AmountPaid             decimal.Decimal      `json:"amount_paid"`
	PreviousPendingAmount  decimal.Decimal      `json:"previous_pending_amount"`
	RemainingPendingAmount decimal.Decimal      `json:"remaining_pending_amount"`
	UnallocatedAmount      decimal.Decimal      `json:"unallocated_amount"`
	Allocations            []AllocationResponse `json:"allocations"`
	BankLedgerEntryID      uuid.UUID            `json:"bank_ledger_entry_id"`
	ReversalEntryID        *uuid.UUID           `json:"reversal_entry_id,omitempty"`
	Status                 string               `json:"status"`
	PaidAt                 time.Time            `json:"paid_at"`
	VoidedAt               *time.Time           `json:"voided_at,omitempty"`
	VoidReason             string               `json:"void_reason,omitempty"`
}

// DeletePaymentResult is the voided receipt with the reversal walk that
// undid it, newest obligation first
type DeletePaymentResult struct {
	Receipt   ReceiptResponse      `json:"receipt"`
	Reversals []AllocationResponse `json:"reversals"`
	// Unreversed is the part of the allocation no paid obligation could absorb
	Unreversed decimal.Decimal `json:"unreversed"`
}

// ObligationResponse is an invoice or bill
type ObligationResponse struct {
	ID             uuid.UUID       `json:"id"`
	Kind           string          `json:"kind"`
	Number         string          `json:"number"`
	PartyID        uuid.UUID       `json:"party_id"`
	PartyName      string          `json:"party_name,omitempty"`
	SourceID       *uuid.UUID      `json:"source_id,omitempty"`
	ObligationDate time.Time       `json:"obligation_date"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	Status         string          `json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	Version        int             `json:"version"`
}

// ToReceiptResponse converts a domain receipt
func ToReceiptResponse(r *finance.PaymentReceipt) ReceiptResponse {
	allocations := make([]AllocationResponse, len(r.Allocations))
	for i, a := range r.Allocations {
		allocations[i] = AllocationResponse{
			ObligationID:     a.ObligationID,
			ObligationNumber: a.ObligationNumber,
			Amount:           a.Amount,
			PendingBefore:    a.PendingBefore,
			PendingAfter:     a.PendingAfter,
		}
	}
	return ReceiptResponse{
		ID:                     r.ID,
		ReceiptNumber:          r.ReceiptNumber,
		ObligationKind:         string(r.ObligationKind),
		PartyID:                r.PartyID,
		PartyName:              r.PartyName,
		BankAccountID:          r.BankAccountID,
		Mode:                   string(r.Mode),
		Reference:              r.Reference,
		Notes:                  r.Notes,
		AmountPaid:             r.AmountPaid,
		PreviousPendingAmount:  r.PreviousPendingAmount,
		RemainingPendingAmount: r.RemainingPendingAmount,
		UnallocatedAmount:      r.UnallocatedAmount,
		Allocations:            allocations,
		BankLedgerEntryID:      r.BankLedgerEntryID,
		ReversalEntryID:        r.ReversalEntryID,
		Status:                 string(r.Status),
		PaidAt:                 r.PaidAt,
		VoidedAt:               r.VoidedAt,
		VoidReason:             r.VoidReason,
	}
}

// ToObligationResponse converts a domain obligation
func ToObligationResponse(o *finance.Obligation) ObligationResponse {
	return ObligationResponse{
		ID:             o.ID,
		Kind:           string(o.Kind),
		Number:         o.Number,
		PartyID:        o.PartyID,
		PartyName:      o.PartyName,
		SourceID:       o.SourceID,
		ObligationDate: o.ObligationDate,
		GrandTotal:     o.GrandTotal,
		PaidAmount:     o.PaidAmount,
		PendingAmount:  o.PendingAmount,
		Status:         string(o.Status),
		PaidAt:         o.PaidAt,
		CancelledAt:    o.CancelledAt,
		Version:        o.Version,
	}
}
