package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

const (
	AggregateTypeObligation     = "Obligation"
	AggregateTypePaymentReceipt = "PaymentReceipt"

	EventTypeObligationSettled = "ObligationSettled"
	EventTypePaymentApplied    = "PaymentApplied"
	EventTypePaymentVoided     = "PaymentVoided"
)

// ObligationSettledEvent is raised when an obligation becomes fully paid
type ObligationSettledEvent struct {
	shared.BaseDomainEvent
	Kind       ObligationKind  `json:"kind"`
	Number     string          `json:"number"`
	PartyID    uuid.UUID       `json:"party_id"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

func NewObligationSettledEvent(o *Obligation) *ObligationSettledEvent {
	return &ObligationSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationSettled, AggregateTypeObligation, o.ID, o.TenantID),
		Kind:            o.Kind,
		Number:          o.Number,
		PartyID:         o.PartyID,
		GrandTotal:      o.GrandTotal,
	}
}

// PaymentAppliedEvent is raised when a receipt is committed
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber     string          `json:"receipt_number"`
	PartyID           uuid.UUID       `json:"party_id"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	BankLedgerEntryID uuid.UUID       `json:"bank_ledger_entry_id"`
}

func NewPaymentAppliedEvent(r *PaymentReceipt) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypePaymentReceipt, r.ID, r.TenantID),
		ReceiptNumber:     r.ReceiptNumber,
		PartyID:           r.PartyID,
		AmountPaid:        r.AmountPaid,
		UnallocatedAmount: r.UnallocatedAmount,
		BankLedgerEntryID: r.BankLedgerEntryID,
	}
}

// PaymentVoidedEvent is raised when a receipt is deleted
type PaymentVoidedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber string          `json:"receipt_number"`
	PartyID       uuid.UUID       `json:"party_id"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Reason        string          `json:"reason"`
}

func NewPaymentVoidedEvent(r *PaymentReceipt) *PaymentVoidedEvent {
	return &PaymentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentVoided, AggregateTypePaymentReceipt, r.ID, r.TenantID),
		ReceiptNumber:   r.ReceiptNumber,
		PartyID:         r.PartyID,
		AmountPaid:      r.AmountPaid,
		Reason:          r.VoidReason,
	}
}
