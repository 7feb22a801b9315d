package finance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// PaymentMode is how the money moved
type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeUPI          PaymentMode = "UPI"
	ModeCard         PaymentMode = "CARD"
	ModeCheque       PaymentMode = "CHEQUE"
)

func (m PaymentMode) IsValid() bool {
	switch m {
	case ModeCash, ModeBankTransfer, ModeUPI, ModeCard, ModeCheque:
		return true
	}
	return false
}

// ReceiptStatus of a payment receipt
type ReceiptStatus string

const (
	ReceiptActive ReceiptStatus = "ACTIVE"
	ReceiptVoided ReceiptStatus = "VOIDED"
)

// ReceiptAllocation is the frozen share of a payment given to one obligation
type ReceiptAllocation struct {
	ObligationID     uuid.UUID       `json:"obligation_id"`
	ObligationNumber string          `json:"obligation_number"`
	Amount           decimal.Decimal `json:"amount"`
	PendingBefore    decimal.Decimal `json:"pending_before"`
	PendingAfter     decimal.Decimal `json:"pending_after"`
}

// ReceiptAllocations is stored as a JSON column
type ReceiptAllocations []ReceiptAllocation

// Value implements driver.Valuer
func (r ReceiptAllocations) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *ReceiptAllocations) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*r = ReceiptAllocations{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("failed to scan ReceiptAllocations: unsupported type")
	}
	if len(b) == 0 {
		*r = ReceiptAllocations{}
		return nil
	}
	return json.Unmarshal(b, r)
}

// PaymentReceipt is the immutable snapshot of one payment as applied.
// Only voiding changes it afterwards.
type PaymentReceipt struct {
	shared.TenantAggregateRoot
	ReceiptNumber          string
	ObligationKind         ObligationKind
	PartyID                uuid.UUID
	PartyName              string
	BankAccountID          uuid.UUID
	Mode                   PaymentMode
	Reference              string
	Notes                  string
	AmountPaid             decimal.Decimal
	PreviousPendingAmount  decimal.Decimal
	RemainingPendingAmount decimal.Decimal
	UnallocatedAmount      decimal.Decimal
	Allocations            ReceiptAllocations
	BankLedgerEntryID      uuid.UUID
	ReversalEntryID        *uuid.UUID
	Status                 ReceiptStatus
	PaidAt                 time.Time
	VoidedAt               *time.Time
	VoidReason             string
}

// ReceiptInput is what a caller supplies for a payment
type ReceiptInput struct {
	ReceiptNumber  string
	ObligationKind ObligationKind
	PartyID        uuid.UUID
	PartyName      string
	BankAccountID  uuid.UUID
	Mode           PaymentMode
	Reference      string
	Notes          string
	Amount         decimal.Decimal
}

// Validate checks a payment request before anything is locked
func (in ReceiptInput) Validate() error {
	if !in.ObligationKind.IsValid() {
		return shared.NewValidationError("invalid obligation kind %q", in.ObligationKind)
	}
	if in.PartyID == uuid.Nil {
		return shared.NewValidationError("party is required")
	}
	if in.BankAccountID == uuid.Nil {
		return shared.NewValidationError("bank account is required")
	}
	if !in.Mode.IsValid() {
		return shared.NewValidationError("invalid payment mode %q", in.Mode)
	}
	if !in.Amount.IsPositive() {
		return shared.NewValidationError("payment amount must be positive")
	}
	return nil
}

// NewPaymentReceipt freezes a payment with the pending totals around it
func NewPaymentReceipt(tenantID uuid.UUID, in ReceiptInput, previousPending decimal.Decimal, allocations []ReceiptAllocation, paidAt time.Time) (*PaymentReceipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	allocated := decimal.Zero
	for _, a := range allocations {
		allocated = allocated.Add(a.Amount)
	}
	amount := in.Amount.Round(2)
	if allocated.GreaterThan(amount) {
		return nil, shared.NewValidationError("allocations %s exceed payment %s", allocated.StringFixed(2), amount.StringFixed(2))
	}

	r := &PaymentReceipt{
		TenantAggregateRoot:    shared.NewTenantAggregateRoot(tenantID),
		ReceiptNumber:          strings.TrimSpace(in.ReceiptNumber),
		ObligationKind:         in.ObligationKind,
		PartyID:                in.PartyID,
		PartyName:              in.PartyName,
		BankAccountID:          in.BankAccountID,
		Mode:                   in.Mode,
		Reference:              strings.TrimSpace(in.Reference),
		Notes:                  in.Notes,
		AmountPaid:             amount,
		PreviousPendingAmount:  previousPending,
		RemainingPendingAmount: previousPending.Sub(allocated),
		UnallocatedAmount:      amount.Sub(allocated),
		Allocations:            ReceiptAllocations(allocations),
		Status:                 ReceiptActive,
		PaidAt:                 paidAt,
	}
	if r.ReceiptNumber == "" {
		r.ReceiptNumber = "RCPT-" + strings.ToUpper(r.ID.String()[:8])
	}
	return r, nil
}

// AllocatedAmount is the part of the payment applied to obligations
func (r *PaymentReceipt) AllocatedAmount() decimal.Decimal {
	return r.AmountPaid.Sub(r.UnallocatedAmount)
}

// LinkBankEntry records the ledger entry produced by the payment
func (r *PaymentReceipt) LinkBankEntry(entryID uuid.UUID) {
	r.BankLedgerEntryID = entryID
	r.AddDomainEvent(NewPaymentAppliedEvent(r))
}

// Void marks the receipt deleted after its effects were reversed
func (r *PaymentReceipt) Void(reason string, reversalEntryID uuid.UUID, at time.Time) error {
	if r.Status == ReceiptVoided {
		return shared.NewDomainError(shared.CodeDuplicateProcessing, "payment receipt "+r.ReceiptNumber+" is already voided")
	}
	r.Status = ReceiptVoided
	r.VoidedAt = &at
	r.VoidReason = reason
	r.ReversalEntryID = &reversalEntryID
	r.Touch()
	r.IncrementVersion()
	r.AddDomainEvent(NewPaymentVoidedEvent(r))
	return nil
}
