package finance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// RoundingEpsilon is the tolerance for paid + pending == grand total
var RoundingEpsilon = decimal.New(1, -2)

// ObligationKind distinguishes what customers owe the shop from what the shop owes suppliers
type ObligationKind string

const (
	// KindInvoice is a sale invoice: money is received against it
	KindInvoice ObligationKind = "INVOICE"
	// KindBill is a supplier purchase bill: money is paid out against it
	KindBill ObligationKind = "BILL"
)

func (k ObligationKind) IsValid() bool {
	return k == KindInvoice || k == KindBill
}

// ObligationStatus tracks settlement progress
type ObligationStatus string

const (
	StatusPending   ObligationStatus = "PENDING"
	StatusPartial   ObligationStatus = "PARTIAL"
	StatusPaid      ObligationStatus = "PAID"
	StatusCancelled ObligationStatus = "CANCELLED"
)

// CanApplyPayment returns true if payments can be applied in this status
func (s ObligationStatus) CanApplyPayment() bool {
	return s == StatusPending || s == StatusPartial
}

// AllocationRecord is one entry of an obligation's settlement history.
// Reversals are recorded with a negative amount.
type AllocationRecord struct {
	ReceiptID uuid.UUID       `json:"receipt_id"`
	Amount    decimal.Decimal `json:"amount"`
	At        time.Time       `json:"at"`
}

// AllocationRecords is stored as a JSON column
type AllocationRecords []AllocationRecord

// Value implements driver.Valuer
func (r AllocationRecords) Value() (driver.Value, error) {
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
func (r *AllocationRecords) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*r = AllocationRecords{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("failed to scan AllocationRecords: unsupported type")
	}
	if len(b) == 0 {
		*r = AllocationRecords{}
		return nil
	}
	return json.Unmarshal(b, r)
}

// Obligation is an outstanding invoice or bill of one party.
// PaidAmount + PendingAmount == GrandTotal at all times.
type Obligation struct {
	shared.TenantAggregateRoot
	Kind           ObligationKind
	Number         string
	PartyID        uuid.UUID
	PartyName      string
	SourceID       *uuid.UUID
	ObligationDate time.Time
	GrandTotal     decimal.Decimal
	PaidAmount     decimal.Decimal
	PendingAmount  decimal.Decimal
	Status         ObligationStatus
	Allocations    AllocationRecords
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewObligation creates a pending obligation
func NewObligation(tenantID uuid.UUID, kind ObligationKind, number string, partyID uuid.UUID, partyName string,
	date time.Time, grandTotal decimal.Decimal) (*Obligation, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError("invalid obligation kind %q", kind)
	}
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewValidationError("obligation number is required")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewValidationError("party is required")
	}
	if grandTotal.IsNegative() {
		return nil, shared.NewValidationError("grand total cannot be negative")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	grandTotal = grandTotal.Round(2)
	o := &Obligation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Kind:                kind,
		Number:              strings.TrimSpace(number),
		PartyID:             partyID,
		PartyName:           partyName,
		ObligationDate:      date,
		GrandTotal:          grandTotal,
		PaidAmount:          decimal.Zero,
		PendingAmount:       grandTotal,
		Status:              StatusPending,
		Allocations:         AllocationRecords{},
	}
	if grandTotal.IsZero() {
		o.Status = StatusPaid
	}
	return o, nil
}

// ApplyPayment moves amount from pending to paid
func (o *Obligation) ApplyPayment(receiptID uuid.UUID, amount decimal.Decimal, at time.Time) error {
	if !o.Status.CanApplyPayment() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot apply payment to obligation in %s status", o.Status))
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("payment amount must be positive")
	}
	if amount.GreaterThan(o.PendingAmount) {
		return shared.NewValidationError("payment %s exceeds pending amount %s", amount.StringFixed(2), o.PendingAmount.StringFixed(2))
	}

	o.PaidAmount = o.PaidAmount.Add(amount)
	o.PendingAmount = o.GrandTotal.Sub(o.PaidAmount)
	o.Allocations = append(o.Allocations, AllocationRecord{ReceiptID: receiptID, Amount: amount, At: at})
	o.refreshStatus(at)
	o.Touch()
	o.IncrementVersion()
	if o.Status == StatusPaid {
		o.AddDomainEvent(NewObligationSettledEvent(o))
	}
	return nil
}

// ReversePayment moves amount from paid back to pending
func (o *Obligation) ReversePayment(receiptID uuid.UUID, amount decimal.Decimal, at time.Time) error {
	if o.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot reverse payment on a cancelled obligation")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("reversal amount must be positive")
	}
	if amount.GreaterThan(o.PaidAmount) {
		return shared.NewValidationError("reversal %s exceeds paid amount %s", amount.StringFixed(2), o.PaidAmount.StringFixed(2))
	}

	o.PaidAmount = o.PaidAmount.Sub(amount)
	o.PendingAmount = o.GrandTotal.Sub(o.PaidAmount)
	o.Allocations = append(o.Allocations, AllocationRecord{ReceiptID: receiptID, Amount: amount.Neg(), At: at})
	o.refreshStatus(at)
	o.Touch()
	o.IncrementVersion()
	return nil
}

// Adjust changes the grand total, keeping what was already paid
func (o *Obligation) Adjust(newGrandTotal decimal.Decimal, at time.Time) error {
	if o.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot adjust a cancelled obligation")
	}
	newGrandTotal = newGrandTotal.Round(2)
	if newGrandTotal.LessThan(o.PaidAmount) {
		return shared.NewValidationError("grand total %s is below paid amount %s", newGrandTotal.StringFixed(2), o.PaidAmount.StringFixed(2))
	}
	o.GrandTotal = newGrandTotal
	o.PendingAmount = newGrandTotal.Sub(o.PaidAmount)
	o.refreshStatus(at)
	o.Touch()
	o.IncrementVersion()
	return nil
}

// Cancel voids an obligation that has no payments against it
func (o *Obligation) Cancel(reason string, at time.Time) error {
	if o.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "obligation is already cancelled")
	}
	if o.PaidAmount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidState, "obligation has payments; delete them first")
	}
	o.Status = StatusCancelled
	o.PendingAmount = decimal.Zero
	o.PaidAmount = decimal.Zero
	o.GrandTotal = decimal.Zero
	o.CancelledAt = &at
	o.CancelReason = reason
	o.Touch()
	o.IncrementVersion()
	return nil
}

// CheckInvariant verifies paid + pending == grand total within RoundingEpsilon
func (o *Obligation) CheckInvariant() error {
	diff := o.PaidAmount.Add(o.PendingAmount).Sub(o.GrandTotal).Abs()
	if diff.GreaterThan(RoundingEpsilon) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("obligation %s: paid %s + pending %s != total %s", o.Number,
				o.PaidAmount.StringFixed(2), o.PendingAmount.StringFixed(2), o.GrandTotal.StringFixed(2)))
	}
	if o.PendingAmount.IsNegative() || o.PaidAmount.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidState, "obligation "+o.Number+": negative amounts")
	}
	return nil
}

func (o *Obligation) refreshStatus(at time.Time) {
	switch {
	case o.PendingAmount.LessThanOrEqual(decimal.Zero):
		o.Status = StatusPaid
		o.PaidAt = &at
	case o.PaidAmount.IsPositive():
		o.Status = StatusPartial
		o.PaidAt = nil
	default:
		o.Status = StatusPending
		o.PaidAt = nil
	}
}
