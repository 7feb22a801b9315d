package bank

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Direction of a money movement
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// SourceKind names what produced an entry
type SourceKind string

const (
	SourcePaymentReceived SourceKind = "PAYMENT_RECEIVED"
	SourcePaymentMade     SourceKind = "PAYMENT_MADE"
	SourceSale            SourceKind = "SALE"
	SourcePurchase        SourceKind = "PURCHASE"
	SourceReversal        SourceKind = "REVERSAL"
	SourceTransfer        SourceKind = "TRANSFER"
	SourceManual          SourceKind = "MANUAL"
)

func (s SourceKind) IsValid() bool {
	switch s {
	case SourcePaymentReceived, SourcePaymentMade, SourceSale, SourcePurchase,
		SourceReversal, SourceTransfer, SourceManual:
		return true
	}
	return false
}

// Reference points at the business document behind an entry
type Reference struct {
	Type   string
	ID     uuid.UUID
	Number string
}

// BankLedgerEntry is immutable apart from its reconciliation metadata
type BankLedgerEntry struct {
	ID                      uuid.UUID
	TenantID                uuid.UUID
	AccountID               uuid.UUID
	Sequence                int64
	Direction               Direction
	Amount                  decimal.Decimal
	BalanceBefore           decimal.Decimal
	BalanceAfterTransaction decimal.Decimal
	Source                  SourceKind
	Reference               Reference
	PartyID                 *uuid.UUID
	PartyName               string
	Note                    string
	TransactionDate         time.Time
	Reconciled              bool
	ReconciledAt            *time.Time
	ReconciledBy            string
	CreatedAt               time.Time
}

// SignedAmount is positive for credits and negative for debits
func (e *BankLedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// MarkReconciled sets the reconciliation metadata. Amounts are never touched.
func (e *BankLedgerEntry) MarkReconciled(by string, at time.Time) error {
	if e.Reconciled {
		return shared.NewDomainError(shared.CodeInvalidState, "entry is already reconciled")
	}
	if by == "" {
		return shared.NewValidationError("reconciled by is required")
	}
	e.Reconciled = true
	e.ReconciledAt = &at
	e.ReconciledBy = by
	return nil
}
