package bank

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// AccountKind distinguishes bank accounts from cash drawers
type AccountKind string

const (
	KindBank AccountKind = "BANK"
	KindCash AccountKind = "CASH"
)

func (k AccountKind) IsValid() bool {
	return k == KindBank || k == KindCash
}

// BankAccount is a money account whose CurrentBalance is a projection of its
// ledger: CurrentBalance == OpeningBalance + Σcredits - Σdebits.
type BankAccount struct {
	shared.TenantAggregateRoot
	Name           string
	Kind           AccountKind
	AccountNumber  string
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	EntryCount     int64
	LastEntryAt    *time.Time
}

// NewBankAccount opens an account with an opening balance
func NewBankAccount(tenantID uuid.UUID, name string, kind AccountKind, accountNumber string, opening decimal.Decimal) (*BankAccount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("account name is required")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("invalid account kind %q", kind)
	}
	return &BankAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Kind:                kind,
		AccountNumber:       strings.TrimSpace(accountNumber),
		OpeningBalance:      opening.Round(2),
		CurrentBalance:      opening.Round(2),
	}, nil
}

// Posting is the descriptive part of a money movement
type Posting struct {
	Source    SourceKind
	Reference Reference
	PartyID   *uuid.UUID
	PartyName string
	Note      string
	// RecordedAt stamps the entry; the transaction date is used when unset
	RecordedAt time.Time
}

// Credit adds money and returns the ledger entry to append
func (a *BankAccount) Credit(amount decimal.Decimal, p Posting, at time.Time) (*BankLedgerEntry, error) {
	return a.post(DirectionCredit, amount, p, at)
}

// Debit removes money. The balance may go negative; callers that must not
// overdraw check CanCover first.
func (a *BankAccount) Debit(amount decimal.Decimal, p Posting, at time.Time) (*BankLedgerEntry, error) {
	return a.post(DirectionDebit, amount, p, at)
}

// CanCover reports whether the current balance covers amount
func (a *BankAccount) CanCover(amount decimal.Decimal) bool {
	return a.CurrentBalance.GreaterThanOrEqual(amount)
}

func (a *BankAccount) post(dir Direction, amount decimal.Decimal, p Posting, at time.Time) (*BankLedgerEntry, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount must be at least 0.01")
	}
	if !p.Source.IsValid() {
		return nil, shared.NewValidationError("invalid source %q", p.Source)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	recordedAt := p.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = at
	}
	// Entry timestamps never go backwards within an account so that
	// BalanceAtDate always resolves to the latest snapshot.
	if a.LastEntryAt != nil && at.Before(*a.LastEntryAt) {
		at = *a.LastEntryAt
	}

	before := a.CurrentBalance
	if dir == DirectionCredit {
		a.CurrentBalance = a.CurrentBalance.Add(amount)
	} else {
		a.CurrentBalance = a.CurrentBalance.Sub(amount)
	}
	a.EntryCount++
	a.LastEntryAt = &at
	a.Touch()
	a.IncrementVersion()

	entry := &BankLedgerEntry{
		ID:                      uuid.New(),
		TenantID:                a.TenantID,
		AccountID:               a.ID,
		Sequence:                a.EntryCount,
		Direction:               dir,
		Amount:                  amount,
		BalanceBefore:           before,
		BalanceAfterTransaction: a.CurrentBalance,
		Source:                  p.Source,
		Reference:               p.Reference,
		PartyID:                 p.PartyID,
		PartyName:               p.PartyName,
		Note:                    p.Note,
		TransactionDate:         at,
		CreatedAt:               recordedAt,
	}
	a.AddDomainEvent(NewBankEntryRecordedEvent(a, entry))
	return entry, nil
}

// Verify checks the balance identity against sums computed from the ledger
func (a *BankAccount) Verify(credits, debits decimal.Decimal) error {
	expected := a.OpeningBalance.Add(credits).Sub(debits)
	if !expected.Equal(a.CurrentBalance) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"account "+a.Name+": balance "+a.CurrentBalance.StringFixed(2)+" does not match ledger "+expected.StringFixed(2))
	}
	return nil
}
