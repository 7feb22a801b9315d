package bank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// AccountRepository persists bank and cash accounts
type AccountRepository interface {
	Create(ctx context.Context, account *BankAccount) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*BankAccount, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*BankAccount, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]BankAccount, error)
	SaveWithLock(ctx context.Context, account *BankAccount) error
}

// EntryRepository persists the bank ledger
type EntryRepository interface {
	Append(ctx context.Context, entry *BankLedgerEntry) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*BankLedgerEntry, error)
	// FindLatestAtOrBefore returns the newest entry with TransactionDate <= at, or ErrNotFound
	FindLatestAtOrBefore(ctx context.Context, tenantID, accountID uuid.UUID, at time.Time) (*BankLedgerEntry, error)
	ListByAccount(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]BankLedgerEntry, int64, error)
	// Totals returns Σcredits and Σdebits for an account
	Totals(ctx context.Context, tenantID, accountID uuid.UUID) (credits, debits decimal.Decimal, err error)
	// UpdateReconciliation writes only the reconciliation columns of an unreconciled entry
	UpdateReconciliation(ctx context.Context, entry *BankLedgerEntry) error
}
