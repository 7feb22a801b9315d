package metal

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// AccountRepository persists metal accounts
type AccountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*MetalAccount, error)
	FindByKey(ctx context.Context, tenantID uuid.UUID, pool Pool, key MetalKey) (*MetalAccount, error)
	// FindByKeyForUpdate loads the account holding a row lock until the transaction ends
	FindByKeyForUpdate(ctx context.Context, tenantID uuid.UUID, pool Pool, key MetalKey) (*MetalAccount, error)
	// GetOrCreateForUpdate inserts the account if missing and returns it row-locked
	GetOrCreateForUpdate(ctx context.Context, tenantID uuid.UUID, pool Pool, key MetalKey) (*MetalAccount, error)
	List(ctx context.Context, tenantID uuid.UUID, pool Pool, page shared.Page) ([]MetalAccount, int64, error)
	ListAll(ctx context.Context, tenantID uuid.UUID) ([]MetalAccount, error)
	// SaveWithLock writes the account if its stored version is Version-1
	SaveWithLock(ctx context.Context, account *MetalAccount) error
}

// EntryRepository persists the append-only metal ledger
type EntryRepository interface {
	Append(ctx context.Context, entries ...*MetalLedgerEntry) error
	ExistsByReference(ctx context.Context, tenantID uuid.UUID, pool Pool, refType string, refID uuid.UUID) (bool, error)
	ListByAccount(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]MetalLedgerEntry, int64, error)
	// NetMovement returns Σ IN minus Σ OUT weight for an account. Every entry
	// moves available weight by its signed amount, so this equals Available.
	NetMovement(ctx context.Context, tenantID, accountID uuid.UUID) (decimal.Decimal, error)
}
