package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormBankAccountRepository implements bank.AccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// Create inserts a new account
func (r *GormBankAccountRepository) Create(ctx context.Context, account *bank.BankAccount) error {
	return duplicate(r.db.WithContext(ctx).Create(models.BankAccountModelFromDomain(account)).Error, "bank account "+account.Name)
}

// FindByID finds an account by its ID
func (r *GormBankAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bank.BankAccount, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an account and locks its row
func (r *GormBankAccountRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*bank.BankAccount, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormBankAccountRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*bank.BankAccount, error) {
	var model models.BankAccountModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns all accounts of a tenant ordered by name
func (r *GormBankAccountRepository) List(ctx context.Context, tenantID uuid.UUID) ([]bank.BankAccount, error) {
	var rows []models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]bank.BankAccount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormBankAccountRepository) SaveWithLock(ctx context.Context, account *bank.BankAccount) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version-1).
		Updates(map[string]interface{}{
			"name":            account.Name,
			"account_number":  account.AccountNumber,
			"current_balance": account.CurrentBalance,
			"entry_count":     account.EntryCount,
			"last_entry_at":   account.LastEntryAt,
			"version":         account.Version,
			"updated_at":      account.UpdatedAt,
		})
	return checkCAS(result, "bank account "+account.Name)
}

// GormBankEntryRepository implements bank.EntryRepository using GORM
type GormBankEntryRepository struct {
	db *gorm.DB
}

// NewGormBankEntryRepository creates a new GormBankEntryRepository
func NewGormBankEntryRepository(db *gorm.DB) *GormBankEntryRepository {
	return &GormBankEntryRepository{db: db}
}

// Append inserts a ledger entry
func (r *GormBankEntryRepository) Append(ctx context.Context, entry *bank.BankLedgerEntry) error {
	return r.db.WithContext(ctx).Create(models.BankLedgerEntryModelFromDomain(entry)).Error
}

// FindByID finds an entry by its ID
func (r *GormBankEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bank.BankLedgerEntry, error) {
	var model models.BankLedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindLatestAtOrBefore returns the newest entry dated at or before at.
// Sequence breaks ties between entries sharing a timestamp.
func (r *GormBankEntryRepository) FindLatestAtOrBefore(ctx context.Context, tenantID, accountID uuid.UUID, at time.Time) (*bank.BankLedgerEntry, error) {
	var model models.BankLedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND transaction_date <= ?", tenantID, accountID, at.UTC()).
		Order("transaction_date DESC, sequence DESC").
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ListByAccount returns an account's entries, newest first
func (r *GormBankEntryRepository) ListByAccount(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]bank.BankLedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BankLedgerEntryModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BankLedgerEntryModel
	if err := paginate(query, page).Order("sequence DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]bank.BankLedgerEntry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Totals returns the sum of credits and the sum of debits for an account
func (r *GormBankEntryRepository) Totals(ctx context.Context, tenantID, accountID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		Credits decimal.Decimal
		Debits  decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.BankLedgerEntryModel{}).
		Select(
			"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) as credits, "+
				"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) as debits",
			bank.DirectionCredit, bank.DirectionDebit,
		).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return result.Credits, result.Debits, nil
}

// UpdateReconciliation writes the reconciliation columns. The reconciled = false
// guard makes a second reconcile of the same entry a conflict.
func (r *GormBankEntryRepository) UpdateReconciliation(ctx context.Context, entry *bank.BankLedgerEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankLedgerEntryModel{}).
		Where("id = ? AND tenant_id = ? AND reconciled = ?", entry.ID, entry.TenantID, false).
		Updates(map[string]interface{}{
			"reconciled":    entry.Reconciled,
			"reconciled_at": entry.ReconciledAt,
			"reconciled_by": entry.ReconciledBy,
		})
	return checkCAS(result, "bank ledger entry")
}

// Ensure the repositories implement the domain interfaces
var (
	_ bank.AccountRepository = (*GormBankAccountRepository)(nil)
	_ bank.EntryRepository   = (*GormBankEntryRepository)(nil)
)
