package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormMetalAccountRepository implements metal.AccountRepository using GORM
type GormMetalAccountRepository struct {
	db *gorm.DB
}

// NewGormMetalAccountRepository creates a new GormMetalAccountRepository
func NewGormMetalAccountRepository(db *gorm.DB) *GormMetalAccountRepository {
	return &GormMetalAccountRepository{db: db}
}

// FindByID finds a metal account by its ID
func (r *GormMetalAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*metal.MetalAccount, error) {
	var model models.MetalAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByKey finds the account of a pool for a metal key
func (r *GormMetalAccountRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, pool metal.Pool, key metal.MetalKey) (*metal.MetalAccount, error) {
	return r.findByKey(r.db.WithContext(ctx), tenantID, pool, key)
}

// FindByKeyForUpdate finds the account and locks its row until the transaction ends
func (r *GormMetalAccountRepository) FindByKeyForUpdate(ctx context.Context, tenantID uuid.UUID, pool metal.Pool, key metal.MetalKey) (*metal.MetalAccount, error) {
	return r.findByKey(forUpdate(r.db.WithContext(ctx)), tenantID, pool, key)
}

func (r *GormMetalAccountRepository) findByKey(db *gorm.DB, tenantID uuid.UUID, pool metal.Pool, key metal.MetalKey) (*metal.MetalAccount, error) {
	var model models.MetalAccountModel
	if err := db.
		Where("tenant_id = ? AND pool = ? AND metal_key = ?", tenantID, pool, key.String()).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// GetOrCreateForUpdate returns the locked account for the key, creating an
// empty one first if none exists. Concurrent creators race on the unique
// index; the loser's insert is a no-op and both then lock the same row.
func (r *GormMetalAccountRepository) GetOrCreateForUpdate(ctx context.Context, tenantID uuid.UUID, pool metal.Pool, key metal.MetalKey) (*metal.MetalAccount, error) {
	account, err := r.FindByKeyForUpdate(ctx, tenantID, pool, key)
	if err == nil {
		return account, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	account, err = metal.NewMetalAccount(tenantID, pool, key)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "pool"}, {Name: "metal_key"}},
			DoNothing: true,
		}).
		Create(models.MetalAccountModelFromDomain(account)).Error; err != nil {
		return nil, err
	}
	return r.FindByKeyForUpdate(ctx, tenantID, pool, key)
}

// List returns a page of accounts in a pool, ordered by metal key
func (r *GormMetalAccountRepository) List(ctx context.Context, tenantID uuid.UUID, pool metal.Pool, page shared.Page) ([]metal.MetalAccount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MetalAccountModel{}).
		Where("tenant_id = ? AND pool = ?", tenantID, pool)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MetalAccountModel
	if err := paginate(query, page).Order("metal_key ASC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return metalAccountsToDomain(rows), total, nil
}

// ListAll returns every metal account of the shop, both pools
func (r *GormMetalAccountRepository) ListAll(ctx context.Context, tenantID uuid.UUID) ([]metal.MetalAccount, error) {
	var rows []models.MetalAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("pool ASC, metal_key ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return metalAccountsToDomain(rows), nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormMetalAccountRepository) SaveWithLock(ctx context.Context, account *metal.MetalAccount) error {
	result := r.db.WithContext(ctx).
		Model(&models.MetalAccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version-1).
		Updates(map[string]interface{}{
			"total_gross": account.TotalGross,
			"total_net":   account.TotalNet,
			"used":        account.Used,
			"available":   account.Available,
			"entry_count": account.EntryCount,
			"version":     account.Version,
			"updated_at":  account.UpdatedAt,
		})
	return checkCAS(result, "metal account "+account.Key.String())
}

func metalAccountsToDomain(rows []models.MetalAccountModel) []metal.MetalAccount {
	out := make([]metal.MetalAccount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormMetalEntryRepository implements metal.EntryRepository using GORM
type GormMetalEntryRepository struct {
	db *gorm.DB
}

// NewGormMetalEntryRepository creates a new GormMetalEntryRepository
func NewGormMetalEntryRepository(db *gorm.DB) *GormMetalEntryRepository {
	return &GormMetalEntryRepository{db: db}
}

// Append inserts ledger entries. Entries are never updated.
func (r *GormMetalEntryRepository) Append(ctx context.Context, entries ...*metal.MetalLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.MetalLedgerEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.MetalLedgerEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// ExistsByReference reports whether any entry in the pool points at the document
func (r *GormMetalEntryRepository) ExistsByReference(ctx context.Context, tenantID uuid.UUID, pool metal.Pool, refType string, refID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MetalLedgerEntryModel{}).
		Where("tenant_id = ? AND pool = ? AND reference_type = ? AND reference_id = ?", tenantID, pool, refType, refID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByAccount returns an account's entries, newest first
func (r *GormMetalEntryRepository) ListByAccount(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]metal.MetalLedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MetalLedgerEntryModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MetalLedgerEntryModel
	if err := paginate(query, page).Order("sequence DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]metal.MetalLedgerEntry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// NetMovement sums inbound minus outbound weight for an account
func (r *GormMetalEntryRepository) NetMovement(ctx context.Context, tenantID, accountID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MetalLedgerEntryModel{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN weight ELSE -weight END), 0) as total", metal.DirectionIn).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Ensure the repositories implement the domain interfaces
var (
	_ metal.AccountRepository = (*GormMetalAccountRepository)(nil)
	_ metal.EntryRepository   = (*GormMetalEntryRepository)(nil)
)
