package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

var outstandingStatuses = []finance.ObligationStatus{finance.StatusPending, finance.StatusPartial}

// GormObligationRepository implements finance.ObligationRepository using GORM
type GormObligationRepository struct {
	db *gorm.DB
}

// NewGormObligationRepository creates a new GormObligationRepository
func NewGormObligationRepository(db *gorm.DB) *GormObligationRepository {
	return &GormObligationRepository{db: db}
}

// Create inserts a new obligation
func (r *GormObligationRepository) Create(ctx context.Context, o *finance.Obligation) error {
	return duplicate(r.db.WithContext(ctx).Create(models.ObligationModelFromDomain(o)).Error, "obligation "+o.Number)
}

// FindByID finds an obligation by its ID
func (r *GormObligationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Obligation, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds an obligation and locks its row
func (r *GormObligationRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Obligation, error) {
	return r.first(forUpdate(r.db.WithContext(ctx)).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindBySourceForUpdate locks the obligation raised by a posted document
func (r *GormObligationRepository) FindBySourceForUpdate(ctx context.Context, tenantID uuid.UUID, kind finance.ObligationKind, sourceID uuid.UUID) (*finance.Obligation, error) {
	return r.first(forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND kind = ? AND source_id = ?", tenantID, kind, sourceID))
}

func (r *GormObligationRepository) first(db *gorm.DB) (*finance.Obligation, error) {
	var model models.ObligationModel
	if err := db.First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindOutstandingForUpdate locks the party's open obligations and returns
// them oldest first. Rows are always locked in id order, whatever order the
// caller walks them in, so a payment and a deletion for the same party
// cannot lock each other's rows crosswise.
func (r *GormObligationRepository) FindOutstandingForUpdate(ctx context.Context, tenantID uuid.UUID, kind finance.ObligationKind, partyID uuid.UUID) ([]finance.Obligation, error) {
	items, err := r.find(forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND kind = ? AND party_id = ? AND status IN ? AND pending_amount > 0",
			tenantID, kind, partyID, outstandingStatuses).
		Order("id ASC"))
	if err != nil {
		return nil, err
	}
	finance.SortOldestFirst(items)
	return items, nil
}

// FindPaidForUpdate locks the party's obligations carrying payments in id
// order and returns them newest first
func (r *GormObligationRepository) FindPaidForUpdate(ctx context.Context, tenantID uuid.UUID, kind finance.ObligationKind, partyID uuid.UUID) ([]finance.Obligation, error) {
	items, err := r.find(forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND kind = ? AND party_id = ? AND status <> ? AND paid_amount > 0",
			tenantID, kind, partyID, finance.StatusCancelled).
		Order("id ASC"))
	if err != nil {
		return nil, err
	}
	finance.SortNewestFirst(items)
	return items, nil
}

// List returns a filtered page of obligations
func (r *GormObligationRepository) List(ctx context.Context, tenantID uuid.UUID, filter finance.ObligationFilter, page shared.Page) ([]finance.Obligation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ObligationModel{}).Where("tenant_id = ?", tenantID)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.PartyID != nil {
		query = query.Where("party_id = ?", *filter.PartyID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, ObligationSortFields, "obligation_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	items, err := r.find(paginate(query, page).Order(sortField + " " + sortOrder))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every obligation of a tenant
func (r *GormObligationRepository) ListAll(ctx context.Context, tenantID uuid.UUID) ([]finance.Obligation, error) {
	return r.find(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("obligation_date ASC"))
}

func (r *GormObligationRepository) find(db *gorm.DB) ([]finance.Obligation, error) {
	var rows []models.ObligationModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]finance.Obligation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// PendingTotal sums the pending amount of a party's open obligations
func (r *GormObligationRepository) PendingTotal(ctx context.Context, tenantID uuid.UUID, kind finance.ObligationKind, partyID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Select("COALESCE(SUM(pending_amount), 0) as total").
		Where("tenant_id = ? AND kind = ? AND party_id = ? AND status IN ?", tenantID, kind, partyID, outstandingStatuses).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormObligationRepository) SaveWithLock(ctx context.Context, o *finance.Obligation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Where("id = ? AND version = ?", o.ID, o.Version-1).
		Updates(map[string]interface{}{
			"grand_total":    o.GrandTotal,
			"paid_amount":    o.PaidAmount,
			"pending_amount": o.PendingAmount,
			"status":         o.Status,
			"allocations":    o.Allocations,
			"paid_at":        o.PaidAt,
			"cancelled_at":   o.CancelledAt,
			"cancel_reason":  o.CancelReason,
			"version":        o.Version,
			"updated_at":     o.UpdatedAt,
		})
	return checkCAS(result, "obligation "+o.Number)
}

// GormReceiptRepository implements finance.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// Create inserts a receipt snapshot
func (r *GormReceiptRepository) Create(ctx context.Context, receipt *finance.PaymentReceipt) error {
	return duplicate(r.db.WithContext(ctx).Create(models.PaymentReceiptModelFromDomain(receipt)).Error, "receipt "+receipt.ReceiptNumber)
}

// FindByID finds a receipt by its ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.PaymentReceipt, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a receipt and locks its row
func (r *GormReceiptRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.PaymentReceipt, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormReceiptRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*finance.PaymentReceipt, error) {
	var model models.PaymentReceiptModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsByReference reports an active receipt of the party with the same reference
func (r *GormReceiptRepository) ExistsByReference(ctx context.Context, tenantID, partyID uuid.UUID, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentReceiptModel{}).
		Where("tenant_id = ? AND party_id = ? AND reference = ? AND status = ?", tenantID, partyID, reference, finance.ReceiptActive).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByParty returns a party's receipts, newest first
func (r *GormReceiptRepository) ListByParty(ctx context.Context, tenantID, partyID uuid.UUID, page shared.Page) ([]finance.PaymentReceipt, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentReceiptModel{}).
		Where("tenant_id = ? AND party_id = ?", tenantID, partyID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentReceiptModel
	if err := paginate(query, page).Order("paid_at DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]finance.PaymentReceipt, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// SaveWithLock writes the mutable columns of a receipt: the bank entry link and the void fields
func (r *GormReceiptRepository) SaveWithLock(ctx context.Context, receipt *finance.PaymentReceipt) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentReceiptModel{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version-1).
		Updates(map[string]interface{}{
			"bank_ledger_entry_id": receipt.BankLedgerEntryID,
			"reversal_entry_id":    receipt.ReversalEntryID,
			"status":               receipt.Status,
			"voided_at":            receipt.VoidedAt,
			"void_reason":          receipt.VoidReason,
			"version":              receipt.Version,
			"updated_at":           receipt.UpdatedAt,
		})
	return checkCAS(result, "payment receipt "+receipt.ReceiptNumber)
}

// Ensure the repositories implement the domain interfaces
var (
	_ finance.ObligationRepository = (*GormObligationRepository)(nil)
	_ finance.ReceiptRepository    = (*GormReceiptRepository)(nil)
)
