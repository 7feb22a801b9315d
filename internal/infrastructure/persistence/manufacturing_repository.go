package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormManufacturingRecordRepository implements manufacturing.RecordRepository using GORM
type GormManufacturingRecordRepository struct {
	db *gorm.DB
}

// NewGormManufacturingRecordRepository creates a new GormManufacturingRecordRepository
func NewGormManufacturingRecordRepository(db *gorm.DB) *GormManufacturingRecordRepository {
	return &GormManufacturingRecordRepository{db: db}
}

func preloadRecordItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") })
}

// Create inserts the record and its items
func (r *GormManufacturingRecordRepository) Create(ctx context.Context, rec *manufacturing.ManufacturingRecord) error {
	model := models.ManufacturingRecordModelFromDomain(rec)
	items := model.Items
	model.Items = nil

	db := r.db.WithContext(ctx)
	if err := db.Create(model).Error; err != nil {
		return duplicate(err, "manufacturing record "+rec.RecordNumber)
	}
	if len(items) > 0 {
		return db.Create(&items).Error
	}
	return nil
}

// FindByID finds a record with its items
func (r *GormManufacturingRecordRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingRecord, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a record and locks its header row
func (r *GormManufacturingRecordRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingRecord, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormManufacturingRecordRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*manufacturing.ManufacturingRecord, error) {
	var model models.ManufacturingRecordModel
	if err := preloadRecordItems(db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks a record number is not used twice
func (r *GormManufacturingRecordRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ManufacturingRecordModel{}).
		Where("tenant_id = ? AND record_number = ?", tenantID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns a page of records, optionally those of one purchase event
func (r *GormManufacturingRecordRepository) List(ctx context.Context, tenantID uuid.UUID, purchaseEventID *uuid.UUID, page shared.Page) ([]manufacturing.ManufacturingRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ManufacturingRecordModel{}).Where("tenant_id = ?", tenantID)
	if purchaseEventID != nil {
		query = query.Where("purchase_event_id = ?", *purchaseEventID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ManufacturingRecordModel
	if err := preloadRecordItems(paginate(query, page)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]manufacturing.ManufacturingRecord, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save writes the record status and the reversal marker of each reversed item
func (r *GormManufacturingRecordRepository) Save(ctx context.Context, rec *manufacturing.ManufacturingRecord) error {
	db := r.db.WithContext(ctx)
	if err := checkCAS(db.Model(&models.ManufacturingRecordModel{}).
		Where("tenant_id = ? AND id = ?", rec.TenantID, rec.ID).
		Updates(map[string]interface{}{
			"status":       rec.Status,
			"cancelled_at": rec.CancelledAt,
			"updated_at":   rec.UpdatedAt,
		}), "manufacturing record "+rec.RecordNumber); err != nil {
		return err
	}
	for _, it := range rec.Items {
		if it.ReversedAt == nil {
			continue
		}
		if err := db.Model(&models.ManufacturingItemModel{}).
			Where("id = ? AND reversed_at IS NULL", it.ID).
			Update("reversed_at", it.ReversedAt).Error; err != nil {
			return err
		}
	}
	return nil
}

// GormConsumptionLinkRepository implements manufacturing.LinkRepository using GORM
type GormConsumptionLinkRepository struct {
	db *gorm.DB
}

// NewGormConsumptionLinkRepository creates a new GormConsumptionLinkRepository
func NewGormConsumptionLinkRepository(db *gorm.DB) *GormConsumptionLinkRepository {
	return &GormConsumptionLinkRepository{db: db}
}

// ListByEvent returns the consumption recorded against a purchase event
func (r *GormConsumptionLinkRepository) ListByEvent(ctx context.Context, tenantID, purchaseEventID uuid.UUID) ([]manufacturing.ConsumptionLink, error) {
	var rows []models.ConsumptionLinkModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND purchase_event_id = ?", tenantID, purchaseEventID).
		Order("metal_key ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]manufacturing.ConsumptionLink, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// GetOrCreateForUpdate returns the locked link for (event, key), creating it empty if missing
func (r *GormConsumptionLinkRepository) GetOrCreateForUpdate(ctx context.Context, tenantID, purchaseEventID uuid.UUID, key string) (*manufacturing.ConsumptionLink, error) {
	link, err := r.findForUpdate(ctx, tenantID, purchaseEventID, key)
	if err == nil {
		return link, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "purchase_event_id"}, {Name: "metal_key"}},
			DoNothing: true,
		}).
		Create(models.ConsumptionLinkModelFromDomain(manufacturing.NewConsumptionLink(tenantID, purchaseEventID, key))).Error; err != nil {
		return nil, err
	}
	return r.findForUpdate(ctx, tenantID, purchaseEventID, key)
}

func (r *GormConsumptionLinkRepository) findForUpdate(ctx context.Context, tenantID, purchaseEventID uuid.UUID, key string) (*manufacturing.ConsumptionLink, error) {
	var model models.ConsumptionLinkModel
	if err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND purchase_event_id = ? AND metal_key = ?", tenantID, purchaseEventID, key).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormConsumptionLinkRepository) SaveWithLock(ctx context.Context, link *manufacturing.ConsumptionLink) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConsumptionLinkModel{}).
		Where("id = ? AND version = ?", link.ID, link.Version-1).
		Updates(map[string]interface{}{
			"consumed":   link.Consumed,
			"version":    link.Version,
			"updated_at": link.UpdatedAt,
		})
	return checkCAS(result, "consumption link "+link.MetalKey)
}

// Ensure the repositories implement the domain interfaces
var (
	_ manufacturing.RecordRepository = (*GormManufacturingRecordRepository)(nil)
	_ manufacturing.LinkRepository   = (*GormConsumptionLinkRepository)(nil)
)
