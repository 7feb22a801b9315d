package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormPurchaseEventRepository implements purchase.Repository using GORM
type GormPurchaseEventRepository struct {
	db *gorm.DB
}

// NewGormPurchaseEventRepository creates a new GormPurchaseEventRepository
func NewGormPurchaseEventRepository(db *gorm.DB) *GormPurchaseEventRepository {
	return &GormPurchaseEventRepository{db: db}
}

func preloadPurchaseChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") })
}

// Create inserts the event header, then its lines and exchanges
func (r *GormPurchaseEventRepository) Create(ctx context.Context, ev *purchase.PurchaseEvent) error {
	model := models.PurchaseEventModelFromDomain(ev)
	lines, exchanges := model.Lines, model.Exchanges
	model.Lines, model.Exchanges = nil, nil

	db := r.db.WithContext(ctx)
	if err := db.Create(model).Error; err != nil {
		return duplicate(err, "purchase invoice "+ev.InvoiceNumber)
	}
	if len(lines) > 0 {
		if err := db.Create(&lines).Error; err != nil {
			return err
		}
	}
	if len(exchanges) > 0 {
		if err := db.Create(&exchanges).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a purchase event with its lines
func (r *GormPurchaseEventRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*purchase.PurchaseEvent, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a purchase event and locks its header row
func (r *GormPurchaseEventRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*purchase.PurchaseEvent, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormPurchaseEventRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*purchase.PurchaseEvent, error) {
	var model models.PurchaseEventModel
	if err := preloadPurchaseChildren(db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks the supplier's invoice number is not posted twice
func (r *GormPurchaseEventRepository) ExistsByNumber(ctx context.Context, tenantID, supplierID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseEventModel{}).
		Where("tenant_id = ? AND supplier_id = ? AND invoice_number = ?", tenantID, supplierID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns a page of purchase events, newest first
func (r *GormPurchaseEventRepository) List(ctx context.Context, tenantID uuid.UUID, page shared.Page) ([]purchase.PurchaseEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseEventModel{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PurchaseEventModel
	if err := preloadPurchaseChildren(paginate(query, page)).
		Order("event_date DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]purchase.PurchaseEvent, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save writes the header status and the reversal markers of lines and exchanges.
// Weights and amounts of a posted event never change.
func (r *GormPurchaseEventRepository) Save(ctx context.Context, ev *purchase.PurchaseEvent) error {
	db := r.db.WithContext(ctx)
	if err := checkCAS(db.Model(&models.PurchaseEventModel{}).
		Where("tenant_id = ? AND id = ?", ev.TenantID, ev.ID).
		Updates(map[string]interface{}{
			"status":       ev.Status,
			"cancelled_at": ev.CancelledAt,
			"version":      ev.Version,
			"updated_at":   ev.UpdatedAt,
		}), "purchase event "+ev.InvoiceNumber); err != nil {
		return err
	}
	for _, l := range ev.Lines {
		if l.ReversedAt == nil {
			continue
		}
		if err := db.Model(&models.PurchaseLineModel{}).
			Where("id = ? AND reversed_at IS NULL", l.ID).
			Update("reversed_at", l.ReversedAt).Error; err != nil {
			return err
		}
	}
	for _, x := range ev.Exchanges {
		if x.RestoredAt == nil {
			continue
		}
		if err := db.Model(&models.PurchaseExchangeModel{}).
			Where("id = ? AND restored_at IS NULL", x.ID).
			Update("restored_at", x.RestoredAt).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ purchase.Repository = (*GormPurchaseEventRepository)(nil)
