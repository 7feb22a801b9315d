package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormSaleBillRepository implements sales.Repository using GORM
type GormSaleBillRepository struct {
	db *gorm.DB
}

// NewGormSaleBillRepository creates a new GormSaleBillRepository
func NewGormSaleBillRepository(db *gorm.DB) *GormSaleBillRepository {
	return &GormSaleBillRepository{db: db}
}

func preloadSaleChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") })
}

// Create inserts the bill header, then its items and exchange lines
func (r *GormSaleBillRepository) Create(ctx context.Context, b *sales.SaleBill) error {
	model := models.SaleBillModelFromDomain(b)
	items, exchanges := model.Items, model.Exchanges
	model.Items, model.Exchanges = nil, nil

	db := r.db.WithContext(ctx)
	if err := db.Create(model).Error; err != nil {
		return duplicate(err, "sale bill "+b.BillNumber)
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
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

// FindByID finds a sale bill with its items
func (r *GormSaleBillRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.SaleBill, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a sale bill and locks its header row
func (r *GormSaleBillRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*sales.SaleBill, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormSaleBillRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*sales.SaleBill, error) {
	var model models.SaleBillModel
	if err := preloadSaleChildren(db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks a bill number is not posted twice
func (r *GormSaleBillRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SaleBillModel{}).
		Where("tenant_id = ? AND bill_number = ?", tenantID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns a page of sale bills, newest first
func (r *GormSaleBillRepository) List(ctx context.Context, tenantID uuid.UUID, page shared.Page) ([]sales.SaleBill, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SaleBillModel{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SaleBillModel
	if err := preloadSaleChildren(paginate(query, page)).
		Order("bill_date DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]sales.SaleBill, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save writes the bill status and exchange reversal markers
func (r *GormSaleBillRepository) Save(ctx context.Context, b *sales.SaleBill) error {
	db := r.db.WithContext(ctx)
	if err := checkCAS(db.Model(&models.SaleBillModel{}).
		Where("tenant_id = ? AND id = ?", b.TenantID, b.ID).
		Updates(map[string]interface{}{
			"status":       b.Status,
			"cancelled_at": b.CancelledAt,
			"version":      b.Version,
			"updated_at":   b.UpdatedAt,
		}), "sale bill "+b.BillNumber); err != nil {
		return err
	}
	for _, x := range b.Exchanges {
		if x.ReversedAt == nil {
			continue
		}
		if err := db.Model(&models.SaleBillExchangeModel{}).
			Where("id = ? AND reversed_at IS NULL", x.ID).
			Update("reversed_at", x.ReversedAt).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ sales.Repository = (*GormSaleBillRepository)(nil)
