package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelryerp/backend/internal/domain/catalogstock"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// GormCatalogStockRepository implements catalogstock.Repository using GORM
type GormCatalogStockRepository struct {
	db *gorm.DB
}

// NewGormCatalogStockRepository creates a new GormCatalogStockRepository
func NewGormCatalogStockRepository(db *gorm.DB) *GormCatalogStockRepository {
	return &GormCatalogStockRepository{db: db}
}

// Upsert creates the level or overwrites name and quantity of an existing one
func (r *GormCatalogStockRepository) Upsert(ctx context.Context, level *catalogstock.Level) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "catalog_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "updated_at"}),
		}).
		Create(models.CatalogStockModelFromDomain(level)).Error
}

// FindByItem finds the stock level of a catalog item
func (r *GormCatalogStockRepository) FindByItem(ctx context.Context, tenantID, catalogItemID uuid.UUID) (*catalogstock.Level, error) {
	return r.find(r.db.WithContext(ctx), tenantID, catalogItemID)
}

// FindByItemForUpdate finds the stock level and locks its row
func (r *GormCatalogStockRepository) FindByItemForUpdate(ctx context.Context, tenantID, catalogItemID uuid.UUID) (*catalogstock.Level, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), tenantID, catalogItemID)
}

func (r *GormCatalogStockRepository) find(db *gorm.DB, tenantID, catalogItemID uuid.UUID) (*catalogstock.Level, error) {
	var model models.CatalogStockModel
	if err := db.Where("tenant_id = ? AND catalog_item_id = ?", tenantID, catalogItemID).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns every stock level of a tenant
func (r *GormCatalogStockRepository) List(ctx context.Context, tenantID uuid.UUID) ([]catalogstock.Level, error) {
	var rows []models.CatalogStockModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalogstock.Level, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormCatalogStockRepository) SaveWithLock(ctx context.Context, level *catalogstock.Level) error {
	result := r.db.WithContext(ctx).
		Model(&models.CatalogStockModel{}).
		Where("id = ? AND version = ?", level.ID, level.Version-1).
		Updates(map[string]interface{}{
			"quantity":   level.Quantity,
			"version":    level.Version,
			"updated_at": level.UpdatedAt,
		})
	return checkCAS(result, "catalog stock "+level.Name)
}

var _ catalogstock.Repository = (*GormCatalogStockRepository)(nil)
