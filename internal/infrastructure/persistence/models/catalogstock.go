package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/catalogstock"
)

// CatalogStockModel is the persistence model for a finished-goods stock level
type CatalogStockModel struct {
	AggregateModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_catalog_stock_item,priority:1"`
	CatalogItemID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_catalog_stock_item,priority:2"`
	Name          string          `gorm:"type:varchar(200)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (CatalogStockModel) TableName() string {
	return "catalog_stock_levels"
}

// ToDomain converts the persistence model to a domain stock Level
func (m *CatalogStockModel) ToDomain() *catalogstock.Level {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	return &catalogstock.Level{
		TenantAggregateRoot: t.tenantRoot(),
		CatalogItemID:       m.CatalogItemID,
		Name:                m.Name,
		Quantity:            m.Quantity,
	}
}

// CatalogStockModelFromDomain creates a new persistence model from a domain stock Level
func CatalogStockModelFromDomain(l *catalogstock.Level) *CatalogStockModel {
	m := &CatalogStockModel{
		TenantID:      l.TenantID,
		CatalogItemID: l.CatalogItemID,
		Name:          l.Name,
		Quantity:      l.Quantity,
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m
}
