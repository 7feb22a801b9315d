package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// TenantAggregateModel provides common persistence fields for shop-scoped aggregate roots.
type TenantAggregateModel struct {
	AggregateModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainTenantAggregateRoot populates TenantAggregateModel from domain TenantAggregateRoot
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.TenantID = t.TenantID
}

// PopulateTenantAggregateRoot populates a domain TenantAggregateRoot from persistence model
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot) {
	t.BaseAggregateRoot.BaseEntity.ID = m.ID
	t.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	t.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	t.BaseAggregateRoot.Version = m.Version
	t.TenantID = m.TenantID
}

// tenantRoot rebuilds the embedded aggregate root of a loaded model
func (m *TenantAggregateModel) tenantRoot() shared.TenantAggregateRoot {
	var t shared.TenantAggregateRoot
	m.PopulateTenantAggregateRoot(&t)
	return t
}

// AllModels lists every persistence model, in dependency order, for AutoMigrate.
func AllModels() []any {
	return []any{
		&MetalAccountModel{},
		&MetalLedgerEntryModel{},
		&BankAccountModel{},
		&BankLedgerEntryModel{},
		&ObligationModel{},
		&PaymentReceiptModel{},
		&PurchaseEventModel{},
		&PurchaseLineModel{},
		&PurchaseExchangeModel{},
		&SaleBillModel{},
		&SaleBillItemModel{},
		&SaleBillExchangeModel{},
		&ManufacturingRecordModel{},
		&ManufacturingItemModel{},
		&ConsumptionLinkModel{},
		&CatalogStockModel{},
		&OutboxEntryModel{},
		&ProcessedEventModel{},
	}
}
