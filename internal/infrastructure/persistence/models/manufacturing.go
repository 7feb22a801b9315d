package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/manufacturing"
)

// ManufacturingRecordModel is the persistence model for a manufacturing record
type ManufacturingRecordModel struct {
	AggregateModel
	TenantID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_manufacturing_record_number,priority:1"`
	RecordNumber    string                     `gorm:"type:varchar(50);not null;uniqueIndex:idx_manufacturing_record_number,priority:2"`
	PurchaseEventID uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Status          manufacturing.RecordStatus `gorm:"type:varchar(24);not null"`
	Items           []ManufacturingItemModel   `gorm:"foreignKey:RecordID;references:ID"`
	CancelledAt     *time.Time
}

// TableName returns the table name for GORM
func (ManufacturingRecordModel) TableName() string {
	return "manufacturing_records"
}

// ManufacturingItemModel is one finished item of a manufacturing record
type ManufacturingItemModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RecordID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	LineNo        int        `gorm:"not null"`
	CatalogItemID *uuid.UUID `gorm:"type:uuid"`
	Name          string     `gorm:"type:varchar(200)"`
	MetalKeyColumns
	NetWeight      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ConsumedWeight decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReversedAt     *time.Time
}

// TableName returns the table name for GORM
func (ManufacturingItemModel) TableName() string {
	return "manufacturing_record_items"
}

// ToDomain converts the persistence model to a domain ManufacturingRecord
func (m *ManufacturingRecordModel) ToDomain() *manufacturing.ManufacturingRecord {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	rec := &manufacturing.ManufacturingRecord{
		TenantAggregateRoot: t.tenantRoot(),
		RecordNumber:        m.RecordNumber,
		PurchaseEventID:     m.PurchaseEventID,
		Status:              m.Status,
		CancelledAt:         m.CancelledAt,
		Items:               make([]manufacturing.RecordItem, 0, len(m.Items)),
	}
	for _, it := range m.Items {
		rec.Items = append(rec.Items, manufacturing.RecordItem{
			ID:             it.ID,
			CatalogItemID:  it.CatalogItemID,
			Name:           it.Name,
			Key:            it.Key(),
			NetWeight:      it.NetWeight,
			Quantity:       it.Quantity,
			ConsumedWeight: it.ConsumedWeight,
			ReversedAt:     it.ReversedAt,
		})
	}
	return rec
}

// FromDomain populates the persistence model from a domain ManufacturingRecord
func (m *ManufacturingRecordModel) FromDomain(rec *manufacturing.ManufacturingRecord) {
	m.FromDomainAggregateRoot(rec.BaseAggregateRoot)
	m.TenantID = rec.TenantID
	m.RecordNumber = rec.RecordNumber
	m.PurchaseEventID = rec.PurchaseEventID
	m.Status = rec.Status
	m.CancelledAt = rec.CancelledAt
	m.Items = make([]ManufacturingItemModel, 0, len(rec.Items))
	for i, it := range rec.Items {
		m.Items = append(m.Items, ManufacturingItemModel{
			ID:              it.ID,
			RecordID:        rec.ID,
			LineNo:          i + 1,
			CatalogItemID:   it.CatalogItemID,
			Name:            it.Name,
			MetalKeyColumns: keyColumns(it.Key),
			NetWeight:       it.NetWeight,
			Quantity:        it.Quantity,
			ConsumedWeight:  it.ConsumedWeight,
			ReversedAt:      it.ReversedAt,
		})
	}
}

// ManufacturingRecordModelFromDomain creates a new persistence model from a domain ManufacturingRecord
func ManufacturingRecordModelFromDomain(rec *manufacturing.ManufacturingRecord) *ManufacturingRecordModel {
	m := &ManufacturingRecordModel{}
	m.FromDomain(rec)
	return m
}

// ConsumptionLinkModel tracks how much of a purchase event's metal key has been
// consumed by manufacturing. One row per (tenant, purchase event, metal key).
type ConsumptionLinkModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_consumption_link_key,priority:1"`
	PurchaseEventID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_consumption_link_key,priority:2"`
	MetalKey        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_consumption_link_key,priority:3"`
	Consumed        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Version         int             `gorm:"not null;default:1"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConsumptionLinkModel) TableName() string {
	return "purchase_consumption_links"
}

// ToDomain converts the persistence model to a domain ConsumptionLink
func (m *ConsumptionLinkModel) ToDomain() *manufacturing.ConsumptionLink {
	return &manufacturing.ConsumptionLink{
		ID:              m.ID,
		TenantID:        m.TenantID,
		PurchaseEventID: m.PurchaseEventID,
		MetalKey:        m.MetalKey,
		Consumed:        m.Consumed,
		Version:         m.Version,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ConsumptionLinkModelFromDomain creates a new persistence model from a domain ConsumptionLink
func ConsumptionLinkModelFromDomain(l *manufacturing.ConsumptionLink) *ConsumptionLinkModel {
	return &ConsumptionLinkModel{
		ID:              l.ID,
		TenantID:        l.TenantID,
		PurchaseEventID: l.PurchaseEventID,
		MetalKey:        l.MetalKey,
		Consumed:        l.Consumed,
		Version:         l.Version,
		UpdatedAt:       l.UpdatedAt,
	}
}
