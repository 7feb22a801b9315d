package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
)

// MetalAccountModel is the persistence model for a metal account. One row per
// (tenant, pool, metal key).
type MetalAccountModel struct {
	AggregateModel
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_metal_account_key,priority:1"`
	Pool       metal.Pool      `gorm:"type:varchar(16);not null;uniqueIndex:idx_metal_account_key,priority:2"`
	MetalKey   string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_metal_account_key,priority:3"`
	MetalID    *uuid.UUID      `gorm:"type:uuid"`
	MetalType  string          `gorm:"type:varchar(50)"`
	Purity     decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	TotalGross decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalNet   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Used       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Available  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	EntryCount int64           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MetalAccountModel) TableName() string {
	return "metal_accounts"
}

// ToDomain converts the persistence model to a domain MetalAccount
func (m *MetalAccountModel) ToDomain() *metal.MetalAccount {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	return &metal.MetalAccount{
		TenantAggregateRoot: t.tenantRoot(),
		Pool:                m.Pool,
		Key:                 metal.MetalKey{MetalID: m.MetalID, MetalType: m.MetalType, Purity: m.Purity},
		TotalGross:          m.TotalGross,
		TotalNet:            m.TotalNet,
		Used:                m.Used,
		Available:           m.Available,
		EntryCount:          m.EntryCount,
	}
}

// FromDomain populates the persistence model from a domain MetalAccount
func (m *MetalAccountModel) FromDomain(a *metal.MetalAccount) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.TenantID = a.TenantID
	m.Pool = a.Pool
	m.MetalKey = a.Key.String()
	m.MetalID = a.Key.MetalID
	m.MetalType = a.Key.MetalType
	m.Purity = a.Key.Purity
	m.TotalGross = a.TotalGross
	m.TotalNet = a.TotalNet
	m.Used = a.Used
	m.Available = a.Available
	m.EntryCount = a.EntryCount
}

// MetalAccountModelFromDomain creates a new persistence model from a domain MetalAccount
func MetalAccountModelFromDomain(a *metal.MetalAccount) *MetalAccountModel {
	m := &MetalAccountModel{}
	m.FromDomain(a)
	return m
}

// MetalLedgerEntryModel is the persistence model for an append-only metal ledger entry
type MetalLedgerEntryModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID        `gorm:"type:uuid;not null;index:idx_metal_entry_reference,priority:1"`
	AccountID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_metal_entry_sequence,priority:1"`
	Sequence        int64            `gorm:"not null;uniqueIndex:idx_metal_entry_sequence,priority:2"`
	Pool            metal.Pool       `gorm:"type:varchar(16);not null;index:idx_metal_entry_reference,priority:2"`
	MetalKey        string           `gorm:"type:varchar(100);not null"`
	Direction       metal.Direction  `gorm:"type:varchar(8);not null"`
	Weight          decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	GrossWeight     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	WeightBefore    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	WeightAfter     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	AvailableBefore decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	AvailableAfter  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Source          metal.SourceKind `gorm:"type:varchar(32);not null"`
	ReferenceType   string           `gorm:"type:varchar(32);not null;index:idx_metal_entry_reference,priority:3"`
	ReferenceID     uuid.UUID        `gorm:"type:uuid;index:idx_metal_entry_reference,priority:4"`
	ReferenceNumber string           `gorm:"type:varchar(50)"`
	Counterparty    string           `gorm:"type:varchar(200)"`
	Note            string           `gorm:"type:text"`
	CreatedAt       time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MetalLedgerEntryModel) TableName() string {
	return "metal_ledger_entries"
}

// ToDomain converts the persistence model to a domain MetalLedgerEntry
func (m *MetalLedgerEntryModel) ToDomain() *metal.MetalLedgerEntry {
	return &metal.MetalLedgerEntry{
		ID:              m.ID,
		TenantID:        m.TenantID,
		AccountID:       m.AccountID,
		Pool:            m.Pool,
		MetalKey:        m.MetalKey,
		Sequence:        m.Sequence,
		Direction:       m.Direction,
		Weight:          m.Weight,
		GrossWeight:     m.GrossWeight,
		WeightBefore:    m.WeightBefore,
		WeightAfter:     m.WeightAfter,
		AvailableBefore: m.AvailableBefore,
		AvailableAfter:  m.AvailableAfter,
		Source:          m.Source,
		Reference:       metal.Reference{Type: m.ReferenceType, ID: m.ReferenceID, Number: m.ReferenceNumber},
		Counterparty:    m.Counterparty,
		Note:            m.Note,
		CreatedAt:       m.CreatedAt,
	}
}

// MetalLedgerEntryModelFromDomain creates a new persistence model from a domain MetalLedgerEntry
func MetalLedgerEntryModelFromDomain(e *metal.MetalLedgerEntry) *MetalLedgerEntryModel {
	return &MetalLedgerEntryModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		AccountID:       e.AccountID,
		Sequence:        e.Sequence,
		Pool:            e.Pool,
		MetalKey:        e.MetalKey,
		Direction:       e.Direction,
		Weight:          e.Weight,
		GrossWeight:     e.GrossWeight,
		WeightBefore:    e.WeightBefore,
		WeightAfter:     e.WeightAfter,
		AvailableBefore: e.AvailableBefore,
		AvailableAfter:  e.AvailableAfter,
		Source:          e.Source,
		ReferenceType:   e.Reference.Type,
		ReferenceID:     e.Reference.ID,
		ReferenceNumber: e.Reference.Number,
		Counterparty:    e.Counterparty,
		Note:            e.Note,
		CreatedAt:       e.CreatedAt,
	}
}
