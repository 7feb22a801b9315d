package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/sales"
)

// SaleBillModel is the persistence model for a posted sale bill
type SaleBillModel struct {
	AggregateModel
	TenantID      uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_sale_bill_number,priority:1"`
	BillNumber    string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_sale_bill_number,priority:2"`
	CustomerID    uuid.UUID               `gorm:"type:uuid;not null;index"`
	CustomerName  string                  `gorm:"type:varchar(200)"`
	BillDate      time.Time               `gorm:"not null;index"`
	ItemsTotal    decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	ExchangeTotal decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	GrandTotal    decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status        sales.Status            `gorm:"type:varchar(24);not null"`
	Items         []SaleBillItemModel     `gorm:"foreignKey:BillID;references:ID"`
	Exchanges     []SaleBillExchangeModel `gorm:"foreignKey:BillID;references:ID"`
	CancelledAt   *time.Time
}

// TableName returns the table name for GORM
func (SaleBillModel) TableName() string {
	return "sale_bills"
}

// SaleBillItemModel is a catalog item sold on a bill
type SaleBillItemModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BillID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo        int             `gorm:"not null"`
	CatalogItemID uuid.UUID       `gorm:"type:uuid;not null"`
	Name          string          `gorm:"type:varchar(200)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SaleBillItemModel) TableName() string {
	return "sale_bill_items"
}

// SaleBillExchangeModel is old metal taken from the customer on a bill
type SaleBillExchangeModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	BillID uuid.UUID `gorm:"type:uuid;not null;index"`
	LineNo int       `gorm:"not null"`
	MetalKeyColumns
	GrossWeight decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NetWeight   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Value       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ReversedAt  *time.Time
}

// TableName returns the table name for GORM
func (SaleBillExchangeModel) TableName() string {
	return "sale_bill_exchanges"
}

// ToDomain converts the persistence model to a domain SaleBill
func (m *SaleBillModel) ToDomain() *sales.SaleBill {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	b := &sales.SaleBill{
		TenantAggregateRoot: t.tenantRoot(),
		BillNumber:          m.BillNumber,
		CustomerID:          m.CustomerID,
		CustomerName:        m.CustomerName,
		BillDate:            m.BillDate,
		ItemsTotal:          m.ItemsTotal,
		ExchangeTotal:       m.ExchangeTotal,
		GrandTotal:          m.GrandTotal,
		Status:              m.Status,
		CancelledAt:         m.CancelledAt,
		Items:               make([]sales.Item, 0, len(m.Items)),
		Exchanges:           make([]sales.ExchangeLine, 0, len(m.Exchanges)),
	}
	for _, it := range m.Items {
		b.Items = append(b.Items, sales.Item{
			ID:            it.ID,
			CatalogItemID: it.CatalogItemID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Amount:        it.Amount,
		})
	}
	for _, x := range m.Exchanges {
		b.Exchanges = append(b.Exchanges, sales.ExchangeLine{
			ID:          x.ID,
			Key:         x.Key(),
			GrossWeight: x.GrossWeight,
			NetWeight:   x.NetWeight,
			Value:       x.Value,
			ReversedAt:  x.ReversedAt,
		})
	}
	return b
}

// FromDomain populates the persistence model from a domain SaleBill
func (m *SaleBillModel) FromDomain(b *sales.SaleBill) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.TenantID = b.TenantID
	m.BillNumber = b.BillNumber
	m.CustomerID = b.CustomerID
	m.CustomerName = b.CustomerName
	m.BillDate = b.BillDate
	m.ItemsTotal = b.ItemsTotal
	m.ExchangeTotal = b.ExchangeTotal
	m.GrandTotal = b.GrandTotal
	m.Status = b.Status
	m.CancelledAt = b.CancelledAt
	m.Items = make([]SaleBillItemModel, 0, len(b.Items))
	for i, it := range b.Items {
		m.Items = append(m.Items, SaleBillItemModel{
			ID:            it.ID,
			BillID:        b.ID,
			LineNo:        i + 1,
			CatalogItemID: it.CatalogItemID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Amount:        it.Amount,
		})
	}
	m.Exchanges = make([]SaleBillExchangeModel, 0, len(b.Exchanges))
	for i, x := range b.Exchanges {
		m.Exchanges = append(m.Exchanges, SaleBillExchangeModel{
			ID:              x.ID,
			BillID:          b.ID,
			LineNo:          i + 1,
			MetalKeyColumns: keyColumns(x.Key),
			GrossWeight:     x.GrossWeight,
			NetWeight:       x.NetWeight,
			Value:           x.Value,
			ReversedAt:      x.ReversedAt,
		})
	}
}

// SaleBillModelFromDomain creates a new persistence model from a domain SaleBill
func SaleBillModelFromDomain(b *sales.SaleBill) *SaleBillModel {
	m := &SaleBillModel{}
	m.FromDomain(b)
	return m
}
