package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/purchase"
)

// MetalKeyColumns stores a metal key both in canonical string form, used for
// lookups, and in its parts.
type MetalKeyColumns struct {
	MetalKey  string          `gorm:"type:varchar(100);not null"`
	MetalID   *uuid.UUID      `gorm:"type:uuid"`
	MetalType string          `gorm:"type:varchar(50)"`
	Purity    decimal.Decimal `gorm:"type:decimal(10,4);not null"`
}

func keyColumns(k metal.MetalKey) MetalKeyColumns {
	return MetalKeyColumns{MetalKey: k.String(), MetalID: k.MetalID, MetalType: k.MetalType, Purity: k.Purity}
}

// Key rebuilds the domain metal key
func (c MetalKeyColumns) Key() metal.MetalKey {
	return metal.MetalKey{MetalID: c.MetalID, MetalType: c.MetalType, Purity: c.Purity}
}

// PurchaseEventModel is the persistence model for a posted purchase invoice
type PurchaseEventModel struct {
	AggregateModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_event_number,priority:1"`
	SupplierID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_event_number,priority:2"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_purchase_event_number,priority:3"`
	SupplierName  string          `gorm:"type:varchar(200)"`
	EventDate     time.Time       `gorm:"not null;index"`
	GrandTotal    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status        purchase.Status `gorm:"type:varchar(24);not null"`
	CancelledAt   *time.Time
	Lines         []PurchaseLineModel     `gorm:"foreignKey:EventID;references:ID"`
	Exchanges     []PurchaseExchangeModel `gorm:"foreignKey:EventID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseEventModel) TableName() string {
	return "purchase_events"
}

// PurchaseLineModel is a metal line of a purchase event
type PurchaseLineModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID uuid.UUID `gorm:"type:uuid;not null;index"`
	LineNo  int       `gorm:"not null"`
	MetalKeyColumns
	GrossWeight decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NetWeight   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ReversedAt  *time.Time
}

// TableName returns the table name for GORM
func (PurchaseLineModel) TableName() string {
	return "purchase_event_lines"
}

// PurchaseExchangeModel is an exchange-metal settlement of a purchase event
type PurchaseExchangeModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID uuid.UUID `gorm:"type:uuid;not null;index"`
	LineNo  int       `gorm:"not null"`
	MetalKeyColumns
	Weight     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Value      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	RestoredAt *time.Time
}

// TableName returns the table name for GORM
func (PurchaseExchangeModel) TableName() string {
	return "purchase_event_exchanges"
}

// ToDomain converts the persistence model to a domain PurchaseEvent
func (m *PurchaseEventModel) ToDomain() *purchase.PurchaseEvent {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	ev := &purchase.PurchaseEvent{
		TenantAggregateRoot: t.tenantRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		SupplierID:          m.SupplierID,
		SupplierName:        m.SupplierName,
		EventDate:           m.EventDate,
		GrandTotal:          m.GrandTotal,
		Status:              m.Status,
		CancelledAt:         m.CancelledAt,
		Lines:               make([]purchase.MetalLine, 0, len(m.Lines)),
		Exchanges:           make([]purchase.ExchangeSettlement, 0, len(m.Exchanges)),
	}
	for _, l := range m.Lines {
		ev.Lines = append(ev.Lines, purchase.MetalLine{
			ID:          l.ID,
			Key:         l.Key(),
			GrossWeight: l.GrossWeight,
			NetWeight:   l.NetWeight,
			Rate:        l.Rate,
			Amount:      l.Amount,
			ReversedAt:  l.ReversedAt,
		})
	}
	for _, x := range m.Exchanges {
		ev.Exchanges = append(ev.Exchanges, purchase.ExchangeSettlement{
			ID:         x.ID,
			Key:        x.Key(),
			Weight:     x.Weight,
			Value:      x.Value,
			RestoredAt: x.RestoredAt,
		})
	}
	return ev
}

// FromDomain populates the persistence model from a domain PurchaseEvent
func (m *PurchaseEventModel) FromDomain(ev *purchase.PurchaseEvent) {
	m.FromDomainAggregateRoot(ev.BaseAggregateRoot)
	m.TenantID = ev.TenantID
	m.SupplierID = ev.SupplierID
	m.InvoiceNumber = ev.InvoiceNumber
	m.SupplierName = ev.SupplierName
	m.EventDate = ev.EventDate
	m.GrandTotal = ev.GrandTotal
	m.Status = ev.Status
	m.CancelledAt = ev.CancelledAt
	m.Lines = make([]PurchaseLineModel, 0, len(ev.Lines))
	for i, l := range ev.Lines {
		m.Lines = append(m.Lines, PurchaseLineModel{
			ID:              l.ID,
			EventID:         ev.ID,
			LineNo:          i + 1,
			MetalKeyColumns: keyColumns(l.Key),
			GrossWeight:     l.GrossWeight,
			NetWeight:       l.NetWeight,
			Rate:            l.Rate,
			Amount:          l.Amount,
			ReversedAt:      l.ReversedAt,
		})
	}
	m.Exchanges = make([]PurchaseExchangeModel, 0, len(ev.Exchanges))
	for i, x := range ev.Exchanges {
		m.Exchanges = append(m.Exchanges, PurchaseExchangeModel{
			ID:              x.ID,
			EventID:         ev.ID,
			LineNo:          i + 1,
			MetalKeyColumns: keyColumns(x.Key),
			Weight:          x.Weight,
			Value:           x.Value,
			RestoredAt:      x.RestoredAt,
		})
	}
}

// PurchaseEventModelFromDomain creates a new persistence model from a domain PurchaseEvent
func PurchaseEventModelFromDomain(ev *purchase.PurchaseEvent) *PurchaseEventModel {
	m := &PurchaseEventModel{}
	m.FromDomain(ev)
	return m
}
