package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/finance"
)

// ObligationModel is the persistence model for a sale invoice or purchase bill
type ObligationModel struct {
	AggregateModel
	TenantID       uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_obligation_number,priority:1;index:idx_obligation_party,priority:1"`
	Kind           finance.ObligationKind    `gorm:"type:varchar(8);not null;uniqueIndex:idx_obligation_number,priority:2;index:idx_obligation_party,priority:2"`
	Number         string                    `gorm:"type:varchar(50);not null;uniqueIndex:idx_obligation_number,priority:4"`
	PartyID        uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_obligation_number,priority:3;index:idx_obligation_party,priority:3"`
	PartyName      string                    `gorm:"type:varchar(200)"`
	SourceID       *uuid.UUID                `gorm:"type:uuid;index"`
	ObligationDate time.Time                 `gorm:"not null;index"`
	GrandTotal     decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	PaidAmount     decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	PendingAmount  decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	Status         finance.ObligationStatus  `gorm:"type:varchar(16);not null;index"`
	Allocations    finance.AllocationRecords `gorm:"type:jsonb"`
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ObligationModel) TableName() string {
	return "obligations"
}

// ToDomain converts the persistence model to a domain Obligation
func (m *ObligationModel) ToDomain() *finance.Obligation {
	t := TenantAggregateModel{AggregateModel: m.AggregateModel, TenantID: m.TenantID}
	allocs := m.Allocations
	if allocs == nil {
		allocs = finance.AllocationRecords{}
	}
	return &finance.Obligation{
		TenantAggregateRoot: t.tenantRoot(),
		Kind:                m.Kind,
		Number:              m.Number,
		PartyID:             m.PartyID,
		PartyName:           m.PartyName,
		SourceID:            m.SourceID,
		ObligationDate:      m.ObligationDate,
		GrandTotal:          m.GrandTotal,
		PaidAmount:          m.PaidAmount,
		PendingAmount:       m.PendingAmount,
		Status:              m.Status,
		Allocations:         allocs,
		PaidAt:              m.PaidAt,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Obligation
func (m *ObligationModel) FromDomain(o *finance.Obligation) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.TenantID = o.TenantID
	m.Kind = o.Kind
	m.Number = o.Number
	m.PartyID = o.PartyID
	m.PartyName = o.PartyName
	m.SourceID = o.SourceID
	m.ObligationDate = o.ObligationDate
	m.GrandTotal = o.GrandTotal
	m.PaidAmount = o.PaidAmount
	m.PendingAmount = o.PendingAmount
	m.Status = o.Status
	m.Allocations = o.Allocations
	m.PaidAt = o.PaidAt
	m.CancelledAt = o.CancelledAt
	m.CancelReason = o.CancelReason
}

// ObligationModelFromDomain creates a new persistence model from a domain Obligation
func ObligationModelFromDomain(o *finance.Obligation) *ObligationModel {
	m := &ObligationModel{}
	m.FromDomain(o)
	return m
}

// PaymentReceiptModel is the persistence model for the immutable payment snapshot.
// Only the void columns change after creation.
type PaymentReceiptModel struct {
	TenantAggregateModel
	ReceiptNumber          string                     `gorm:"type:varchar(50);not null;index"`
	ObligationKind         finance.ObligationKind     `gorm:"type:varchar(8);not null"`
	PartyID                uuid.UUID                  `gorm:"type:uuid;not null;index"`
	PartyName              string                     `gorm:"type:varchar(200)"`
	BankAccountID          uuid.UUID                  `gorm:"type:uuid;not null"`
	Mode                   finance.PaymentMode        `gorm:"type:varchar(16);not null"`
	Reference              string                     `gorm:"type:varchar(100);index"`
	Notes                  string                     `gorm:"type:text"`
	AmountPaid             decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	PreviousPendingAmount  decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	RemainingPendingAmount decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	UnallocatedAmount      decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	Allocations            finance.ReceiptAllocations `gorm:"type:jsonb"`
	BankLedgerEntryID      uuid.UUID                  `gorm:"type:uuid"`
	ReversalEntryID        *uuid.UUID                 `gorm:"type:uuid"`
	Status                 finance.ReceiptStatus      `gorm:"type:varchar(8);not null"`
	PaidAt                 time.Time                  `gorm:"not null"`
	VoidedAt               *time.Time
	VoidReason             string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentReceiptModel) TableName() string {
	return "payment_receipts"
}

// ToDomain converts the persistence model to a domain PaymentReceipt
func (m *PaymentReceiptModel) ToDomain() *finance.PaymentReceipt {
	allocs := m.Allocations
	if allocs == nil {
		allocs = finance.ReceiptAllocations{}
	}
	return &finance.PaymentReceipt{
		TenantAggregateRoot:    m.tenantRoot(),
		ReceiptNumber:          m.ReceiptNumber,
		ObligationKind:         m.ObligationKind,
		PartyID:                m.PartyID,
		PartyName:              m.PartyName,
		BankAccountID:          m.BankAccountID,
		Mode:                   m.Mode,
		Reference:              m.Reference,
		Notes:                  m.Notes,
		AmountPaid:             m.AmountPaid,
		PreviousPendingAmount:  m.PreviousPendingAmount,
		RemainingPendingAmount: m.RemainingPendingAmount,
		UnallocatedAmount:      m.UnallocatedAmount,
		Allocations:            allocs,
		BankLedgerEntryID:      m.BankLedgerEntryID,
		ReversalEntryID:        m.ReversalEntryID,
		Status:                 m.Status,
		PaidAt:                 m.PaidAt,
		VoidedAt:               m.VoidedAt,
		VoidReason:             m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain PaymentReceipt
func (m *PaymentReceiptModel) FromDomain(r *finance.PaymentReceipt) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.ReceiptNumber = r.ReceiptNumber
	m.ObligationKind = r.ObligationKind
	m.PartyID = r.PartyID
	m.PartyName = r.PartyName
	m.BankAccountID = r.BankAccountID
	m.Mode = r.Mode
	m.Reference = r.Reference
	m.Notes = r.Notes
	m.AmountPaid = r.AmountPaid
	m.PreviousPendingAmount = r.PreviousPendingAmount
	m.RemainingPendingAmount = r.RemainingPendingAmount
	m.UnallocatedAmount = r.UnallocatedAmount
	m.Allocations = r.Allocations
	m.BankLedgerEntryID = r.BankLedgerEntryID
	m.ReversalEntryID = r.ReversalEntryID
	m.Status = r.Status
	m.PaidAt = r.PaidAt
	m.VoidedAt = r.VoidedAt
	m.VoidReason = r.VoidReason
}

// PaymentReceiptModelFromDomain creates a new persistence model from a domain PaymentReceipt
func PaymentReceiptModelFromDomain(r *finance.PaymentReceipt) *PaymentReceiptModel {
	m := &PaymentReceiptModel{}
	m.FromDomain(r)
	return m
}
