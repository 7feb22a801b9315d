package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/bank"
)

// BankAccountModel is the persistence model for a bank or cash account
type BankAccountModel struct {
	TenantAggregateModel
	Name           string           `gorm:"type:varchar(100);not null"`
	Kind           bank.AccountKind `gorm:"type:varchar(8);not null"`
	AccountNumber  string           `gorm:"type:varchar(50)"`
	OpeningBalance decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	CurrentBalance decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	EntryCount     int64            `gorm:"not null"`
	LastEntryAt    *time.Time
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the persistence model to a domain BankAccount
func (m *BankAccountModel) ToDomain() *bank.BankAccount {
	return &bank.BankAccount{
		TenantAggregateRoot: m.tenantRoot(),
		Name:                m.Name,
		Kind:                m.Kind,
		AccountNumber:       m.AccountNumber,
		OpeningBalance:      m.OpeningBalance,
		CurrentBalance:      m.CurrentBalance,
		EntryCount:          m.EntryCount,
		LastEntryAt:         m.LastEntryAt,
	}
}

// FromDomain populates the persistence model from a domain BankAccount
func (m *BankAccountModel) FromDomain(a *bank.BankAccount) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Name = a.Name
	m.Kind = a.Kind
	m.AccountNumber = a.AccountNumber
	m.OpeningBalance = a.OpeningBalance
	m.CurrentBalance = a.CurrentBalance
	m.EntryCount = a.EntryCount
	m.LastEntryAt = a.LastEntryAt
}

// BankAccountModelFromDomain creates a new persistence model from a domain BankAccount
func BankAccountModelFromDomain(a *bank.BankAccount) *BankAccountModel {
	m := &BankAccountModel{}
	m.FromDomain(a)
	return m
}

// BankLedgerEntryModel is the persistence model for a bank ledger entry.
// Only the reconciliation columns are ever updated.
type BankLedgerEntryModel struct {
	ID                      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID               uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_bank_entry_sequence,priority:1;index:idx_bank_entry_date,priority:1"`
	Sequence                int64           `gorm:"not null;uniqueIndex:idx_bank_entry_sequence,priority:2"`
	Direction               bank.Direction  `gorm:"type:varchar(8);not null"`
	Amount                  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceBefore           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceAfterTransaction decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Source                  bank.SourceKind `gorm:"type:varchar(32);not null"`
	ReferenceType           string          `gorm:"type:varchar(32)"`
	ReferenceID             uuid.UUID       `gorm:"type:uuid;index"`
	ReferenceNumber         string          `gorm:"type:varchar(50)"`
	PartyID                 *uuid.UUID      `gorm:"type:uuid"`
	PartyName               string          `gorm:"type:varchar(200)"`
	Note                    string          `gorm:"type:text"`
	TransactionDate         time.Time       `gorm:"not null;index:idx_bank_entry_date,priority:2"`
	Reconciled              bool            `gorm:"not null;default:false"`
	ReconciledAt            *time.Time
	ReconciledBy            string    `gorm:"type:varchar(100)"`
	CreatedAt               time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankLedgerEntryModel) TableName() string {
	return "bank_ledger_entries"
}

// ToDomain converts the persistence model to a domain BankLedgerEntry
func (m *BankLedgerEntryModel) ToDomain() *bank.BankLedgerEntry {
	return &bank.BankLedgerEntry{
		ID:                      m.ID,
		TenantID:                m.TenantID,
		AccountID:               m.AccountID,
		Sequence:                m.Sequence,
		Direction:               m.Direction,
		Amount:                  m.Amount,
		BalanceBefore:           m.BalanceBefore,
		BalanceAfterTransaction: m.BalanceAfterTransaction,
		Source:                  m.Source,
		Reference:               bank.Reference{Type: m.ReferenceType, ID: m.ReferenceID, Number: m.ReferenceNumber},
		PartyID:                 m.PartyID,
		PartyName:               m.PartyName,
		Note:                    m.Note,
		TransactionDate:         m.TransactionDate,
		Reconciled:              m.Reconciled,
		ReconciledAt:            m.ReconciledAt,
		ReconciledBy:            m.ReconciledBy,
		CreatedAt:               m.CreatedAt,
	}
}

// BankLedgerEntryModelFromDomain creates a new persistence model from a domain BankLedgerEntry
func BankLedgerEntryModelFromDomain(e *bank.BankLedgerEntry) *BankLedgerEntryModel {
	return &BankLedgerEntryModel{
		ID:                      e.ID,
		TenantID:                e.TenantID,
		AccountID:               e.AccountID,
		Sequence:                e.Sequence,
		Direction:               e.Direction,
		Amount:                  e.Amount,
		BalanceBefore:           e.BalanceBefore,
		BalanceAfterTransaction: e.BalanceAfterTransaction,
		Source:                  e.Source,
		ReferenceType:           e.Reference.Type,
		ReferenceID:             e.Reference.ID,
		ReferenceNumber:         e.Reference.Number,
		PartyID:                 e.PartyID,
		PartyName:               e.PartyName,
		Note:                    e.Note,
		TransactionDate:         e.TransactionDate.UTC(),
		Reconciled:              e.Reconciled,
		ReconciledAt:            e.ReconciledAt,
		ReconciledBy:            e.ReconciledBy,
		CreatedAt:               e.CreatedAt,
	}
}
