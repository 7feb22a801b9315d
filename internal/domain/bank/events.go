package bank

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

const (
	AggregateTypeBankAccount   = "BankAccount"
	EventTypeBankEntryRecorded = "BankEntryRecorded"
)

// BankEntryRecordedEvent is raised for every credit or debit
type BankEntryRecordedEvent struct {
	shared.BaseDomainEvent
	EntryID      uuid.UUID       `json:"entry_id"`
	Direction    Direction       `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Source       SourceKind      `json:"source"`
}

func NewBankEntryRecordedEvent(a *BankAccount, e *BankLedgerEntry) *BankEntryRecordedEvent {
	return &BankEntryRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBankEntryRecorded, AggregateTypeBankAccount, a.ID, a.TenantID),
		EntryID:         e.ID,
		Direction:       e.Direction,
		Amount:          e.Amount,
		BalanceAfter:    e.BalanceAfterTransaction,
		Source:          e.Source,
	}
}
