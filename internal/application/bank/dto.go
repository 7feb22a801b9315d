package bank

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/bank"
)

// OpenAccountRequest opens a bank or cash account
type OpenAccountRequest struct {
	Name           string          `json:"name" binding:"required,max=100"`
	Kind           string          `json:"kind" binding:"required,oneof=BANK CASH"`
	AccountNumber  string          `json:"account_number,omitempty" binding:"max=50"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// PostingRequest records a credit or a debit
type PostingRequest struct {
	AccountID       uuid.UUID       `json:"account_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Source          string          `json:"source,omitempty"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     uuid.UUID       `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	PartyID         *uuid.UUID      `json:"party_id,omitempty"`
	PartyName       string          `json:"party_name,omitempty"`
	Note            string          `json:"note,omitempty"`
	// TransactionDate defaults to now
	TransactionDate *time.Time `json:"transaction_date,omitempty"`
}

func (r PostingRequest) posting(defaultSource bank.SourceKind) bank.Posting {
	source := bank.SourceKind(r.Source)
	if source == "" {
		source = defaultSource
	}
	return bank.Posting{
		Source: source,
		Reference: bank.Reference{
			Type:   r.ReferenceType,
			ID:     r.ReferenceID,
			Number: r.ReferenceNumber,
		},
		PartyID:   r.PartyID,
		PartyName: r.PartyName,
		Note:      r.Note,
	}
}

// ReconcileEntryRequest marks an entry as matched with the bank statement
type ReconcileEntryRequest struct {
	ReconciledBy string `json:"reconciled_by" binding:"required"`
}

// AccountResponse is a bank account snapshot
type AccountResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	AccountNumber  string          `json:"account_number,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	EntryCount     int64           `json:"entry_count"`
	LastEntryAt    *time.Time      `json:"last_entry_at,omitempty"`
	Version        int             `json:"version"`
}

// EntryResponse is one bank ledger line
type EntryResponse struct {
	ID                      uuid.UUID       `json:"id"`
	AccountID               uuid.UUID       `json:"account_id"`
	Sequence                int64           `json:"sequence"`
	Direction               string          `json:"direction"`
	Amount                  decimal.Decimal `json:"amount"`
	BalanceBefore           decimal.Decimal `json:"balance_before"`
	BalanceAfterTransaction decimal.Decimal `json:"balance_after_transaction"`
	Source                  string          `json:"source"`
	ReferenceType           string          `json:"reference_type,omitempty"`
	ReferenceID             uuid.UUID       `json:"reference_id,omitempty"`
	ReferenceNumber         string          `json:"reference_number,omitempty"`
	PartyID                 *uuid.UUID      `json:"party_id,omitempty"`
	PartyName               string          `json:"party_name,omitempty"`
	Note                    string          `json:"note,omitempty"`
	TransactionDate         time.Time       `json:"transaction_date"`
	Reconciled              bool            `json:"reconciled"`
	ReconciledAt            *time.Time      `json:"reconciled_at,omitempty"`
	ReconciledBy            string          `json:"reconciled_by,omitempty"`
}

// VerificationResult compares the cached balance with the ledger
type VerificationResult struct {
	AccountID      uuid.UUID       `json:"account_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Credits        decimal.Decimal `json:"credits"`
	Debits         decimal.Decimal `json:"debits"`
	Expected       decimal.Decimal `json:"expected"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Consistent     bool            `json:"consistent"`
	Problem        string          `json:"problem,omitempty"`
}

// ToAccountResponse converts a domain account
func ToAccountResponse(a *bank.BankAccount) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Kind:           string(a.Kind),
		AccountNumber:  a.AccountNumber,
		OpeningBalance: a.OpeningBalance,
		CurrentBalance: a.CurrentBalance,
		EntryCount:     a.EntryCount,
		LastEntryAt:    a.LastEntryAt,
		Version:        a.Version,
	}
}

// ToEntryResponse converts a domain entry
func ToEntryResponse(e *bank.BankLedgerEntry) EntryResponse {
	return EntryResponse{
		ID:                      e.ID,
		AccountID:               e.AccountID,
		Sequence:                e.Sequence,
		Direction:               string(e.Direction),
		Amount:                  e.Amount,
		BalanceBefore:           e.BalanceBefore,
		BalanceAfterTransaction: e.BalanceAfterTransaction,
		Source:                  string(e.Source),
		ReferenceType:           e.Reference.Type,
		ReferenceID:             e.Reference.ID,
		ReferenceNumber:         e.Reference.Number,
		PartyID:                 e.PartyID,
		PartyName:               e.PartyName,
		Note:                    e.Note,
		TransactionDate:         e.TransactionDate,
		Reconciled:              e.Reconciled,
		ReconciledAt:            e.ReconciledAt,
		ReconciledBy:            e.ReconciledBy,
	}
}
