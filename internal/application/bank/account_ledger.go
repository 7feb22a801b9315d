// Package bank runs the money ledgers of bank and cash accounts.
package bank

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// AccountLedger records credits and debits. Each entry and the account's
// cached balance are written in the same transaction.
type AccountLedger struct {
	scope  scope.TransactionScope
	retry  scope.RetryPolicy
	clock  shared.Clock
	logger *zap.Logger
}

// Option configures an AccountLedger
type Option func(*AccountLedger)

// WithRetryPolicy overrides the conflict retry policy
func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(l *AccountLedger) { l.retry = p }
}

// WithClock sets the clock used when a request carries no date
func WithClock(c shared.Clock) Option {
	return func(l *AccountLedger) { l.clock = c }
}

// NewAccountLedger creates an AccountLedger
func NewAccountLedger(ts scope.TransactionScope, logger *zap.Logger, opts ...Option) *AccountLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &AccountLedger{
		scope:  ts,
		retry:  scope.DefaultRetryPolicy(),
		clock:  shared.SystemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenAccount creates an account with its opening balance
func (l *AccountLedger) OpenAccount(ctx context.Context, tenantID uuid.UUID, req OpenAccountRequest) (*AccountResponse, error) {
	account, err := bank.NewBankAccount(tenantID, req.Name, bank.AccountKind(req.Kind), req.AccountNumber, req.OpeningBalance)
	if err != nil {
		return nil, err
	}
	if err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		return repos.BankAccounts().Create(ctx, account)
	}); err != nil {
		return nil, err
	}
	l.logger.Info("bank account opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("kind", string(account.Kind)))
	resp := ToAccountResponse(account)
	return &resp, nil
}

// RecordCredit adds money to an account
func (l *AccountLedger) RecordCredit(ctx context.Context, tenantID uuid.UUID, req PostingRequest) (*EntryResponse, error) {
	return l.record(ctx, tenantID, bank.DirectionCredit, req)
}

// RecordDebit removes money from an account. The balance may go negative;
// callers that must not overdraw check the balance first.
func (l *AccountLedger) RecordDebit(ctx context.Context, tenantID uuid.UUID, req PostingRequest) (*EntryResponse, error) {
	return l.record(ctx, tenantID, bank.DirectionDebit, req)
}

func (l *AccountLedger) record(ctx context.Context, tenantID uuid.UUID, dir bank.Direction, req PostingRequest) (*EntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account_ledger", "record_"+string(dir))
	defer span.End()
	telemetry.SetAttributes(span, "account_id", req.AccountID.String(), "amount", req.Amount.String())

	at := l.clock.Now()
	if req.TransactionDate != nil {
		at = req.TransactionDate.UTC()
	}

	var entry *bank.BankLedgerEntry
	err := scope.ExecuteWithRetry(ctx, l.scope, l.retry, func(repos scope.Repositories) error {
		var err error
		if dir == bank.DirectionCredit {
			entry, _, err = l.RecordCreditTx(ctx, repos, tenantID, req.AccountID, req.Amount, req.posting(bank.SourceManual), at)
		} else {
			entry, _, err = l.RecordDebitTx(ctx, repos, tenantID, req.AccountID, req.Amount, req.posting(bank.SourceManual), at)
		}
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToEntryResponse(entry)
	return &resp, nil
}

// RecordCreditTx credits inside a caller's unit of work
func (l *AccountLedger) RecordCreditTx(ctx context.Context, repos scope.Repositories, tenantID, accountID uuid.UUID, amount decimal.Decimal, p bank.Posting, at time.Time) (*bank.BankLedgerEntry, *bank.BankAccount, error) {
	account, err := repos.BankAccounts().FindByIDForUpdate(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := account.Credit(amount, l.stamp(p), at)
	if err != nil {
		return nil, nil, err
	}
	return entry, account, l.persist(ctx, repos, account, entry)
}

// RecordDebitTx debits inside a caller's unit of work
func (l *AccountLedger) RecordDebitTx(ctx context.Context, repos scope.Repositories, tenantID, accountID uuid.UUID, amount decimal.Decimal, p bank.Posting, at time.Time) (*bank.BankLedgerEntry, *bank.BankAccount, error) {
	account, err := repos.BankAccounts().FindByIDForUpdate(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := account.Debit(amount, l.stamp(p), at)
	if err != nil {
		return nil, nil, err
	}
	return entry, account, l.persist(ctx, repos, account, entry)
}

// DebitCoveredTx debits only when the current balance covers the amount.
// Outgoing payments use it; a shortfall is INSUFFICIENT_BALANCE and writes nothing.
func (l *AccountLedger) DebitCoveredTx(ctx context.Context, repos scope.Repositories, tenantID, accountID uuid.UUID, amount decimal.Decimal, p bank.Posting, at time.Time) (*bank.BankLedgerEntry, *bank.BankAccount, error) {
	account, err := repos.BankAccounts().FindByIDForUpdate(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, err
	}
	if !account.CanCover(amount) {
		return nil, nil, shared.NewDomainError(shared.CodeInsufficientBalance,
			"account "+account.Name+" balance "+account.CurrentBalance.StringFixed(2)+" cannot cover "+amount.StringFixed(2))
	}
	entry, err := account.Debit(amount, l.stamp(p), at)
	if err != nil {
		return nil, nil, err
	}
	return entry, account, l.persist(ctx, repos, account, entry)
}

// stamp records when the entry was written, from the ledger's clock
func (l *AccountLedger) stamp(p bank.Posting) bank.Posting {
	if p.RecordedAt.IsZero() {
		p.RecordedAt = l.clock.Now()
	}
	return p
}

func (l *AccountLedger) persist(ctx context.Context, repos scope.Repositories, account *bank.BankAccount, entry *bank.BankLedgerEntry) error {
	if err := repos.BankAccounts().SaveWithLock(ctx, account); err != nil {
		return err
	}
	if err := repos.BankEntries().Append(ctx, entry); err != nil {
		return err
	}
	return scope.PublishEvents(ctx, repos, account)
}

// BalanceAtDate returns the balance snapshot of the newest entry dated at or
// before at, or the opening balance when there is none
func (l *AccountLedger) BalanceAtDate(ctx context.Context, tenantID, accountID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		account, err := repos.BankAccounts().FindByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		entry, err := repos.BankEntries().FindLatestAtOrBefore(ctx, tenantID, accountID, at)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			balance = account.OpeningBalance
		case err != nil:
			return err
		default:
			balance = entry.BalanceAfterTransaction
		}
		return nil
	})
	return balance, err
}

// Reconcile marks an entry as matched. Amounts are never touched and an
// entry can be reconciled only once.
func (l *AccountLedger) Reconcile(ctx context.Context, tenantID, entryID uuid.UUID, req ReconcileEntryRequest) (*EntryResponse, error) {
	var entry *bank.BankLedgerEntry
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		var err error
		if entry, err = repos.BankEntries().FindByID(ctx, tenantID, entryID); err != nil {
			return err
		}
		if err := entry.MarkReconciled(req.ReconciledBy, l.clock.Now()); err != nil {
			return err
		}
		return repos.BankEntries().UpdateReconciliation(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	resp := ToEntryResponse(entry)
	return &resp, nil
}

// GetAccount returns one account
func (l *AccountLedger) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	var resp AccountResponse
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		account, err := repos.BankAccounts().FindByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		resp = ToAccountResponse(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAccounts returns every account of the tenant
func (l *AccountLedger) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]AccountResponse, error) {
	var out []AccountResponse
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		accounts, err := repos.BankAccounts().List(ctx, tenantID)
		if err != nil {
			return err
		}
		out = make([]AccountResponse, len(accounts))
		for i := range accounts {
			out[i] = ToAccountResponse(&accounts[i])
		}
		return nil
	})
	return out, err
}

// ListEntries pages through an account's ledger, newest first
func (l *AccountLedger) ListEntries(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]EntryResponse, int64, error) {
	var (
		out   []EntryResponse
		total int64
	)
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		entries, n, err := repos.BankEntries().ListByAccount(ctx, tenantID, accountID, page)
		if err != nil {
			return err
		}
		out = make([]EntryResponse, len(entries))
		for i := range entries {
			out[i] = ToEntryResponse(&entries[i])
		}
		total = n
		return nil
	})
	return out, total, err
}

// Verify recomputes opening + Σcredits - Σdebits and compares it with the
// cached balance. A mismatch is reported in the result, not as an error.
func (l *AccountLedger) Verify(ctx context.Context, tenantID, accountID uuid.UUID) (*VerificationResult, error) {
	var result *VerificationResult
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		var err error
		result, err = VerifyTx(ctx, repos, tenantID, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !result.Consistent {
		l.logger.Error("bank account balance does not match its ledger",
			zap.String("account_id", accountID.String()),
			zap.String("expected", result.Expected.String()),
			zap.String("current", result.CurrentBalance.String()))
	}
	return result, nil
}

// VerifyTx is Verify inside a caller's unit of work
func VerifyTx(ctx context.Context, repos scope.Repositories, tenantID, accountID uuid.UUID) (*VerificationResult, error) {
	account, err := repos.BankAccounts().FindByID(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	credits, debits, err := repos.BankEntries().Totals(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	result := &VerificationResult{
		AccountID:      account.ID,
		OpeningBalance: account.OpeningBalance,
		Credits:        credits,
		Debits:         debits,
		Expected:       account.OpeningBalance.Add(credits).Sub(debits),
		CurrentBalance: account.CurrentBalance,
		Consistent:     true,
	}
	if err := account.Verify(credits, debits); err != nil {
		result.Consistent = false
		result.Problem = err.Error()
	}
	return result, nil
}
