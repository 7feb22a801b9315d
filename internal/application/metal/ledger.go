// Package metal runs the weight ledgers of the shop. The same Ledger type
// serves the shop's own stock and the metal taken in customer exchanges;
// each instance is bound to one pool.
package metal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// Ledger mutates and queries the metal accounts of one pool
type Ledger struct {
	scope  scope.TransactionScope
	pool   metal.Pool
	retry  scope.RetryPolicy
	clock  shared.Clock
	logger *zap.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithRetryPolicy overrides the conflict retry policy of standalone operations
func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(l *Ledger) { l.retry = p }
}

// WithClock sets the clock used to stamp entries
func WithClock(c shared.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// NewMetalStockLedger creates the ledger of the shop's own metal
func NewMetalStockLedger(ts scope.TransactionScope, logger *zap.Logger, opts ...Option) *Ledger {
	return newLedger(ts, metal.PoolStock, logger, opts)
}

// NewExchangeMetalLedger creates the ledger of metal received in exchanges
func NewExchangeMetalLedger(ts scope.TransactionScope, logger *zap.Logger, opts ...Option) *Ledger {
	return newLedger(ts, metal.PoolExchange, logger, opts)
}

func newLedger(ts scope.TransactionScope, pool metal.Pool, logger *zap.Logger, opts []Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		scope:  ts,
		pool:   pool,
		retry:  scope.DefaultRetryPolicy(),
		clock:  shared.SystemClock{},
		logger: logger.With(zap.String("pool", string(pool))),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pool returns the pool this ledger writes to
func (l *Ledger) Pool() metal.Pool {
	return l.pool
}

// Acquire adds gross/net weight to the key's account, creating it on first use
func (l *Ledger) Acquire(ctx context.Context, tenantID uuid.UUID, req AcquireRequest) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "metal_ledger", "acquire")
	defer span.End()

	key, err := req.Key()
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, "pool", string(l.pool), "metal_key", key.String(), "net_weight", req.NetWeight.String())

	var account *metal.MetalAccount
	err = scope.ExecuteWithRetry(ctx, l.scope, l.retry, func(repos scope.Repositories) error {
		account, err = l.AcquireTx(ctx, repos, tenantID, key, req.GrossWeight, req.NetWeight, req.toMovement(l.clock.Now()))
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// Consume moves weight from available to used. It fails with
// INSUFFICIENT_STOCK and changes nothing when the account cannot cover it.
func (l *Ledger) Consume(ctx context.Context, tenantID uuid.UUID, req WeightRequest) (*AccountResponse, error) {
	return l.standalone(ctx, tenantID, "consume", req.KeyInput, func(repos scope.Repositories, key metal.MetalKey) (*metal.MetalAccount, error) {
		return l.ConsumeTx(ctx, repos, tenantID, key, req.Weight, req.toMovement(l.clock.Now()))
	})
}

// Restore returns consumed weight to available
func (l *Ledger) Restore(ctx context.Context, tenantID uuid.UUID, req WeightRequest) (*AccountResponse, error) {
	return l.standalone(ctx, tenantID, "restore", req.KeyInput, func(repos scope.Repositories, key metal.MetalKey) (*metal.MetalAccount, error) {
		return l.RestoreTx(ctx, repos, tenantID, key, req.Weight, req.toMovement(l.clock.Now()))
	})
}

// ReverseAcquisition takes an earlier acquisition back out of the pool
func (l *Ledger) ReverseAcquisition(ctx context.Context, tenantID uuid.UUID, req WeightRequest) (*AccountResponse, error) {
	gross := req.GrossWeight
	if gross.IsZero() {
		gross = req.Weight
	}
	return l.standalone(ctx, tenantID, "reverse_acquisition", req.KeyInput, func(repos scope.Repositories, key metal.MetalKey) (*metal.MetalAccount, error) {
		return l.ReverseAcquisitionTx(ctx, repos, tenantID, key, gross, req.Weight, req.toMovement(l.clock.Now()))
	})
}

// Reconcile resets the account to a physically counted total net weight
func (l *Ledger) Reconcile(ctx context.Context, tenantID uuid.UUID, req ReconcileRequest) (*AccountResponse, error) {
	return l.standalone(ctx, tenantID, "reconcile", req.KeyInput, func(repos scope.Repositories, key metal.MetalKey) (*metal.MetalAccount, error) {
		return l.ReconcileTx(ctx, repos, tenantID, key, req.CountedWeight, req.Reason)
	})
}

func (l *Ledger) standalone(
	ctx context.Context,
	tenantID uuid.UUID,
	method string,
	keyIn KeyInput,
	fn func(repos scope.Repositories, key metal.MetalKey) (*metal.MetalAccount, error),
) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "metal_ledger", method)
	defer span.End()

	key, err := keyIn.Key()
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, "pool", string(l.pool), "metal_key", key.String())

	var account *metal.MetalAccount
	err = scope.ExecuteWithRetry(ctx, l.scope, l.retry, func(repos scope.Repositories) error {
		account, err = fn(repos, key)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// AcquireTx is Acquire inside a caller's unit of work
func (l *Ledger) AcquireTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, gross, net decimal.Decimal, mv metal.Movement) (*metal.MetalAccount, error) {
	// validate before touching the table so a bad request creates no account
	if !gross.IsPositive() || !net.IsPositive() || net.GreaterThan(gross) {
		return nil, shared.NewValidationError("invalid weights gross=%s net=%s", gross, net)
	}
	account, err := repos.MetalAccounts().GetOrCreateForUpdate(ctx, tenantID, l.pool, key)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repos, account, func() (*metal.MetalLedgerEntry, error) {
		return account.Acquire(gross, net, mv)
	})
}

// ConsumeTx is Consume inside a caller's unit of work
func (l *Ledger) ConsumeTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, weight decimal.Decimal, mv metal.Movement) (*metal.MetalAccount, error) {
	account, err := l.lockExisting(ctx, repos, tenantID, key, weight)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repos, account, func() (*metal.MetalLedgerEntry, error) {
		return account.Consume(weight, mv)
	})
}

// RestoreTx is Restore inside a caller's unit of work. The account must exist.
func (l *Ledger) RestoreTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, weight decimal.Decimal, mv metal.Movement) (*metal.MetalAccount, error) {
	account, err := repos.MetalAccounts().FindByKeyForUpdate(ctx, tenantID, l.pool, key)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repos, account, func() (*metal.MetalLedgerEntry, error) {
		return account.Restore(weight, mv)
	})
}

// ReverseAcquisitionTx is ReverseAcquisition inside a caller's unit of work
func (l *Ledger) ReverseAcquisitionTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, gross, net decimal.Decimal, mv metal.Movement) (*metal.MetalAccount, error) {
	account, err := l.lockExisting(ctx, repos, tenantID, key, net)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repos, account, func() (*metal.MetalLedgerEntry, error) {
		return account.ReverseAcquisition(gross, net, mv)
	})
}

// ReconcileTx is Reconcile inside a caller's unit of work. A count equal
// to the current total writes nothing.
func (l *Ledger) ReconcileTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, counted decimal.Decimal, reason string) (*metal.MetalAccount, error) {
	if counted.IsNegative() {
		return nil, shared.NewValidationError("counted weight cannot be negative")
	}
	account, err := repos.MetalAccounts().GetOrCreateForUpdate(ctx, tenantID, l.pool, key)
	if err != nil {
		return nil, err
	}
	entry, err := account.Reconcile(counted, reason)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return account, nil
	}
	return account, l.persist(ctx, repos, account, entry)
}

// lockExisting loads an account for a withdrawal; a missing account has
// nothing available
func (l *Ledger) lockExisting(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, key metal.MetalKey, requested decimal.Decimal) (*metal.MetalAccount, error) {
	if !requested.IsPositive() {
		return nil, shared.NewValidationError("weight must be positive")
	}
	account, err := repos.MetalAccounts().FindByKeyForUpdate(ctx, tenantID, l.pool, key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewInsufficientStockError(string(l.pool)+" "+key.String(), decimal.Zero, requested)
	}
	return account, err
}

func (l *Ledger) apply(ctx context.Context, repos scope.Repositories, account *metal.MetalAccount, mutate func() (*metal.MetalLedgerEntry, error)) (*metal.MetalAccount, error) {
	entry, err := mutate()
	if err != nil {
		return nil, err
	}
	if err := l.persist(ctx, repos, account, entry); err != nil {
		return nil, err
	}
	return account, nil
}

func (l *Ledger) persist(ctx context.Context, repos scope.Repositories, account *metal.MetalAccount, entry *metal.MetalLedgerEntry) error {
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	if err := repos.MetalAccounts().SaveWithLock(ctx, account); err != nil {
		return err
	}
	if err := repos.MetalEntries().Append(ctx, entry); err != nil {
		return err
	}
	l.logger.Debug("metal movement recorded",
		zap.String("metal_key", entry.MetalKey),
		zap.String("direction", string(entry.Direction)),
		zap.String("weight", entry.Weight.String()),
		zap.String("source", string(entry.Source)),
		zap.String("reference", entry.Reference.Type+":"+entry.Reference.ID.String()))
	return scope.PublishEvents(ctx, repos, account)
}

// ExistsByReference reports whether this pool has any entry for the document
func (l *Ledger) ExistsByReference(ctx context.Context, tenantID uuid.UUID, refType string, refID uuid.UUID) (bool, error) {
	var exists bool
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		var err error
		exists, err = repos.MetalEntries().ExistsByReference(ctx, tenantID, l.pool, refType, refID)
		return err
	})
	return exists, err
}

// GetAccount returns one account of this pool
func (l *Ledger) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	var resp AccountResponse
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		account, err := repos.MetalAccounts().FindByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if account.Pool != l.pool {
			return shared.ErrNotFound
		}
		resp = ToAccountResponse(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAccounts pages through the accounts of this pool
func (l *Ledger) ListAccounts(ctx context.Context, tenantID uuid.UUID, page shared.Page) ([]AccountResponse, int64, error) {
	var (
		out   []AccountResponse
		total int64
	)
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		accounts, n, err := repos.MetalAccounts().List(ctx, tenantID, l.pool, page)
		if err != nil {
			return err
		}
		out, total = ToAccountResponses(accounts), n
		return nil
	})
	return out, total, err
}

// ListEntries pages through an account's ledger, newest first
func (l *Ledger) ListEntries(ctx context.Context, tenantID, accountID uuid.UUID, page shared.Page) ([]EntryResponse, int64, error) {
	var (
		out   []EntryResponse
		total int64
	)
	err := l.scope.Execute(ctx, func(repos scope.Repositories) error {
		entries, n, err := repos.MetalEntries().ListByAccount(ctx, tenantID, accountID, page)
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

// Available returns the unconsumed weight of a key, zero for unknown keys
func (l *Ledger) Available(ctx context.Context, tenantID uuid.UUID, keyIn KeyInput) (decimal.Decimal, error) {
	key, err := keyIn.Key()
	if err != nil {
		return decimal.Zero, err
	}
	available := decimal.Zero
	err = l.scope.Execute(ctx, func(repos scope.Repositories) error {
		account, err := repos.MetalAccounts().FindByKey(ctx, tenantID, l.pool, key)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		available = account.Available
		return nil
	})
	return available, err
}
