package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/catalogstock"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// OutboxWriterFactory binds an outbox writer to a transaction
type OutboxWriterFactory interface {
	Writer(tx *gorm.DB) shared.OutboxWriter
}

// GormTransactionScope implements scope.TransactionScope with GORM transactions
type GormTransactionScope struct {
	db          *gorm.DB
	outbox      OutboxWriterFactory
	afterCommit []func()
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithAfterCommit registers a hook run after every successful commit, used
// to wake the outbox processor
func WithAfterCommit(fn func()) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.afterCommit = append(s.afterCommit, fn)
	}
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, outbox OutboxWriterFactory, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db, outbox: outbox}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn in a transaction. An error from fn rolls everything back.
// A deadlock or serialization abort comes back as CONCURRENCY_CONFLICT.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos scope.Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
	if err != nil {
		return abortedTransaction(err)
	}
	for _, hook := range s.afterCommit {
		hook()
	}
	return nil
}

type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox OutboxWriterFactory
}

func (r *gormTransactionalRepositories) MetalAccounts() metal.AccountRepository {
	return NewGormMetalAccountRepository(r.tx)
}

func (r *gormTransactionalRepositories) MetalEntries() metal.EntryRepository {
	return NewGormMetalEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) BankAccounts() bank.AccountRepository {
	return NewGormBankAccountRepository(r.tx)
}

func (r *gormTransactionalRepositories) BankEntries() bank.EntryRepository {
	return NewGormBankEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) Obligations() finance.ObligationRepository {
	return NewGormObligationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Receipts() finance.ReceiptRepository {
	return NewGormReceiptRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseEvents() purchase.Repository {
	return NewGormPurchaseEventRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleBills() sales.Repository {
	return NewGormSaleBillRepository(r.tx)
}

func (r *gormTransactionalRepositories) ManufacturingRecords() manufacturing.RecordRepository {
	return NewGormManufacturingRecordRepository(r.tx)
}

func (r *gormTransactionalRepositories) ConsumptionLinks() manufacturing.LinkRepository {
	return NewGormConsumptionLinkRepository(r.tx)
}

func (r *gormTransactionalRepositories) CatalogStock() catalogstock.Repository {
	return NewGormCatalogStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) Outbox() shared.OutboxWriter {
	if r.outbox == nil {
		return discardOutbox{}
	}
	return r.outbox.Writer(r.tx)
}

// discardOutbox drops events; used when no outbox is wired, as in
// repository tests
type discardOutbox struct{}

func (discardOutbox) Write(context.Context, ...shared.DomainEvent) error { return nil }

var (
	_ scope.TransactionScope = (*GormTransactionScope)(nil)
	_ scope.Repositories     = (*gormTransactionalRepositories)(nil)
)
