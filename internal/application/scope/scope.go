// Package scope defines the unit of work shared by the ledger services.
package scope

import (
	"context"
	"errors"
	"time"

	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/catalogstock"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// TransactionScope runs a function inside one database transaction.
// Everything written through the repositories handed to fn, including the
// outbox events, commits or rolls back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories are the ledger repositories bound to the current transaction
type Repositories interface {
	MetalAccounts() metal.AccountRepository
	MetalEntries() metal.EntryRepository
	BankAccounts() bank.AccountRepository
	BankEntries() bank.EntryRepository
	Obligations() finance.ObligationRepository
	Receipts() finance.ReceiptRepository
	PurchaseEvents() purchase.Repository
	SaleBills() sales.Repository
	ManufacturingRecords() manufacturing.RecordRepository
	ConsumptionLinks() manufacturing.LinkRepository
	CatalogStock() catalogstock.Repository
	// Outbox stores domain events in the same transaction
	Outbox() shared.OutboxWriter
}

// RetryPolicy bounds the re-execution of a unit of work that lost an
// optimistic version check
type RetryPolicy struct {
	Attempts    int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy tries three times starting at 10ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseBackoff: 10 * time.Millisecond}
}

// ExecuteWithRetry runs fn in s and repeats it while it fails with
// CONCURRENCY_CONFLICT. Any other error is returned at once. fn must be safe
// to run again: it reloads everything it mutates.
func ExecuteWithRetry(ctx context.Context, s TransactionScope, policy RetryPolicy, fn func(repos Repositories) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			backoff := policy.BaseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		err = s.Execute(ctx, fn)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

// PublishEvents moves the pending events of each aggregate into the outbox
// and clears them
func PublishEvents(ctx context.Context, repos Repositories, aggregates ...shared.AggregateRoot) error {
	events := make([]shared.DomainEvent, 0)
	for _, a := range aggregates {
		events = append(events, a.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if err := repos.Outbox().Write(ctx, events...); err != nil {
		return err
	}
	for _, a := range aggregates {
		a.ClearDomainEvents()
	}
	return nil
}
