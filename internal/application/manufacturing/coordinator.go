// Package manufacturing coordinates metal consumption by manufacturing
// records with the stock ledger and the per-purchase consumption links.
package manufacturing

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/manufacturing"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// Locker serializes work on a named resource, possibly across processes
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Coordinator saves and cancels manufacturing records. Consumption is taken
// from the global stock pool; the purchase event acts as a gate and, in
// strict mode, as an upper bound per metal key.
type Coordinator struct {
	scope   scope.TransactionScope
	stock   *metalledger.Ledger
	locker  Locker
	lockTTL time.Duration
	strict  bool
	retry   scope.RetryPolicy
	clock   shared.Clock
	logger  *zap.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithStrictEventScope also requires every item to fit what is left on the purchase event
func WithStrictEventScope(strict bool) Option {
	return func(c *Coordinator) { c.strict = strict }
}

// WithLocker serializes saves per purchase event
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.locker = l
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithRetryPolicy overrides the conflict retry policy
func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(c *Coordinator) { c.retry = p }
}

// WithClock sets the clock stamped on reversals
func WithClock(clk shared.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// NewCoordinator creates a Coordinator. stock must be the STOCK pool ledger.
func NewCoordinator(ts scope.TransactionScope, stock *metalledger.Ledger, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		scope:   ts,
		stock:   stock,
		lockTTL: 30 * time.Second,
		retry:   scope.DefaultRetryPolicy(),
		clock:   shared.SystemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemainingForPurchase returns the purchased gross weight per key less what
// manufacturing consumed against the event
func (c *Coordinator) RemainingForPurchase(ctx context.Context, tenantID, eventID uuid.UUID) (*RemainingResponse, error) {
	resp := &RemainingResponse{PurchaseEventID: eventID}
	err := c.scope.Execute(ctx, func(repos scope.Repositories) error {
		ev, err := repos.PurchaseEvents().FindByID(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		links, err := repos.ConsumptionLinks().ListByEvent(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		resp.Remaining = manufacturing.RemainingForPurchase(ev, links)
		var blocked *manufacturing.ConsumptionBlockedError
		if errors.As(manufacturing.ValidateForConsumption(ev, links), &blocked) {
			resp.Blocked = string(blocked.Reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidateForConsumption returns a *manufacturing.ConsumptionBlockedError when
// the event has no metal, is cancelled or is fully consumed
func (c *Coordinator) ValidateForConsumption(ctx context.Context, tenantID, eventID uuid.UUID) error {
	return c.scope.Execute(ctx, func(repos scope.Repositories) error {
		ev, err := repos.PurchaseEvents().FindByID(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		links, err := repos.ConsumptionLinks().ListByEvent(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		return manufacturing.ValidateForConsumption(ev, links)
	})
}

// SaveManufacturingRecord consumes the metal of every item and stores the
// record. Any failure aborts the whole save.
func (c *Coordinator) SaveManufacturingRecord(ctx context.Context, tenantID uuid.UUID, req SaveRecordRequest) (*RecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing", "save_record")
	defer span.End()
	telemetry.SetAttributes(span, "purchase_event_id", req.PurchaseEventID.String(), "items", len(req.Items))

	rec, err := manufacturing.NewManufacturingRecord(tenantID, req.RecordNumber, req.PurchaseEventID, req.items())
	if err != nil {
		return nil, err
	}

	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, "purchase-event:"+req.PurchaseEventID.String(), c.lockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer release()
	}

	err = scope.ExecuteWithRetry(ctx, c.scope, c.retry, func(repos scope.Repositories) error {
		return c.saveTx(ctx, repos, tenantID, rec)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Info("manufacturing record rejected",
			zap.String("record_number", rec.RecordNumber),
			zap.String("purchase_event_id", rec.PurchaseEventID.String()),
			zap.Error(err))
		return nil, err
	}

	c.logger.Info("manufacturing record saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("record_id", rec.ID.String()),
		zap.String("record_number", rec.RecordNumber),
		zap.Int("items", len(rec.Items)))
	resp := ToRecordResponse(rec)
	return &resp, nil
}

func (c *Coordinator) saveTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, rec *manufacturing.ManufacturingRecord) error {
	exists, err := repos.ManufacturingRecords().ExistsByNumber(ctx, tenantID, rec.RecordNumber)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError(shared.CodeAlreadyExists, "manufacturing record "+rec.RecordNumber+" already exists")
	}

	ev, err := repos.PurchaseEvents().FindByIDForUpdate(ctx, tenantID, rec.PurchaseEventID)
	if err != nil {
		return err
	}
	links, err := repos.ConsumptionLinks().ListByEvent(ctx, tenantID, ev.ID)
	if err != nil {
		return err
	}
	if err := manufacturing.ValidateForConsumption(ev, links); err != nil {
		return err
	}
	if c.strict {
		if err := manufacturing.CheckWithinEvent(ev, links, rec); err != nil {
			return err
		}
	}

	items := metal.InLockOrder(rec.Items, func(it manufacturing.RecordItem) metal.MetalKey { return it.Key })
	for _, it := range items {
		mv := metal.Movement{
			Source:       metal.SourceConsumption,
			Reference:    rec.Reference(),
			Counterparty: ev.SupplierName,
			Note:         it.Name,
		}
		if _, err := c.stock.ConsumeTx(ctx, repos, tenantID, it.Key, it.ConsumedWeight, mv); err != nil {
			return err
		}
	}
	consumed := rec.ConsumptionByKey()
	for _, key := range slices.Sorted(maps.Keys(consumed)) {
		weight := consumed[key]
		link, err := repos.ConsumptionLinks().GetOrCreateForUpdate(ctx, tenantID, ev.ID, key)
		if err != nil {
			return err
		}
		link.Add(weight)
		if err := repos.ConsumptionLinks().SaveWithLock(ctx, link); err != nil {
			return err
		}
	}
	return repos.ManufacturingRecords().Create(ctx, rec)
}

// CancelManufacturingRecord restores the metal of every item not yet
// reversed, each item in its own transaction. Failed items are logged and
// skipped; the returned error is then a *shared.PartialReversalError and the
// result still describes what succeeded. Running it again retries only the
// items that are still pending.
func (c *Coordinator) CancelManufacturingRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing", "cancel_record")
	defer span.End()
	telemetry.SetAttributes(span, "record_id", recordID.String())

	var rec *manufacturing.ManufacturingRecord
	if err := c.scope.Execute(ctx, func(repos scope.Repositories) error {
		var err error
		rec, err = repos.ManufacturingRecords().FindByID(ctx, tenantID, recordID)
		return err
	}); err != nil {
		return nil, err
	}
	if rec.IsCancelled() {
		return nil, shared.NewDomainError(shared.CodeDuplicateProcessing, "manufacturing record "+rec.RecordNumber+" is already cancelled")
	}

	result := &CancelResult{RecordID: rec.ID, Reversed: []uuid.UUID{}}
	var failures []shared.ItemFailure
	status := rec.Status
	for _, it := range rec.PendingReversal() {
		item := it
		err := scope.ExecuteWithRetry(ctx, c.scope, c.retry, func(repos scope.Repositories) error {
			var err error
			status, err = c.reverseItemTx(ctx, repos, tenantID, rec.ID, item)
			return err
		})
		if errors.Is(err, shared.ErrDuplicateProcessing) {
			// reversed by a concurrent cancel
			continue
		}
		if err != nil {
			c.logger.Warn("failed to reverse manufacturing item",
				zap.String("record_id", rec.ID.String()),
				zap.String("item_id", item.ID.String()),
				zap.String("metal_key", item.Key.String()),
				zap.String("weight", item.ConsumedWeight.String()),
				zap.Error(err))
			failures = append(failures, shared.ItemFailure{ItemID: item.ID.String(), Err: err})
			continue
		}
		result.Reversed = append(result.Reversed, item.ID)
	}

	result.Status = string(status)
	result.Outcome = string(shared.OutcomeOf(len(failures)))
	if len(failures) > 0 {
		result.Failures = toFailureResponses(failures)
		perr := &shared.PartialReversalError{
			Operation: "manufacturing record " + rec.RecordNumber,
			Succeeded: len(result.Reversed),
			Failures:  failures,
		}
		telemetry.RecordError(span, perr)
		return result, perr
	}

	c.logger.Info("manufacturing record cancelled",
		zap.String("record_id", rec.ID.String()),
		zap.Int("items", len(result.Reversed)))
	return result, nil
}

func (c *Coordinator) reverseItemTx(ctx context.Context, repos scope.Repositories, tenantID, recordID uuid.UUID, item manufacturing.RecordItem) (manufacturing.RecordStatus, error) {
	// reload under lock so a concurrent cancel cannot restore the item twice
	rec, err := repos.ManufacturingRecords().FindByIDForUpdate(ctx, tenantID, recordID)
	if err != nil {
		return "", err
	}
	now := c.clock.Now()
	if err := rec.MarkItemReversed(item.ID, now); err != nil {
		return "", err
	}

	mv := metal.Movement{
		Source:    metal.SourceReversal,
		Reference: rec.Reference(),
		Note:      "cancel " + item.Name,
	}
	if _, err := c.stock.RestoreTx(ctx, repos, tenantID, item.Key, item.ConsumedWeight, mv); err != nil {
		return "", err
	}
	link, err := repos.ConsumptionLinks().GetOrCreateForUpdate(ctx, tenantID, rec.PurchaseEventID, item.Key.String())
	if err != nil {
		return "", err
	}
	if err := link.Subtract(item.ConsumedWeight); err != nil {
		return "", err
	}
	if err := repos.ConsumptionLinks().SaveWithLock(ctx, link); err != nil {
		return "", err
	}

	rec.RefreshStatus(now)
	if err := repos.ManufacturingRecords().Save(ctx, rec); err != nil {
		return "", err
	}
	return rec.Status, nil
}

// GetRecord returns one manufacturing record
func (c *Coordinator) GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*RecordResponse, error) {
	var resp RecordResponse
	err := c.scope.Execute(ctx, func(repos scope.Repositories) error {
		rec, err := repos.ManufacturingRecords().FindByID(ctx, tenantID, recordID)
		if err != nil {
			return err
		}
		resp = ToRecordResponse(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRecords pages through records, optionally for one purchase event
func (c *Coordinator) ListRecords(ctx context.Context, tenantID uuid.UUID, purchaseEventID *uuid.UUID, page shared.Page) ([]RecordResponse, int64, error) {
	var (
		out   []RecordResponse
		total int64
	)
	err := c.scope.Execute(ctx, func(repos scope.Repositories) error {
		recs, n, err := repos.ManufacturingRecords().List(ctx, tenantID, purchaseEventID, page)
		if err != nil {
			return err
		}
		out = make([]RecordResponse, len(recs))
		for i := range recs {
			out[i] = ToRecordResponse(&recs[i])
		}
		total = n
		return nil
	})
	return out, total, err
}
