// Package posting posts and cancels purchase invoices and sale bills. A
// posting moves metal through the stock and exchange ledgers, raises the
// obligation the party has to settle and, for sales, queues the catalog
// stock change in the outbox.
package posting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// Service posts documents against the ledgers
type Service struct {
	scope    scope.TransactionScope
	stock    *metalledger.Ledger
	exchange *metalledger.Ledger
	payments *financeapp.PaymentService
	retry    scope.RetryPolicy
	clock    shared.Clock
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithRetryPolicy overrides the conflict retry policy
func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock sets the clock used for dates a request leaves out
func WithClock(c shared.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a posting Service. stock and exchange are the ledgers of
// the STOCK and EXCHANGE pools.
func NewService(ts scope.TransactionScope, stock, exchange *metalledger.Ledger, payments *financeapp.PaymentService,
	logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		scope:    ts,
		stock:    stock,
		exchange: exchange,
		payments: payments,
		retry:    scope.DefaultRetryPolicy(),
		clock:    shared.SystemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostPurchaseInvoice records a supplier invoice in one transaction: every
// metal line enters stock, exchange metal given to the supplier leaves the
// exchange pool, and a BILL for the grand total is raised. A payment made at
// the counter settles that bill only.
func (s *Service) PostPurchaseInvoice(ctx context.Context, tenantID uuid.UUID, req PostPurchaseRequest) (*PurchaseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "post_purchase")
	defer span.End()
	telemetry.SetAttributes(span, "invoice_number", req.InvoiceNumber, "lines", len(req.Lines))

	date := req.InvoiceDate
	if date.IsZero() {
		date = s.clock.Now()
	}
	ev, err := purchase.NewPurchaseEvent(tenantID, req.InvoiceNumber, req.SupplierID, req.SupplierName, date.UTC(), req.lines(), req.exchanges())
	if err != nil {
		return nil, err
	}

	var (
		obligation *finance.Obligation
		receipt    *finance.PaymentReceipt
	)
	err = scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		var err error
		obligation, receipt, err = s.postPurchaseTx(ctx, repos, tenantID, ev, req.Payment)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("purchase invoice posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("purchase_event_id", ev.ID.String()),
		zap.String("invoice_number", ev.InvoiceNumber),
		zap.String("grand_total", ev.GrandTotal.String()))
	resp := ToPurchaseResponse(ev)
	resp.ObligationID = &obligation.ID
	if receipt != nil {
		r := financeapp.ToReceiptResponse(receipt)
		resp.Receipt = &r
	}
	return &resp, nil
}

func (s *Service) postPurchaseTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, ev *purchase.PurchaseEvent,
	payment *InitialPayment) (*finance.Obligation, *finance.PaymentReceipt, error) {
	exists, err := repos.PurchaseEvents().ExistsByNumber(ctx, tenantID, ev.SupplierID, ev.InvoiceNumber)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, shared.NewDomainError(shared.CodeAlreadyExists, "purchase invoice "+ev.InvoiceNumber+" is already posted for this supplier")
	}
	if err := repos.PurchaseEvents().Create(ctx, ev); err != nil {
		return nil, nil, err
	}

	for _, l := range metal.InLockOrder(ev.Lines, func(l purchase.MetalLine) metal.MetalKey { return l.Key }) {
		mv := metal.Movement{Source: metal.SourcePurchase, Reference: ev.Reference(), Counterparty: ev.SupplierName}
		if _, err := s.stock.AcquireTx(ctx, repos, tenantID, l.Key, l.GrossWeight, l.NetWeight, mv); err != nil {
			return nil, nil, err
		}
	}
	for _, x := range metal.InLockOrder(ev.Exchanges, func(x purchase.ExchangeSettlement) metal.MetalKey { return x.Key }) {
		mv := metal.Movement{Source: metal.SourceSupplierSale, Reference: ev.Reference(), Counterparty: ev.SupplierName}
		if _, err := s.exchange.ConsumeTx(ctx, repos, tenantID, x.Key, x.Weight, mv); err != nil {
			return nil, nil, err
		}
	}

	o, err := finance.NewObligation(tenantID, finance.KindBill, ev.InvoiceNumber, ev.SupplierID, ev.SupplierName, ev.EventDate, ev.GrandTotal)
	if err != nil {
		return nil, nil, err
	}
	o.SourceID = &ev.ID
	if err := repos.Obligations().Create(ctx, o); err != nil {
		return nil, nil, err
	}

	if payment == nil {
		return o, nil, nil
	}
	in := payment.input(finance.KindBill, ev.SupplierID, ev.SupplierName)
	receipt, err := s.payments.ApplyToObligationTx(ctx, repos, tenantID, in, o.ID, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	return o, receipt, nil
}

// CancelPurchaseInvoice takes a purchase back out of the ledgers. The bill
// must carry no payments. Each metal line and exchange settlement is
// reversed in its own transaction; lines that fail are logged and reported
// through a *shared.PartialReversalError next to the result, and the
// invoice stays PARTIALLY_CANCELLED until a later run reverses them.
func (s *Service) CancelPurchaseInvoice(ctx context.Context, tenantID, eventID uuid.UUID) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "cancel_purchase")
	defer span.End()
	telemetry.SetAttributes(span, "purchase_event_id", eventID.String())

	var ev *purchase.PurchaseEvent
	err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		var err error
		ev, err = repos.PurchaseEvents().FindByIDForUpdate(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		if ev.IsCancelled() {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "purchase invoice "+ev.InvoiceNumber+" is already cancelled")
		}
		return closeObligation(ctx, repos, tenantID, finance.KindBill, ev.ID, "purchase invoice cancelled", s.clock.Now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &CancelResult{DocumentID: ev.ID, Reversed: []uuid.UUID{}}
	var failures []shared.ItemFailure
	track := func(id uuid.UUID, err error, fields ...zap.Field) {
		if errors.Is(err, shared.ErrDuplicateProcessing) {
			return
		}
		if err != nil {
			s.logger.Warn("failed to reverse purchase line",
				append(fields, zap.String("purchase_event_id", ev.ID.String()), zap.Error(err))...)
			failures = append(failures, shared.ItemFailure{ItemID: id.String(), Err: err})
			return
		}
		result.Reversed = append(result.Reversed, id)
	}

	for _, l := range ev.PendingLines() {
		line := l
		err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
			return s.reversePurchaseLineTx(ctx, repos, tenantID, ev.ID, line)
		})
		track(line.ID, err, zap.String("metal_key", line.Key.String()), zap.String("net_weight", line.NetWeight.String()))
	}
	for _, x := range ev.PendingExchanges() {
		settlement := x
		err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
			return s.restoreSupplierExchangeTx(ctx, repos, tenantID, ev.ID, settlement)
		})
		track(settlement.ID, err, zap.String("metal_key", settlement.Key.String()), zap.String("weight", settlement.Weight.String()))
	}

	complete := len(failures) == 0
	err = scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		current, err := repos.PurchaseEvents().FindByIDForUpdate(ctx, tenantID, ev.ID)
		if err != nil {
			return err
		}
		current.MarkCancelled(complete, s.clock.Now())
		if err := repos.PurchaseEvents().Save(ctx, current); err != nil {
			return err
		}
		result.Status = string(current.Status)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.finish(span, result, failures, "purchase invoice "+ev.InvoiceNumber)
}

func (s *Service) reversePurchaseLineTx(ctx context.Context, repos scope.Repositories, tenantID, eventID uuid.UUID, line purchase.MetalLine) error {
	ev, err := repos.PurchaseEvents().FindByIDForUpdate(ctx, tenantID, eventID)
	if err != nil {
		return err
	}
	if err := ev.MarkLineReversed(line.ID, s.clock.Now()); err != nil {
		return err
	}
	mv := metal.Movement{Source: metal.SourceReversal, Reference: ev.Reference(), Counterparty: ev.SupplierName, Note: "cancel purchase"}
	if _, err := s.stock.ReverseAcquisitionTx(ctx, repos, tenantID, line.Key, line.GrossWeight, line.NetWeight, mv); err != nil {
		return err
	}
	return repos.PurchaseEvents().Save(ctx, ev)
}

func (s *Service) restoreSupplierExchangeTx(ctx context.Context, repos scope.Repositories, tenantID, eventID uuid.UUID, x purchase.ExchangeSettlement) error {
	ev, err := repos.PurchaseEvents().FindByIDForUpdate(ctx, tenantID, eventID)
	if err != nil {
		return err
	}
	if err := ev.MarkExchangeRestored(x.ID, s.clock.Now()); err != nil {
		return err
	}
	mv := metal.Movement{Source: metal.SourceReversal, Reference: ev.Reference(), Counterparty: ev.SupplierName, Note: "cancel supplier exchange"}
	if _, err := s.exchange.RestoreTx(ctx, repos, tenantID, x.Key, x.Weight, mv); err != nil {
		return err
	}
	return repos.PurchaseEvents().Save(ctx, ev)
}

// PostSaleBill records a customer sale in one transaction: exchange metal
// the customer handed in enters the exchange pool, an INVOICE for the amount
// due is raised and the catalog stock reduction is queued in the outbox. A
// payment taken at the counter settles that invoice only.
func (s *Service) PostSaleBill(ctx context.Context, tenantID uuid.UUID, req PostSaleRequest) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "post_sale")
	defer span.End()
	telemetry.SetAttributes(span, "bill_number", req.BillNumber, "items", len(req.Items))

	date := req.BillDate
	if date.IsZero() {
		date = s.clock.Now()
	}
	var (
		bill       *sales.SaleBill
		obligation *finance.Obligation
		receipt    *finance.PaymentReceipt
	)
	err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		// built per attempt so a retried unit of work queues its events again
		var err error
		bill, err = sales.NewSaleBill(tenantID, req.BillNumber, req.CustomerID, req.CustomerName, date.UTC(), req.items(), req.exchanges())
		if err != nil {
			return err
		}
		obligation, receipt, err = s.postSaleTx(ctx, repos, tenantID, bill, req.Payment)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("sale bill posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("bill_number", bill.BillNumber),
		zap.String("grand_total", bill.GrandTotal.String()))
	resp := ToSaleResponse(bill)
	resp.ObligationID = &obligation.ID
	if receipt != nil {
		r := financeapp.ToReceiptResponse(receipt)
		resp.Receipt = &r
	}
	return &resp, nil
}

func (s *Service) postSaleTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, bill *sales.SaleBill,
	payment *InitialPayment) (*finance.Obligation, *finance.PaymentReceipt, error) {
	exists, err := repos.SaleBills().ExistsByNumber(ctx, tenantID, bill.BillNumber)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, shared.NewDomainError(shared.CodeAlreadyExists, "sale bill "+bill.BillNumber+" already exists")
	}
	if err := repos.SaleBills().Create(ctx, bill); err != nil {
		return nil, nil, err
	}

	for _, x := range metal.InLockOrder(bill.Exchanges, func(x sales.ExchangeLine) metal.MetalKey { return x.Key }) {
		mv := metal.Movement{Source: metal.SourceCustomerExchange, Reference: bill.Reference(), Counterparty: bill.CustomerName}
		if _, err := s.exchange.AcquireTx(ctx, repos, tenantID, x.Key, x.GrossWeight, x.NetWeight, mv); err != nil {
			return nil, nil, err
		}
	}

	o, err := finance.NewObligation(tenantID, finance.KindInvoice, bill.BillNumber, bill.CustomerID, bill.CustomerName, bill.BillDate, bill.GrandTotal)
	if err != nil {
		return nil, nil, err
	}
	o.SourceID = &bill.ID
	if err := repos.Obligations().Create(ctx, o); err != nil {
		return nil, nil, err
	}

	bill.RequestStockReduction()
	if err := scope.PublishEvents(ctx, repos, bill); err != nil {
		return nil, nil, err
	}

	if payment == nil {
		return o, nil, nil
	}
	in := payment.input(finance.KindInvoice, bill.CustomerID, bill.CustomerName)
	receipt, err := s.payments.ApplyToObligationTx(ctx, repos, tenantID, in, o.ID, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	return o, receipt, nil
}

// CancelSaleBill reverses a sale. The invoice must carry no payments.
// Exchange metal is taken back out of the exchange pool line by line; the
// catalog stock restore is queued once, when the invoice is cancelled.
func (s *Service) CancelSaleBill(ctx context.Context, tenantID, billID uuid.UUID) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "cancel_sale")
	defer span.End()
	telemetry.SetAttributes(span, "bill_id", billID.String())

	var bill *sales.SaleBill
	err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		var err error
		bill, err = repos.SaleBills().FindByIDForUpdate(ctx, tenantID, billID)
		if err != nil {
			return err
		}
		if bill.IsCancelled() {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "sale bill "+bill.BillNumber+" is already cancelled")
		}
		return closeObligation(ctx, repos, tenantID, finance.KindInvoice, bill.ID, "sale bill cancelled", s.clock.Now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &CancelResult{DocumentID: bill.ID, Reversed: []uuid.UUID{}}
	var failures []shared.ItemFailure
	for _, x := range bill.PendingExchanges() {
		line := x
		err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
			return s.reverseCustomerExchangeTx(ctx, repos, tenantID, bill.ID, line)
		})
		if errors.Is(err, shared.ErrDuplicateProcessing) {
			continue
		}
		if err != nil {
			s.logger.Warn("failed to reverse exchange line",
				zap.String("bill_id", bill.ID.String()),
				zap.String("line_id", line.ID.String()),
				zap.String("metal_key", line.Key.String()),
				zap.String("net_weight", line.NetWeight.String()),
				zap.Error(err))
			failures = append(failures, shared.ItemFailure{ItemID: line.ID.String(), Err: err})
			continue
		}
		result.Reversed = append(result.Reversed, line.ID)
	}

	complete := len(failures) == 0
	err = scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		current, err := repos.SaleBills().FindByIDForUpdate(ctx, tenantID, bill.ID)
		if err != nil {
			return err
		}
		// the restore goes out with the first attempt only
		if current.Status == sales.StatusPosted {
			current.RequestStockRestore()
		}
		current.MarkCancelled(complete, s.clock.Now())
		if err := repos.SaleBills().Save(ctx, current); err != nil {
			return err
		}
		result.Status = string(current.Status)
		return scope.PublishEvents(ctx, repos, current)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.finish(span, result, failures, "sale bill "+bill.BillNumber)
}

func (s *Service) reverseCustomerExchangeTx(ctx context.Context, repos scope.Repositories, tenantID, billID uuid.UUID, x sales.ExchangeLine) error {
	bill, err := repos.SaleBills().FindByIDForUpdate(ctx, tenantID, billID)
	if err != nil {
		return err
	}
	if err := bill.MarkExchangeReversed(x.ID, s.clock.Now()); err != nil {
		return err
	}
	mv := metal.Movement{Source: metal.SourceReversal, Reference: bill.Reference(), Counterparty: bill.CustomerName, Note: "cancel customer exchange"}
	if _, err := s.exchange.ReverseAcquisitionTx(ctx, repos, tenantID, x.Key, x.GrossWeight, x.NetWeight, mv); err != nil {
		return err
	}
	return repos.SaleBills().Save(ctx, bill)
}

func (s *Service) finish(span trace.Span, result *CancelResult, failures []shared.ItemFailure, operation string) (*CancelResult, error) {
	result.Outcome = string(shared.OutcomeOf(len(failures)))
	if len(failures) == 0 {
		s.logger.Info("document cancelled", zap.String("document", operation), zap.Int("reversed", len(result.Reversed)))
		return result, nil
	}
	result.Failures = make([]LineFailureResponse, len(failures))
	for i, f := range failures {
		result.Failures[i] = LineFailureResponse{LineID: f.ItemID, Code: shared.ErrorCode(f.Err), Message: f.Err.Error()}
	}
	perr := &shared.PartialReversalError{Operation: operation, Succeeded: len(result.Reversed), Failures: failures}
	telemetry.RecordError(span, perr)
	return result, perr
}

// closeObligation cancels the obligation raised for a document, refusing
// when payments are allocated to it. It runs in the same transaction that
// locks the document, so no payment can land between the check and the
// reversals that follow.
func closeObligation(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, kind finance.ObligationKind, sourceID uuid.UUID, reason string, at time.Time) error {
	o, err := repos.Obligations().FindBySourceForUpdate(ctx, tenantID, kind, sourceID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status == finance.StatusCancelled {
		return nil
	}
	if o.PaidAmount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidState,
			string(kind)+" "+o.Number+" has payments of "+o.PaidAmount.StringFixed(2)+"; delete them first")
	}
	if err := o.Cancel(reason, at); err != nil {
		return err
	}
	if err := repos.Obligations().SaveWithLock(ctx, o); err != nil {
		return err
	}
	return scope.PublishEvents(ctx, repos, o)
}
