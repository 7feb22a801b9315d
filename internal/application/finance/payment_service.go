package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bankledger "github.com/jewelryerp/backend/internal/application/bank"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// ReferenceTypePaymentReceipt tags bank entries produced by payments
const ReferenceTypePaymentReceipt = "PAYMENT_RECEIPT"

// PaymentService applies payments to a party's outstanding obligations in
// FIFO order and unwinds them in LIFO order when a receipt is deleted.
type PaymentService struct {
	scope    scope.TransactionScope
	accounts *bankledger.AccountLedger
	apply    finance.AllocationStrategy
	reverse  finance.AllocationStrategy
	retry    scope.RetryPolicy
	clock    shared.Clock
	logger   *zap.Logger
}

// Option configures a PaymentService
type Option func(*PaymentService)

// WithRetryPolicy overrides the conflict retry policy
func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(s *PaymentService) { s.retry = p }
}

// WithClock sets the clock used when a request carries no date
func WithClock(c shared.Clock) Option {
	return func(s *PaymentService) { s.clock = c }
}

// NewPaymentService creates a PaymentService
func NewPaymentService(ts scope.TransactionScope, accounts *bankledger.AccountLedger, logger *zap.Logger, opts ...Option) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PaymentService{
		scope:    ts,
		accounts: accounts,
		apply:    finance.NewFIFOAllocationStrategy(),
		reverse:  finance.NewLIFOAllocationStrategy(),
		retry:    scope.DefaultRetryPolicy(),
		clock:    shared.SystemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply records a payment and spreads it over the party's pending
// obligations, oldest first. What no obligation can absorb is reported as
// the receipt's unallocated amount.
func (s *PaymentService) Apply(ctx context.Context, tenantID uuid.UUID, req ApplyPaymentRequest) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply")
	defer span.End()
	telemetry.SetAttributes(span,
		"party_id", req.PartyID.String(),
		"obligation_kind", req.ObligationKind,
		"amount", req.Amount.String(),
	)

	in := req.input()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	paidAt := s.clock.Now()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	var receipt *finance.PaymentReceipt
	err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		var err error
		receipt, err = s.ApplyTx(ctx, repos, tenantID, in, paidAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("party_id", receipt.PartyID.String()),
		zap.String("amount", receipt.AmountPaid.String()),
		zap.Int("allocations", len(receipt.Allocations)),
		zap.String("unallocated", receipt.UnallocatedAmount.String()))
	resp := ToReceiptResponse(receipt)
	return &resp, nil
}

// ApplyTx is Apply inside a caller's unit of work
func (s *PaymentService) ApplyTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, in finance.ReceiptInput, paidAt time.Time) (*finance.PaymentReceipt, error) {
	if err := s.precheck(ctx, repos, tenantID, in); err != nil {
		return nil, err
	}
	outstanding, err := repos.Obligations().FindOutstandingForUpdate(ctx, tenantID, in.ObligationKind, in.PartyID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, repos, tenantID, in, outstanding, paidAt)
}

// ApplyToObligationTx pays one obligation only, the way an invoice posted
// with a payment settles itself. Anything above its pending amount is
// reported as unallocated.
func (s *PaymentService) ApplyToObligationTx(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, in finance.ReceiptInput, obligationID uuid.UUID, paidAt time.Time) (*finance.PaymentReceipt, error) {
	if err := s.precheck(ctx, repos, tenantID, in); err != nil {
		return nil, err
	}
	o, err := repos.Obligations().FindByIDForUpdate(ctx, tenantID, obligationID)
	if err != nil {
		return nil, err
	}
	if o.Kind != in.ObligationKind || o.PartyID != in.PartyID {
		return nil, shared.NewValidationError("payment does not match obligation %s", o.Number)
	}
	targets := []finance.Obligation{}
	if o.Status.CanApplyPayment() && o.PendingAmount.IsPositive() {
		targets = append(targets, *o)
	}
	return s.settle(ctx, repos, tenantID, in, targets, paidAt)
}

func (s *PaymentService) precheck(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, in finance.ReceiptInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if in.Reference == "" {
		return nil
	}
	exists, err := repos.Receipts().ExistsByReference(ctx, tenantID, in.PartyID, in.Reference)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError(shared.CodeDuplicateProcessing,
			"a payment with reference "+in.Reference+" was already recorded for this party")
	}
	return nil
}

// settle spreads the payment over outstanding in FIFO order, records the
// bank entry and freezes the receipt
func (s *PaymentService) settle(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, in finance.ReceiptInput, outstanding []finance.Obligation, paidAt time.Time) (*finance.PaymentReceipt, error) {
	previousPending := decimal.Zero
	byID := make(map[uuid.UUID]*finance.Obligation, len(outstanding))
	for i := range outstanding {
		previousPending = previousPending.Add(outstanding[i].PendingAmount)
		byID[outstanding[i].ID] = &outstanding[i]
	}

	amount := in.Amount.Round(2)
	plan, err := s.apply.Allocate(amount, finance.PendingTargets(outstanding))
	if err != nil {
		return nil, err
	}
	allocations := make([]finance.ReceiptAllocation, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		o := byID[a.TargetID]
		allocations = append(allocations, finance.ReceiptAllocation{
			ObligationID:     o.ID,
			ObligationNumber: o.Number,
			Amount:           a.Amount,
			PendingBefore:    o.PendingAmount,
			PendingAfter:     o.PendingAmount.Sub(a.Amount),
		})
	}
	receipt, err := finance.NewPaymentReceipt(tenantID, in, previousPending, allocations, paidAt)
	if err != nil {
		return nil, err
	}

	// money moves first so an uncovered outgoing payment fails before any
	// obligation is touched
	entry, err := s.postBankEntry(ctx, repos, tenantID, receipt, paidAt)
	if err != nil {
		return nil, err
	}
	receipt.LinkBankEntry(entry.ID)

	touched := make([]shared.AggregateRoot, 0, len(allocations)+1)
	for _, a := range allocations {
		o := byID[a.ObligationID]
		if err := o.ApplyPayment(receipt.ID, a.Amount, paidAt); err != nil {
			return nil, err
		}
		if err := o.CheckInvariant(); err != nil {
			return nil, err
		}
		if err := repos.Obligations().SaveWithLock(ctx, o); err != nil {
			return nil, err
		}
		touched = append(touched, o)
	}

	if err := repos.Receipts().Create(ctx, receipt); err != nil {
		return nil, err
	}
	touched = append(touched, receipt)
	if err := scope.PublishEvents(ctx, repos, touched...); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *PaymentService) postBankEntry(ctx context.Context, repos scope.Repositories, tenantID uuid.UUID, r *finance.PaymentReceipt, at time.Time) (*bank.BankLedgerEntry, error) {
	partyID := r.PartyID
	posting := bank.Posting{
		Reference: bank.Reference{Type: ReferenceTypePaymentReceipt, ID: r.ID, Number: r.ReceiptNumber},
		PartyID:   &partyID,
		PartyName: r.PartyName,
		Note:      r.Notes,
	}
	if r.ObligationKind == finance.KindBill {
		posting.Source = bank.SourcePaymentMade
		entry, _, err := s.accounts.DebitCoveredTx(ctx, repos, tenantID, r.BankAccountID, r.AmountPaid, posting, at)
		return entry, err
	}
	posting.Source = bank.SourcePaymentReceived
	entry, _, err := s.accounts.RecordCreditTx(ctx, repos, tenantID, r.BankAccountID, r.AmountPaid, posting, at)
	return entry, err
}

// Delete voids a receipt. The allocated amount is moved from paid back to
// pending walking the party's obligations newest first, and the opposite
// bank entry is recorded with source REVERSAL.
func (s *PaymentService) Delete(ctx context.Context, tenantID, receiptID uuid.UUID, req DeletePaymentRequest) (*DeletePaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttributes(span, "receipt_id", receiptID.String())

	var result *DeletePaymentResult
	err := scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		var err error
		result, err = s.deleteTx(ctx, repos, tenantID, receiptID, req.Reason)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.Unreversed.IsPositive() {
		s.logger.Warn("payment deleted with an amount no paid obligation could absorb",
			zap.String("receipt_id", receiptID.String()),
			zap.String("unreversed", result.Unreversed.String()))
	}
	return result, nil
}

func (s *PaymentService) deleteTx(ctx context.Context, repos scope.Repositories, tenantID, receiptID uuid.UUID, reason string) (*DeletePaymentResult, error) {
	receipt, err := repos.Receipts().FindByIDForUpdate(ctx, tenantID, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt.Status == finance.ReceiptVoided {
		return nil, shared.NewDomainError(shared.CodeDuplicateProcessing, "payment receipt "+receipt.ReceiptNumber+" is already deleted")
	}
	now := s.clock.Now()
	result := &DeletePaymentResult{Reversals: []AllocationResponse{}, Unreversed: decimal.Zero}

	touched := make([]shared.AggregateRoot, 0)
	if allocated := receipt.AllocatedAmount(); allocated.IsPositive() {
		paid, err := repos.Obligations().FindPaidForUpdate(ctx, tenantID, receipt.ObligationKind, receipt.PartyID)
		if err != nil {
			return nil, err
		}
		byID := make(map[uuid.UUID]*finance.Obligation, len(paid))
		for i := range paid {
			byID[paid[i].ID] = &paid[i]
		}
		plan, err := s.reverse.Allocate(allocated, finance.PaidTargets(paid))
		if err != nil {
			return nil, err
		}
		for _, a := range plan.Allocations {
			o := byID[a.TargetID]
			before := o.PendingAmount
			if err := o.ReversePayment(receipt.ID, a.Amount, now); err != nil {
				return nil, err
			}
			if err := repos.Obligations().SaveWithLock(ctx, o); err != nil {
				return nil, err
			}
			touched = append(touched, o)
			result.Reversals = append(result.Reversals, AllocationResponse{
				ObligationID:     o.ID,
				ObligationNumber: o.Number,
				Amount:           a.Amount,
				PendingBefore:    before,
				PendingAfter:     o.PendingAmount,
			})
		}
		result.Unreversed = plan.Remaining
	}

	partyID := receipt.PartyID
	posting := bank.Posting{
		Source:    bank.SourceReversal,
		Reference: bank.Reference{Type: ReferenceTypePaymentReceipt, ID: receipt.ID, Number: receipt.ReceiptNumber},
		PartyID:   &partyID,
		PartyName: receipt.PartyName,
		Note:      reason,
	}
	var entry *bank.BankLedgerEntry
	if receipt.ObligationKind == finance.KindBill {
		entry, _, err = s.accounts.RecordCreditTx(ctx, repos, tenantID, receipt.BankAccountID, receipt.AmountPaid, posting, now)
	} else {
		entry, _, err = s.accounts.RecordDebitTx(ctx, repos, tenantID, receipt.BankAccountID, receipt.AmountPaid, posting, now)
	}
	if err != nil {
		return nil, err
	}

	if err := receipt.Void(reason, entry.ID, now); err != nil {
		return nil, err
	}
	if err := repos.Receipts().SaveWithLock(ctx, receipt); err != nil {
		return nil, err
	}
	touched = append(touched, receipt)
	if err := scope.PublishEvents(ctx, repos, touched...); err != nil {
		return nil, err
	}
	result.Receipt = ToReceiptResponse(receipt)
	return result, nil
}

// GetReceipt returns one receipt
func (s *PaymentService) GetReceipt(ctx context.Context, tenantID, receiptID uuid.UUID) (*ReceiptResponse, error) {
	var resp ReceiptResponse
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		r, err := repos.Receipts().FindByID(ctx, tenantID, receiptID)
		if err != nil {
			return err
		}
		resp = ToReceiptResponse(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReceipts pages through a party's receipts, newest first
func (s *PaymentService) ListReceipts(ctx context.Context, tenantID, partyID uuid.UUID, page shared.Page) ([]ReceiptResponse, int64, error) {
	var (
		out   []ReceiptResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		receipts, n, err := repos.Receipts().ListByParty(ctx, tenantID, partyID, page)
		if err != nil {
			return err
		}
		out = make([]ReceiptResponse, len(receipts))
		for i := range receipts {
			out[i] = ToReceiptResponse(&receipts[i])
		}
		total = n
		return nil
	})
	return out, total, err
}
