package finance

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// RegisterObligation records an invoice or bill that did not come from posting
func (s *PaymentService) RegisterObligation(ctx context.Context, tenantID uuid.UUID, req RegisterObligationRequest) (*ObligationResponse, error) {
	date := req.ObligationDate
	if date.IsZero() {
		date = s.clock.Now()
	}
	o, err := finance.NewObligation(tenantID, finance.ObligationKind(req.Kind), req.Number, req.PartyID, req.PartyName, date.UTC(), req.GrandTotal)
	if err != nil {
		return nil, err
	}
	if err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		return repos.Obligations().Create(ctx, o)
	}); err != nil {
		return nil, err
	}
	s.logger.Info("obligation registered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("obligation_id", o.ID.String()),
		zap.String("kind", string(o.Kind)),
		zap.String("grand_total", o.GrandTotal.String()))
	resp := ToObligationResponse(o)
	return &resp, nil
}

// GetObligation returns one obligation
func (s *PaymentService) GetObligation(ctx context.Context, tenantID, id uuid.UUID) (*ObligationResponse, error) {
	var resp ObligationResponse
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		o, err := repos.Obligations().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		resp = ToObligationResponse(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListObligations pages through obligations
func (s *PaymentService) ListObligations(ctx context.Context, tenantID uuid.UUID, f ObligationListFilter, page shared.Page) ([]ObligationResponse, int64, error) {
	filter := finance.ObligationFilter{
		Kind:     finance.ObligationKind(strings.ToUpper(f.Kind)),
		PartyID:  f.PartyID,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
	}
	if f.Status != "" {
		for _, st := range strings.Split(f.Status, ",") {
			filter.Statuses = append(filter.Statuses, finance.ObligationStatus(strings.ToUpper(strings.TrimSpace(st))))
		}
	}

	var (
		out   []ObligationResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		list, n, err := repos.Obligations().List(ctx, tenantID, filter, page)
		if err != nil {
			return err
		}
		out = make([]ObligationResponse, len(list))
		for i := range list {
			out[i] = ToObligationResponse(&list[i])
		}
		total = n
		return nil
	})
	return out, total, err
}

// PendingTotal is what the party still owes, or is owed, on one side
func (s *PaymentService) PendingTotal(ctx context.Context, tenantID uuid.UUID, kind string, partyID uuid.UUID) (decimal.Decimal, error) {
	k := finance.ObligationKind(strings.ToUpper(kind))
	if !k.IsValid() {
		return decimal.Zero, shared.NewValidationError("invalid obligation kind %q", kind)
	}
	total := decimal.Zero
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		var err error
		total, err = repos.Obligations().PendingTotal(ctx, tenantID, k, partyID)
		return err
	})
	return total, err
}
