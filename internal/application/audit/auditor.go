// Package audit recomputes every cached balance of a tenant from its ledger
// and reports where the two disagree.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bankledger "github.com/jewelryerp/backend/internal/application/bank"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// MetalFinding is a metal account whose totals or ledger disagree
type MetalFinding struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Pool        string          `json:"pool"`
	MetalKey    string          `json:"metal_key"`
	Available   decimal.Decimal `json:"available"`
	NetMovement decimal.Decimal `json:"net_movement"`
	Problem     string          `json:"problem"`
}

// ObligationFinding is an invoice or bill whose paid and pending amounts
// do not add up to its total
type ObligationFinding struct {
	ObligationID uuid.UUID `json:"obligation_id"`
	Kind         string    `json:"kind"`
	Number       string    `json:"number"`
	Problem      string    `json:"problem"`
}

// Report is the outcome of one audit run
type Report struct {
	TenantID           uuid.UUID                       `json:"tenant_id"`
	CheckedAt          time.Time                       `json:"checked_at"`
	MetalAccounts      int                             `json:"metal_accounts"`
	BankAccounts       int                             `json:"bank_accounts"`
	Obligations        int                             `json:"obligations"`
	MetalFindings      []MetalFinding                  `json:"metal_findings,omitempty"`
	BankFindings       []bankledger.VerificationResult `json:"bank_findings,omitempty"`
	ObligationFindings []ObligationFinding             `json:"obligation_findings,omitempty"`
}

// Consistent reports whether the run found nothing
func (r *Report) Consistent() bool {
	return len(r.MetalFindings) == 0 && len(r.BankFindings) == 0 && len(r.ObligationFindings) == 0
}

// Findings is the number of problems found
func (r *Report) Findings() int {
	return len(r.MetalFindings) + len(r.BankFindings) + len(r.ObligationFindings)
}

// Auditor verifies metal accounts, bank accounts and obligations of a tenant
type Auditor struct {
	scope  scope.TransactionScope
	clock  shared.Clock
	logger *zap.Logger
}

// NewAuditor creates an Auditor
func NewAuditor(ts scope.TransactionScope, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{scope: ts, clock: shared.SystemClock{}, logger: logger}
}

// Run checks every account of the tenant inside one read transaction.
// Mismatches are reported in the result; an error means the audit itself
// could not complete.
func (a *Auditor) Run(ctx context.Context, tenantID uuid.UUID) (*Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "audit", "run")
	defer span.End()

	report := &Report{TenantID: tenantID, CheckedAt: a.clock.Now()}
	err := a.scope.Execute(ctx, func(repos scope.Repositories) error {
		if err := a.checkMetal(ctx, repos, report); err != nil {
			return err
		}
		if err := a.checkBank(ctx, repos, report); err != nil {
			return err
		}
		return a.checkObligations(ctx, repos, report)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "audit.findings", report.Findings())

	if report.Consistent() {
		a.logger.Info("ledger audit passed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("metal_accounts", report.MetalAccounts),
			zap.Int("bank_accounts", report.BankAccounts),
			zap.Int("obligations", report.Obligations))
	} else {
		a.logger.Error("ledger audit found inconsistencies",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("findings", report.Findings()))
	}
	return report, nil
}

func (a *Auditor) checkMetal(ctx context.Context, repos scope.Repositories, report *Report) error {
	accounts, err := repos.MetalAccounts().ListAll(ctx, report.TenantID)
	if err != nil {
		return err
	}
	report.MetalAccounts = len(accounts)
	for i := range accounts {
		acc := &accounts[i]
		net, err := repos.MetalEntries().NetMovement(ctx, report.TenantID, acc.ID)
		if err != nil {
			return err
		}
		finding := MetalFinding{
			AccountID:   acc.ID,
			Pool:        acc.Pool.String(),
			MetalKey:    acc.Key.String(),
			Available:   acc.Available,
			NetMovement: net,
		}
		invariantErr := acc.CheckInvariant()
		switch {
		case invariantErr != nil:
			finding.Problem = invariantErr.Error()
		case !net.Equal(acc.Available):
			finding.Problem = "available weight differs from ledger net movement"
		default:
			continue
		}
		a.logger.Error("metal account inconsistent",
			zap.String("account_id", acc.ID.String()),
			zap.String("metal_key", finding.MetalKey),
			zap.String("problem", finding.Problem))
		report.MetalFindings = append(report.MetalFindings, finding)
	}
	return nil
}

func (a *Auditor) checkBank(ctx context.Context, repos scope.Repositories, report *Report) error {
	accounts, err := repos.BankAccounts().List(ctx, report.TenantID)
	if err != nil {
		return err
	}
	report.BankAccounts = len(accounts)
	for _, acc := range accounts {
		result, err := bankledger.VerifyTx(ctx, repos, report.TenantID, acc.ID)
		if err != nil {
			return err
		}
		if result.Consistent {
			continue
		}
		a.logger.Error("bank account inconsistent",
			zap.String("account_id", acc.ID.String()),
			zap.String("account", acc.Name),
			zap.String("problem", result.Problem))
		report.BankFindings = append(report.BankFindings, *result)
	}
	return nil
}

func (a *Auditor) checkObligations(ctx context.Context, repos scope.Repositories, report *Report) error {
	obligations, err := repos.Obligations().ListAll(ctx, report.TenantID)
	if err != nil {
		return err
	}
	report.Obligations = len(obligations)
	for i := range obligations {
		o := &obligations[i]
		if err := o.CheckInvariant(); err != nil {
			report.ObligationFindings = append(report.ObligationFindings, ObligationFinding{
				ObligationID: o.ID,
				Kind:         string(o.Kind),
				Number:       o.Number,
				Problem:      err.Error(),
			})
		}
	}
	return nil
}
