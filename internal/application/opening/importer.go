// Package opening loads opening balances from CSV files when a shop moves
// its books onto the ledger: metal stock per key and unpaid invoices and bills.
package opening

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
	csvimport "github.com/jewelryerp/backend/internal/infrastructure/import"
)

// referenceNamespace derives stable reference ids for opening stock lines so
// a re-run finds what an earlier run already posted
var referenceNamespace = uuid.MustParse("6f1c7c52-3f57-4c1a-9a43-6e0f1d1b8b2e")

// MetalStock is the part of the stock ledger the importer writes to
type MetalStock interface {
	Acquire(ctx context.Context, tenantID uuid.UUID, req metalledger.AcquireRequest) (*metalledger.AccountResponse, error)
	ExistsByReference(ctx context.Context, tenantID uuid.UUID, refType string, refID uuid.UUID) (bool, error)
}

// Obligations registers invoices and bills
type Obligations interface {
	RegisterObligation(ctx context.Context, tenantID uuid.UUID, req financeapp.RegisterObligationRequest) (*financeapp.ObligationResponse, error)
}

// Result summarizes one import
type Result struct {
	TotalRows   int                  `json:"total_rows"`
	Imported    int                  `json:"imported"`
	Skipped     int                  `json:"skipped"`
	DryRun      bool                 `json:"dry_run,omitempty"`
	Errors      []csvimport.RowError `json:"errors,omitempty"`
	TotalErrors int                  `json:"total_errors,omitempty"`
}

// Failed reports whether any row was rejected
func (r *Result) Failed() bool {
	return r.TotalErrors > 0
}

// Options control an import run
type Options struct {
	// DryRun validates the file without writing anything
	DryRun    bool
	MaxErrors int
}

// Importer validates a whole file before posting any row of it. Rows the
// ledger refuses are reported and the rest still go through.
type Importer struct {
	stock       MetalStock
	obligations Obligations
	logger      *zap.Logger
}

// NewImporter creates an Importer
func NewImporter(stock MetalStock, obligations Obligations, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{stock: stock, obligations: obligations, logger: logger.Named("opening_import")}
}

var metalRules = []csvimport.FieldRule{
	csvimport.Field("reference").Required().MaxLength(50).Unique().Build(),
	csvimport.Field("metal_type").Required().MaxLength(50).Build(),
	csvimport.Field("purity").Required().MaxLength(20).Build(),
	csvimport.Field("net_weight").Required().Positive().Build(),
	csvimport.Field("gross_weight").Positive().Build(),
	csvimport.Field("note").MaxLength(255).Build(),
}

var obligationRules = []csvimport.FieldRule{
	csvimport.Field("kind").Required().OneOf(string(finance.KindInvoice), string(finance.KindBill)).Build(),
	csvimport.Field("number").Required().MaxLength(50).Unique().Build(),
	csvimport.Field("party_id").Required().UUID().Build(),
	csvimport.Field("party_name").MaxLength(200).Build(),
	csvimport.Field("date").Date().Build(),
	csvimport.Field("grand_total").Required().Positive().Build(),
}

// ImportMetalStock posts one acquisition per row into the STOCK pool.
// Columns: reference, metal_type, purity, net_weight, gross_weight (defaults
// to net_weight), note. A reference already posted for the tenant is skipped.
func (im *Importer) ImportMetalStock(ctx context.Context, tenantID uuid.UUID, r io.Reader, opts Options) (*Result, error) {
	rows, validator, err := parseAndValidate(r, metalRules, opts)
	if err != nil {
		return nil, err
	}
	result := &Result{TotalRows: len(rows), DryRun: opts.DryRun}
	if validator.Errors().HasErrors() || opts.DryRun {
		return finish(result, validator.Errors()), nil
	}

	errs := validator.Errors()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reference := row.Get("reference")
		refID := uuid.NewSHA1(referenceNamespace, []byte(tenantID.String()+"/"+strings.ToLower(reference)))

		exists, err := im.stock.ExistsByReference(ctx, tenantID, metal.RefOpeningBalance, refID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.LineNumber, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		net := decimal.RequireFromString(row.Get("net_weight"))
		gross := net
		if g := row.Get("gross_weight"); g != "" {
			gross = decimal.RequireFromString(g)
		}
		_, err = im.stock.Acquire(ctx, tenantID, metalledger.AcquireRequest{
			KeyInput: metalledger.KeyInput{MetalType: row.Get("metal_type"), Purity: row.Get("purity")},
			MovementInput: metalledger.MovementInput{
				Source:    string(metal.SourceManualAdjustment),
				Reference: metalledger.ReferenceInput{Type: metal.RefOpeningBalance, ID: refID, Number: reference},
				Note:      row.GetOrDefault("note", "opening balance"),
			},
			GrossWeight: gross,
			NetWeight:   net,
		})
		if err != nil {
			if rejected(err) {
				errs.AddRowError(row.LineNumber, csvimport.ErrCodeRejected, err.Error())
				continue
			}
			return nil, fmt.Errorf("row %d: %w", row.LineNumber, err)
		}
		result.Imported++
	}

	im.logger.Info("opening metal stock imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", errs.TotalCount()))
	return finish(result, errs), nil
}

// ImportObligations registers one unpaid invoice or bill per row.
// Columns: kind, number, party_id, party_name, date (YYYY-MM-DD), grand_total.
// A number the tenant already has is skipped.
func (im *Importer) ImportObligations(ctx context.Context, tenantID uuid.UUID, r io.Reader, opts Options) (*Result, error) {
	rows, validator, err := parseAndValidate(r, obligationRules, opts)
	if err != nil {
		return nil, err
	}
	result := &Result{TotalRows: len(rows), DryRun: opts.DryRun}
	if validator.Errors().HasErrors() || opts.DryRun {
		return finish(result, validator.Errors()), nil
	}

	errs := validator.Errors()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := financeapp.RegisterObligationRequest{
			Kind:       strings.ToUpper(row.Get("kind")),
			Number:     row.Get("number"),
			PartyID:    uuid.MustParse(row.Get("party_id")),
			PartyName:  row.Get("party_name"),
			GrandTotal: decimal.RequireFromString(row.Get("grand_total")),
		}
		if d := row.Get("date"); d != "" {
			req.ObligationDate, _ = time.Parse("2006-01-02", d)
		}

		_, err := im.obligations.RegisterObligation(ctx, tenantID, req)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, shared.ErrAlreadyExists):
			result.Skipped++
		case rejected(err):
			errs.AddRowError(row.LineNumber, csvimport.ErrCodeRejected, err.Error())
		default:
			return nil, fmt.Errorf("row %d: %w", row.LineNumber, err)
		}
	}

	im.logger.Info("opening obligations imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", errs.TotalCount()))
	return finish(result, errs), nil
}

func parseAndValidate(r io.Reader, rules []csvimport.FieldRule, opts Options) ([]*csvimport.Row, *csvimport.FieldValidator, error) {
	parser, err := csvimport.NewCSVParser(r)
	if err != nil {
		return nil, nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, nil, err
	}
	validator := csvimport.NewFieldValidator(rules, opts.MaxErrors)
	if missing := parser.ValidateHeaders(validator.RequiredColumns()); len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, csvimport.ErrNoDataRows
	}
	for _, row := range rows {
		validator.ValidateRow(row)
	}
	return rows, validator, nil
}

// rejected reports whether the ledger refused the row itself, as opposed to
// failing for reasons that would hit every row
func rejected(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de)
}

func finish(result *Result, errs *csvimport.ErrorCollection) *Result {
	result.Errors = errs.Errors()
	result.TotalErrors = errs.TotalCount()
	return result
}
