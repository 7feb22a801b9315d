// Command ledgerctl runs maintenance jobs against the ledger database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	auditapp "github.com/jewelryerp/backend/internal/application/audit"
	bankledger "github.com/jewelryerp/backend/internal/application/bank"
	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/application/opening"
	outboxapp "github.com/jewelryerp/backend/internal/application/outbox"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/infrastructure/config"
	"github.com/jewelryerp/backend/internal/infrastructure/event"
	"github.com/jewelryerp/backend/internal/infrastructure/logger"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence"
	"github.com/jewelryerp/backend/internal/infrastructure/storage"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// errInconsistent and errRejectedRows make a command exit non-zero after it
// has already printed its findings
var (
	errInconsistent = errors.New("ledger inconsistencies found")
	errRejectedRows = errors.New("import rejected rows")
)

type options struct {
	logLevel string
	jsonOut  bool
}

// env is everything a subcommand needs, opened lazily by PersistentPreRunE
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *persistence.Database
	scope  *persistence.GormTransactionScope
	outbox *event.GormOutboxRepository
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errInconsistent) && !errors.Is(err, errRejectedRows) {
			fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	e := &env{}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Ledger maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsDatabase(cmd) {
				return nil
			}
			return e.open(opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.close()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(newVerifyCommand(e, opts), newImportCommand(e, opts), newOutboxCommand(e, opts))
	return cmd
}

func needsDatabase(cmd *cobra.Command) bool {
	if cmd.Name() == "help" {
		return false
	}
	return !cmd.HasParent() || cmd.Parent().Name() != "completion"
}

func (e *env) open(opts *options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(&logger.Config{
		Level:      opts.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(opts.logLevel)))
	if err != nil {
		return err
	}

	serializer := event.NewLedgerEventSerializer()

	e.cfg = cfg
	e.log = log
	e.db = db
	e.scope = persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer))
	e.outbox = event.NewGormOutboxRepository(db.DB)
	return nil
}

func (e *env) close() error {
	if e.log != nil {
		_ = e.log.Sync()
	}
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newVerifyCommand(e *env, opts *options) *cobra.Command {
	var (
		tenants []string
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute cached balances from the ledgers and report drift",
		Long: "verify audits metal accounts, bank accounts and obligations. Without --tenant\n" +
			"it audits every tenant that holds a metal account. The exit status is 1\n" +
			"when any tenant is inconsistent. --archive also writes each report to the\n" +
			"configured object storage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			ids, err := resolveTenants(ctx, e, tenants)
			if err != nil {
				return err
			}
			var archiver *auditapp.Archiver
			if archive {
				if archiver, err = newArchiver(ctx, e); err != nil {
					return err
				}
			}
			auditor := auditapp.NewAuditor(e.scope, e.log)
			reports := make([]*auditapp.Report, 0, len(ids))
			for _, id := range ids {
				report, err := auditor.Run(ctx, id)
				if err != nil {
					return fmt.Errorf("audit tenant %s: %w", id, err)
				}
				reports = append(reports, report)
				if archiver != nil {
					if _, err := archiver.Archive(ctx, report); err != nil {
						return fmt.Errorf("archive tenant %s: %w", id, err)
					}
				}
			}

			if err := printReports(cmd.OutOrStdout(), reports, opts.jsonOut); err != nil {
				return err
			}
			for _, r := range reports {
				if !r.Consistent() {
					return errInconsistent
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant id to audit (repeatable)")
	cmd.Flags().BoolVar(&archive, "archive", false, "write reports to object storage")
	return cmd
}

func newArchiver(ctx context.Context, e *env) (*auditapp.Archiver, error) {
	if !e.cfg.Storage.Enabled {
		return nil, errors.New("--archive needs storage.enabled in the configuration")
	}
	objects, err := storage.NewS3ObjectStorage(&e.cfg.Storage, storage.WithLogger(e.log))
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return auditapp.NewArchiver(objects, e.cfg.Storage.Prefix, e.log), nil
}

func resolveTenants(ctx context.Context, e *env, raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return telemetry.NewGormLedgerSnapshotProvider(e.db.DB).ActiveTenants(ctx)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printReports(w io.Writer, reports []*auditapp.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "no tenants to audit")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tMETAL\tBANK\tOBLIGATIONS\tFINDINGS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", r.TenantID, r.MetalAccounts, r.BankAccounts, r.Obligations, r.Findings())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range reports {
		for _, f := range r.MetalFindings {
			fmt.Fprintf(w, "%s metal %s %s: %s (available %s, ledger %s)\n",
				r.TenantID, f.Pool, f.MetalKey, f.Problem, f.Available, f.NetMovement)
		}
		for _, f := range r.BankFindings {
			fmt.Fprintf(w, "%s bank %s: %s (expected %s)\n", r.TenantID, f.AccountID, f.Problem, f.Expected)
		}
		for _, f := range r.ObligationFindings {
			fmt.Fprintf(w, "%s %s %s: %s\n", r.TenantID, f.Kind, f.Number, f.Problem)
		}
	}
	return nil
}

type importFunc func(*opening.Importer, context.Context, uuid.UUID, io.Reader, opening.Options) (*opening.Result, error)

func newImportCommand(e *env, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load opening balances from CSV files",
	}

	var (
		tenant string
		file   string
		dryRun bool
	)
	run := func(load importFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid tenant id %q: %w", tenant, err)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			retry := scope.RetryPolicy{Attempts: e.cfg.Ledger.ConflictRetries, BaseBackoff: 10 * time.Millisecond}
			stock := metalledger.NewMetalStockLedger(e.scope, e.log, metalledger.WithRetryPolicy(retry))
			payments := financeapp.NewPaymentService(e.scope, bankledger.NewAccountLedger(e.scope, e.log), e.log, financeapp.WithRetryPolicy(retry))
			importer := opening.NewImporter(stock, payments, e.log)

			result, err := load(importer, ctx, tenantID, f, opening.Options{DryRun: dryRun})
			if err != nil {
				return err
			}
			if err := printImportResult(cmd.OutOrStdout(), result, opts.jsonOut); err != nil {
				return err
			}
			if result.Failed() {
				return errRejectedRows
			}
			return nil
		}
	}

	metalCmd := &cobra.Command{
		Use:   "metal",
		Short: "Post opening metal stock (reference, metal_type, purity, net_weight, gross_weight, note)",
		RunE:  run((*opening.Importer).ImportMetalStock),
	}
	obligationsCmd := &cobra.Command{
		Use:   "obligations",
		Short: "Register unpaid invoices and bills (kind, number, party_id, party_name, date, grand_total)",
		RunE:  run((*opening.Importer).ImportObligations),
	}
	for _, c := range []*cobra.Command{metalCmd, obligationsCmd} {
		c.Flags().StringVar(&tenant, "tenant", "", "tenant id")
		c.Flags().StringVarP(&file, "file", "f", "", "CSV file")
		c.Flags().BoolVar(&dryRun, "dry-run", false, "validate without writing")
		_ = c.MarkFlagRequired("tenant")
		_ = c.MarkFlagRequired("file")
	}
	cmd.AddCommand(metalCmd, obligationsCmd)
	return cmd
}

func printImportResult(w io.Writer, r *opening.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "rows %d, imported %d, skipped %d, errors %d%s\n", r.TotalRows, r.Imported, r.Skipped, r.TotalErrors, mode)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	if r.TotalErrors > len(r.Errors) {
		fmt.Fprintf(w, "  ... %d more\n", r.TotalErrors-len(r.Errors))
	}
	return nil
}

func newOutboxCommand(e *env, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the event outbox",
	}
	admin := func() *outboxapp.Admin {
		// no processor runs in this process; the server picks retried entries up on its next poll
		return outboxapp.NewAdmin(e.outbox, nil, e.log)
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count outbox entries by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			s, err := admin().Stats(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(s)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "pending\t%d\nprocessing\t%d\nsent\t%d\nfailed\t%d\ndead\t%d\n",
				s.Pending, s.Processing, s.Sent, s.Failed, s.Dead)
			return tw.Flush()
		},
	}

	var id string
	retryDead := &cobra.Command{
		Use:   "retry-dead",
		Short: "Return dead entries to pending",
		Long:  "retry-dead resets one dead entry (--id) or all of them to pending with a fresh retry budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			if id != "" {
				entryID, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("invalid entry id %q: %w", id, err)
				}
				entry, err := admin().RetryDead(ctx, entryID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "entry %s (%s) is %s\n", entry.ID, entry.EventType, entry.Status)
				return nil
			}
			n, err := admin().RetryAllDead(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dead entries returned to pending\n", n)
			return nil
		},
	}
	retryDead.Flags().StringVar(&id, "id", "", "retry a single entry")

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete sent entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			n, err := admin().PurgeSent(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sent entries deleted\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 168*time.Hour, "age of the oldest sent entry to keep")

	cmd.AddCommand(stats, retryDead, purge)
	return cmd
}
