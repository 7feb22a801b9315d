package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	auditapp "github.com/jewelryerp/backend/internal/application/audit"
	bankledger "github.com/jewelryerp/backend/internal/application/bank"
	catalogstockapp "github.com/jewelryerp/backend/internal/application/catalogstock"
	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	manufacturingapp "github.com/jewelryerp/backend/internal/application/manufacturing"
	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	outboxapp "github.com/jewelryerp/backend/internal/application/outbox"
	"github.com/jewelryerp/backend/internal/application/posting"
	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/cache"
	"github.com/jewelryerp/backend/internal/infrastructure/config"
	"github.com/jewelryerp/backend/internal/infrastructure/event"
	"github.com/jewelryerp/backend/internal/infrastructure/lock"
	"github.com/jewelryerp/backend/internal/infrastructure/logger"
	"github.com/jewelryerp/backend/internal/infrastructure/migration"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence"
	"github.com/jewelryerp/backend/internal/infrastructure/scheduler"
	"github.com/jewelryerp/backend/internal/infrastructure/storage"
	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
	"github.com/jewelryerp/backend/internal/interfaces/http/handler"
	"github.com/jewelryerp/backend/internal/interfaces/http/middleware"
	"github.com/jewelryerp/backend/internal/interfaces/http/router"
	"github.com/jewelryerp/backend/migrations"

	_ "github.com/jewelryerp/backend/docs"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Jewelry Ledger API
//	@version		1.0
//	@description	Metal stock, exchange metal, bank and payment ledgers of a jewelry business. Every call under /api/v1 outside /system needs an X-Tenant-ID header.

//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tel := setupTelemetry(ctx, cfg, log)
	defer tel.shutdown(log)
	log = tel.logger

	log.Info("Starting jewelry ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.String("db_driver", cfg.Database.Driver),
	)

	finance.RoundingEpsilon = decimal.NewFromFloat(cfg.Ledger.RoundingEpsilon)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(db, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   dbSystem(cfg.Database.Driver),
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	dbMetrics, err := telemetry.NewDBMetrics(tel.meter, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to create database metrics", zap.Error(err))
	}
	if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
		log.Warn("Database metrics plugin not registered", zap.Error(err))
	}
	dbMetrics.SetSQLDB(sqlDB)
	dbMetrics.StartPoolStatsCollection(ctx)
	defer dbMetrics.Stop()
	log.Info("Database connected successfully")

	// Redis backs idempotency keys and the consumption lock when enabled
	readiness := map[string]handler.Pinger{"database": sqlDB}
	var (
		redisClient *redis.Client
		locker      manufacturingapp.Locker = lock.NewLocalLocker()
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, consumption lock is process-local", zap.Error(err))
		} else {
			defer func() { _ = redisClient.Close() }()
			locker = lock.NewRedisLocker(redisClient, log)
			readiness["redis"] = handler.PingerFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}
	idempotencyStore := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithFallback(persistence.NewProcessedEventStore(db.DB)),
	).CreateStore()
	defer func() { _ = idempotencyStore.Close() }()

	// Events
	serializer := event.NewLedgerEventSerializer()
	publisher := event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries))
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	eventBus := event.NewInMemoryEventBus(log)

	processorCfg := event.DefaultOutboxProcessorConfig()
	processorCfg.BatchSize = cfg.Event.BatchSize
	processorCfg.PollInterval = cfg.Event.PollInterval
	processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
	processorCfg.CleanupRetention = cfg.Event.CleanupRetention
	processor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorCfg, log)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(tel.meter, telemetry.NewGormLedgerSnapshotProvider(db.DB), log)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	processor.SetObserver(ledgerMetrics)
	ledgerMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	defer ledgerMetrics.Stop()

	txScope := persistence.NewGormTransactionScope(db.DB, publisher, persistence.WithAfterCommit(processor.Nudge))

	// Application services
	retry := scope.RetryPolicy{Attempts: cfg.Ledger.ConflictRetries, BaseBackoff: 10 * time.Millisecond}
	stockLedger := metalledger.NewMetalStockLedger(txScope, log, metalledger.WithRetryPolicy(retry))
	exchangeLedger := metalledger.NewExchangeMetalLedger(txScope, log, metalledger.WithRetryPolicy(retry))
	accountLedger := bankledger.NewAccountLedger(txScope, log, bankledger.WithRetryPolicy(retry))
	payments := financeapp.NewPaymentService(txScope, accountLedger, log, financeapp.WithRetryPolicy(retry))
	coordinator := manufacturingapp.NewCoordinator(txScope, stockLedger, log,
		manufacturingapp.WithStrictEventScope(cfg.Ledger.StrictEventScope),
		manufacturingapp.WithLocker(locker, cfg.Ledger.ConsumptionLockTTL),
		manufacturingapp.WithRetryPolicy(retry),
	)
	postingService := posting.NewService(txScope, stockLedger, exchangeLedger, payments, log, posting.WithRetryPolicy(retry))
	catalogStock := catalogstockapp.NewService(txScope, log)
	auditor := auditapp.NewAuditor(txScope, log)
	outboxAdmin := outboxapp.NewAdmin(outboxRepo, processor, log)

	// Sale bills reduce catalog stock asynchronously through the outbox
	eventBus.Subscribe(event.NewIdempotentHandler(
		catalogstockapp.NewStockChangeHandler(catalogStock, log),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Ledger.IdempotencyTTL, Enabled: true}),
		event.WithKeyPrefix("catalog-stock:"),
	))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if cfg.Event.ProcessorEnabled {
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	} else {
		log.Warn("Outbox processor disabled; catalog stock will not follow sale bills")
	}

	var nightly *nightlyAudit
	if cfg.Audit.ScheduleEnabled {
		var archiver *auditapp.Archiver
		if cfg.Storage.Enabled {
			objects, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
			if err != nil {
				log.Fatal("Failed to create object storage", zap.Error(err))
			}
			if err := objects.EnsureBucket(ctx); err != nil {
				log.Fatal("Failed to prepare audit bucket", zap.Error(err))
			}
			archiver = auditapp.NewArchiver(objects, cfg.Storage.Prefix, log)
		}
		nightly, err = startNightlyAudit(ctx, cfg.Audit, auditor, archiver, ledgerMetrics, telemetry.NewGormLedgerSnapshotProvider(db.DB), log)
		if err != nil {
			log.Fatal("Failed to start nightly audit", zap.Error(err))
		}
	}

	// HTTP
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		defer limiter.Stop()
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:       cfg.Telemetry.ServiceName,
		Mode:              ginMode(cfg.App.Env),
		Logger:            log,
		AllowOrigins:      cfg.HTTP.AllowOrigins,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		RateLimiter:       limiter,
		Meter:             tel.meter,
		Rejections:        ledgerMetrics,
		TracingEnabled:    cfg.Telemetry.Enabled,
		ProfilingEnabled:  cfg.Telemetry.ProfilingEnabled,
		SwaggerEnabled:    cfg.Swagger.Enabled,
		SwaggerAllowedIPs: cfg.Swagger.AllowedIPs,
	}, router.Handlers{
		Metal:         handler.NewMetalHandler(stockLedger, exchangeLedger),
		Bank:          handler.NewBankHandler(accountLedger),
		Payment:       handler.NewPaymentHandler(payments),
		Manufacturing: handler.NewManufacturingHandler(coordinator),
		Posting:       handler.NewPostingHandler(postingService),
		CatalogStock:  handler.NewCatalogStockHandler(catalogStock),
		Audit:         handler.NewAuditHandler(auditor, ledgerMetrics),
		Outbox:        handler.NewOutboxHandler(outboxAdmin),
		System:        handler.NewSystemHandler(cfg.App.Name, version, readiness),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if nightly != nil {
		nightly.stop(shutdownCtx, log)
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("Outbox processor did not stop cleanly", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus did not stop cleanly", zap.Error(err))
	}
	stop()

	log.Info("Server exited gracefully")
}

// nightlyAudit runs the ledger consistency audit for every active tenant
// once a day
type nightlyAudit struct {
	scheduler *scheduler.Scheduler
	trigger   *scheduler.CronTrigger
}

func startNightlyAudit(
	ctx context.Context,
	cfg config.AuditConfig,
	auditor *auditapp.Auditor,
	archiver *auditapp.Archiver,
	metrics *telemetry.LedgerMetrics,
	tenants scheduler.TenantProvider,
	log *zap.Logger,
) (*nightlyAudit, error) {
	log = log.Named("nightly_audit")
	exec := scheduler.ExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		report, err := auditor.Run(ctx, job.TenantID)
		if err != nil {
			return err
		}
		metrics.RecordAudit(ctx, job.TenantID, report.Findings())
		if archiver != nil {
			if _, err := archiver.Archive(ctx, report); err != nil {
				return err
			}
		}
		return nil
	})

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Workers,
		JobTimeout:        cfg.JobTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
	}, exec, log)
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}

	trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
		Hour:   cfg.Hour,
		Minute: cfg.Minute,
	}, sched, tenants, log)
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(ctx)
		return nil, err
	}
	return &nightlyAudit{scheduler: sched, trigger: trigger}, nil
}

func (n *nightlyAudit) stop(ctx context.Context, log *zap.Logger) {
	if err := n.trigger.Stop(ctx); err != nil {
		log.Error("Audit trigger did not stop cleanly", zap.Error(err))
	}
	if err := n.scheduler.Stop(ctx); err != nil {
		log.Error("Audit scheduler did not stop cleanly", zap.Error(err))
	}
}

type telemetryStack struct {
	logger   *zap.Logger
	meter    metric.Meter
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// setupTelemetry starts tracing, metrics, the log bridge and profiling. A
// failing exporter is logged and the service runs without it.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryStack {
	t := &telemetryStack{logger: log}
	tc := cfg.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     1.0,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Tracing unavailable", zap.Error(err))
	}
	t.tracer = tp

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Metrics unavailable", zap.Error(err))
	}
	t.meters = mp
	if mp != nil {
		t.meter = mp.Meter(tc.ServiceName)
	}
	if t.meter == nil {
		t.meter = otel.GetMeterProvider().Meter(tc.ServiceName)
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Log export unavailable", zap.Error(err))
	} else {
		t.logs = lp
		t.logger = lp.Bridge(log, zapcore.InfoLevel)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           tc.ProfilingEnabled,
		ServerAddress:     tc.ProfilerAddress,
		ApplicationName:   tc.ServiceName,
		ProfileContention: true,
	}, log)
	if err != nil {
		log.Warn("Profiling unavailable", zap.Error(err))
	} else {
		t.profiler = profiler
		if profiler.IsEnabled() && tp != nil {
			tp.EnableSpanProfiles()
		}
	}
	return t
}

func (t *telemetryStack) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if t.profiler != nil {
		if err := t.profiler.Stop(); err != nil {
			log.Warn("Profiler shutdown failed", zap.Error(err))
		}
	}
	if t.logs != nil {
		if err := t.logs.Shutdown(ctx); err != nil {
			log.Warn("Log provider shutdown failed", zap.Error(err))
		}
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(err))
		}
	}
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}
}

// migrateSchema applies the embedded SQL migrations on postgres and
// auto-migrates the models on sqlite
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver() == config.DriverSQLite {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migration.Embedded(migrations.FS), log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared sql.DB
	return m.Up()
}

func dbSystem(driver string) string {
	if driver == config.DriverSQLite {
		return "sqlite"
	}
	return "postgresql"
}

func ginMode(env string) string {
	switch env {
	case "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
