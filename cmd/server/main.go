package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	invoicingapp "github.com/leadcrm/backend/internal/application/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/leadcrm/backend/internal/infrastructure/cache"
	"github.com/leadcrm/backend/internal/infrastructure/config"
	"github.com/leadcrm/backend/internal/infrastructure/event"
	"github.com/leadcrm/backend/internal/infrastructure/logger"
	"github.com/leadcrm/backend/internal/infrastructure/migration"
	"github.com/leadcrm/backend/internal/infrastructure/persistence"
	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
	"github.com/leadcrm/backend/internal/interfaces/http/handler"
	"github.com/leadcrm/backend/internal/interfaces/http/middleware"
	"github.com/leadcrm/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// @title           Billing Service API
// @version         1.0
// @description     Invoice generation and payment reconciliation.
// @BasePath        /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logTimeFormat,
	}
	// bootstrap logger until the OTLP log bridge exists
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	tel, err := setupTelemetry(ctx, cfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: tel.logs,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	meter := tel.metrics.Meter("billing-service")
	billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	// In-process event bus: audit log and metrics for every billing event
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditLogHandler(log, event.NewBillingEventSerializer()), event.BillingEventTypes...)
	bus.Subscribe(event.NewMetricsHandler(billingMetrics), event.BillingEventTypes...)

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	receiptRepo := persistence.NewGormReceiptRepository(db.DB)
	catalog := persistence.NewGormCatalog(db.DB)

	service := invoicingapp.NewReconciliationService(
		invoiceRepo, receiptRepo, catalog, catalog, catalog,
		invoicingapp.WithEventPublisher(bus),
		invoicingapp.WithMetrics(billingMetrics),
		invoicingapp.WithLogger(log),
		invoicingapp.WithCurrency(valueobject.Currency(cfg.Billing.Currency)),
	)

	var idempotencyStore shared.IdempotencyStore
	engineCfg := router.EngineConfig{
		HTTP:            cfg.HTTP,
		ServiceName:     cfg.Telemetry.ServiceName,
		TracingEnabled:  cfg.Telemetry.Enabled,
		Logger:          log,
		Meter:           meter,
		IdempotencyTTL:  cfg.Idempotency.TTL,
		Swagger:         middleware.SwaggerConfig{Enabled: cfg.Swagger.Enabled, AllowedIPs: cfg.Swagger.AllowedIPs},
		ProfilingLabels: cfg.Telemetry.ProfilingEnabled,
		Invoicing:       handler.NewInvoicingHandler(service),
		System:          handler.NewSystemHandler(cfg.App.Name, version, sqlDB),
	}
	if cfg.Idempotency.Enabled {
		factory := cache.NewIdempotencyStoreFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(!cfg.IsProduction()),
		)
		store, err := factory.CreateStore(ctx, cfg.Idempotency.Backend)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		engineCfg.IdempotencyStore = store
		idempotencyStore = store
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
		engineCfg.RateLimiter = limiter
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to configure validator", zap.Error(err))
	}
	engine, err := router.NewEngine(engineCfg)
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

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if idempotencyStore != nil {
		if err := idempotencyStore.Close(); err != nil {
			log.Warn("Error closing idempotency store", zap.Error(err))
		}
	}
	tel.shutdown(shutdownCtx, log)

	log.Info("Server exited gracefully")
}

// openDatabase connects with the zap gorm logger and otelgorm tracing, then
// applies the schema when database.auto_migrate is set.
func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithPlugin(tracing.RegisterOtelGorm),
	)
	if err != nil {
		return nil, err
	}
	if !cfg.Database.AutoMigrate {
		return db, nil
	}

	if err := migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies the embedded SQL migrations on postgres and gorm AutoMigrate on sqlite
func migrate(ctx context.Context, db *persistence.Database, log *zap.Logger) error {
	if db.Driver() == config.DriverSQLite {
		log.Info("Applying sqlite schema")
		return db.AutoMigrate(ctx)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	// the migrator is not closed: closing it would close the shared *sql.DB
	m, err := migration.New(sqlDB, "", log)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Schema up to date", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

// telemetryProviders holds the OTLP providers; each is a no-op when disabled
type telemetryProviders struct {
	traces   *telemetry.TracerProvider
	metrics  *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryProviders, error) {
	tc := cfg.Telemetry

	traces, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogExportEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           tc.ProfilingEnabled,
		ServerAddress:     tc.ProfilerAddress,
		ApplicationName:   tc.ServiceName,
		BasicAuthUser:     tc.ProfilerAuthUser,
		BasicAuthPassword: tc.ProfilerAuthToken,
		LockProfiling:     true,
	}, log)
	if err != nil {
		return nil, err
	}
	if profiler.IsEnabled() {
		traces.EnableSpanProfiles()
	}

	return &telemetryProviders{traces: traces, metrics: metrics, logs: logs, profiler: profiler}, nil
}

// shutdown flushes metrics and logs before traces so their export spans are kept
func (t *telemetryProviders) shutdown(ctx context.Context, log *zap.Logger) {
	if err := t.metrics.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
	if err := t.traces.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := t.profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
}
