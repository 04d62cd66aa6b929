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
	billingapp "github.com/invoiced/backend/internal/application/billing"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/shared/valueobject"
	"github.com/invoiced/backend/internal/infrastructure/auth"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/invoiced/backend/internal/infrastructure/event"
	"github.com/invoiced/backend/internal/infrastructure/lock"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/infrastructure/persistence"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"github.com/invoiced/backend/internal/infrastructure/telemetry"
	"github.com/invoiced/backend/internal/interfaces/http/handler"
	"github.com/invoiced/backend/internal/interfaces/http/middleware"
	"github.com/invoiced/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	meters, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meters.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down metrics", zap.Error(err))
		}
	}()
	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracing", zap.Error(err))
		}
	}()
	numberingMetrics, err := telemetry.NewNumberingMetrics(meters)
	if err != nil {
		log.Fatal("Failed to register numbering metrics", zap.Error(err))
	}

	guard := tenant.NewGuard()
	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level, guard)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")
	if err := telemetry.RegisterDBTracing(db.DB, tracer, telemetry.DBTracingConfig{
		Enabled: tracer.IsEnabled() && cfg.Telemetry.DBTracing,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	locker, err := lock.NewFactory(cfg.Redis,
		lock.WithLogger(log),
		lock.WithBackend(cfg.Numbering.Backend),
		lock.WithInMemoryFallback(cfg.Numbering.AllowInMemoryFallback),
	).CreateLocker()
	if err != nil {
		log.Fatal("Failed to create numbering locker", zap.Error(err))
	}
	defer func() {
		if err := locker.Close(); err != nil {
			log.Error("Error closing locker", zap.Error(err))
		}
	}()

	gen := numbering.NewGenerator(
		persistence.NewGormSequenceStore(db.DB, guard),
		locker,
		numbering.WithLockConfig(shared.LockConfig{TTL: cfg.Numbering.LockTTL, Wait: cfg.Numbering.LockWait}),
		numbering.WithLogger(log),
		numbering.WithObserver(numberingMetrics),
	)

	key, err := cfg.Crypto.Key()
	if err != nil {
		log.Fatal("Invalid crypto configuration", zap.Error(err))
	}
	sealer, err := valueobject.NewSecretSealer(key)
	if err != nil {
		log.Fatal("Failed to create secret sealer", zap.Error(err))
	}

	bus := event.NewBus(log)
	serializer := event.NewEventSerializer()
	event.RegisterBillingEvents(serializer)
	bus.Subscribe(event.NewAuditHandler(serializer, log))

	billing := billingapp.NewService(billingapp.Repositories{
		Customers:   persistence.NewGormCustomerRepository(db.DB, guard),
		Invoices:    persistence.NewGormInvoiceRepository(db.DB, guard),
		CreditNotes: persistence.NewGormCreditNoteRepository(db.DB, guard),
		Estimates:   persistence.NewGormEstimateRepository(db.DB, guard),
	}, sealer, billingapp.PipelineConfig{
		Guard:          guard,
		Numbering:      gen,
		Events:         event.NewRequestPublisher(bus),
		MaxAutoRetries: cfg.Numbering.MaxAutoRetries,
		Logger:         log,
	})

	checks := map[string]handler.Pinger{"database": db}
	if rl, ok := locker.(*lock.RedisLocker); ok {
		checks["redis"] = rl
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.Dependencies{
		Billing: billing,
		Tokens:  auth.NewJWTService(cfg.JWT),
		Events:  bus,
		Checks:  checks,
		HTTP:    cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracer.IsEnabled(),
			Provider:    tracer.TraceProvider(),
		},
		Version: version,
		Logger:  log,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	if cfg.HTTP.AllowTenantHeader {
		log.Warn("X-Tenant-ID header accepted without a token; do not enable in production")
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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}
