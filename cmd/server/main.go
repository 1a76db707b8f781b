package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixlens/fixlens/internal"
	"github.com/fixlens/fixlens/internal/ai"
	"github.com/fixlens/fixlens/internal/ai/anthropic"
	"github.com/fixlens/fixlens/internal/ai/mock"
	"github.com/fixlens/fixlens/internal/billing"
	"github.com/fixlens/fixlens/internal/handler"
	"github.com/fixlens/fixlens/internal/jobs"
	"github.com/fixlens/fixlens/internal/metrics"
	"github.com/fixlens/fixlens/internal/middleware"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/fixlens/fixlens/internal/storage"
	"github.com/fixlens/fixlens/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize object storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize AI provider
	provider, err := newAIProvider(cfg, repo, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	// Initialize billing gateway
	gateway := billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
		ProMonthlyPriceID:      cfg.StripeProMonthlyPriceID,
		BusinessMonthlyPriceID: cfg.StripeBusinessMonthlyPriceID,
	})

	// Initialize services
	userService := service.NewUserService(repo, logger)
	entitlementService := service.NewEntitlementService(repo, logger)
	killSwitchService := service.NewKillSwitchService(repo, logger)
	propertyService := service.NewPropertyService(db, repo, entitlementService, logger)
	diagnosticService := service.NewDiagnosticService(
		db,
		repo,
		entitlementService,
		killSwitchService,
		provider,
		store,
		service.NewImagingPreparer(),
		logger,
	)
	billingService := service.NewBillingService(db, repo, gateway, userService, service.BillingConfig{
		CheckoutSuccessURL: cfg.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.CheckoutCancelURL,
	}, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, cfg.AdminEmails, logger, isSecure)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, logger, isSecure)
	diagnosticHandler := handler.NewDiagnosticHandler(diagnosticService, entitlementService, logger)
	propertyHandler := handler.NewPropertyHandler(propertyService, logger)
	mediaHandler := handler.NewMediaHandler(store, logger)
	billingHandler := handler.NewBillingHandler(billingService, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, logger)
	adminHandler := handler.NewAdminHandler(killSwitchService, repo, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth via METRICS_USERNAME / METRICS_PASSWORD)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Middleware stacks
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireAdmin := middleware.Stack(authMw.WithUser, authMw.RequireAdmin)

	// Auth routes (public, rate limited)
	authHandler.RegisterRoutes(mux, authLimiter.LimitLogin, authLimiter.LimitRegister)
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(authHandler.Me)))

	// Stripe webhooks (public - authenticated by signature)
	webhookHandler.RegisterRoutes(mux)

	// Authenticated API routes
	diagnosticHandler.RegisterRoutes(mux, requireUser)
	propertyHandler.RegisterRoutes(mux, requireUser)
	mediaHandler.RegisterRoutes(mux, requireUser)
	billingHandler.RegisterRoutes(mux, requireUser)

	// Admin routes
	adminHandler.RegisterRoutes(mux, requireAdmin)

	// Outer middleware: request logging, metrics, security headers
	root := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
	)(mux)

	// ==========================================================================
	// Start background worker
	// ==========================================================================

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		pool, err := worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}

		pool.Register(jobs.NewDowngradeSubscriptionsHandler(repo, billingService, logger))
		pool.Register(jobs.NewCleanupSessionsHandler(repo, userService, logger))

		pool.Start(workerCtx)
		defer pool.Stop()

		// Seed the self-rescheduling sweeps. Duplicate pending jobs from a
		// previous run are harmless: each completed run schedules exactly one
		// successor, and the sweeps are idempotent.
		if _, err := worker.EnqueueDowngradeSubscriptions(ctx, repo, "startup"); err != nil {
			logger.Warn("failed to seed downgrade sweep", "error", err)
		}
		if _, err := worker.EnqueueCleanupSessions(ctx, repo, "startup"); err != nil {
			logger.Warn("failed to seed session cleanup", "error", err)
		}

		logger.Info("Worker started", "concurrency", workerCfg.Concurrency)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage selects the object storage backend from configuration.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.BaseURL + "/api/media",
		}, logger)
	}
}

// newAIProvider selects the diagnosis provider from configuration.
func newAIProvider(cfg *internal.Config, repo *repository.Queries, logger *slog.Logger) (ai.Provider, error) {
	if cfg.AIProvider == "anthropic" {
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, repo, logger)
	}
	return mock.New(logger), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
