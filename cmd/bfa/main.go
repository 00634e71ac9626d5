package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/config"
	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/handler"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/cache"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/client"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/offers"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/tokenstore"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// tokenRetention bounds how long an unused auth token stays on disk.
const tokenRetention = 30 * 24 * time.Hour

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("analyzer_api_url", cfg.AnalyzerAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("analyze_timeout", cfg.AnalyzeTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("workspace_ttl", cfg.WorkspaceTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_pdf_pages", cfg.MaxPDFPages),
		zap.Bool("edit_invalidates_reports", cfg.EditInvalidatesReports),
		zap.Bool("disclaimer_resets_on_full_reset", cfg.DisclaimerResetsOnFullReset),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "doc-intake-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("analyzer-api",
		resilience.WithSuccessCheck(client.BreakerSuccess),
		resilience.WithStateChange(func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}),
	)
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	// Analyzer calls are the slowest; the per-call context enforces the
	// shorter budgets.
	httpClient := &http.Client{Timeout: cfg.AnalyzeTimeout}
	backend := client.NewBackendClient(httpClient, cfg.AnalyzerAPIURL, cb, resilienceCfg, metrics)

	// --- Token storage ---
	db, err := tokenstore.Open(cfg.TokenDBPath)
	if err != nil {
		logger.Fatal("failed to open token db", zap.Error(err))
	}
	defer db.Close()

	tokens, err := tokenstore.New(db, cfg.TokenStoreKey)
	if err != nil {
		logger.Fatal("failed to init token store", zap.Error(err))
	}
	if cfg.TokenStoreKey == "" {
		logger.Warn("TOKEN_STORE_KEY not set, stored logins will not survive a restart")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := tokens.Migrate(startCtx); err != nil {
		logger.Fatal("failed to migrate token db", zap.Error(err))
	}
	if n, err := tokens.PurgeOlderThan(startCtx, time.Now().Add(-tokenRetention)); err != nil {
		logger.Warn("token purge failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("purged stale tokens", zap.Int64("count", n))
	}

	// --- Affiliate offers ---
	catalog, err := offers.Load(cfg.OffersFile)
	if err != nil {
		logger.Fatal("failed to load offers", zap.Error(err))
	}

	// --- Services ---
	ref := service.NewReferenceService(
		backend,
		cache.New[[]domain.ProjectType](cfg.CacheTTL),
		cache.New[[]domain.StateRules](cfg.CacheTTL),
		cache.New[domain.StateDetail](cfg.CacheTTL),
		metrics,
		logger,
	)
	if err := ref.Warm(startCtx); err != nil {
		logger.Warn("reference data not warmed, fetching on demand", zap.Error(err))
	}
	startCancel()

	// A cold reference cache must not fail a workspace mount.
	warmReference := func(ctx context.Context) error {
		if err := ref.Warm(ctx); err != nil {
			logger.Debug("reference warm on mount failed", zap.Error(err))
		}
		return nil
	}

	deps := service.Dependencies{
		OCR:        backend,
		Classifier: backend,
		Waitlist:   backend,
		Analyzer:   backend,
		Auth:       backend,
		Unlocker:   backend,
		Tokens:     tokens,
		Offers:     catalog,
		Bulkhead:   bulkhead,
		Metrics:    metrics,
		Logger:     logger,
	}
	opts := service.Options{
		MaxPDFPages:                 cfg.MaxPDFPages,
		EditInvalidatesReports:      cfg.EditInvalidatesReports,
		DisclaimerResetsOnFullReset: cfg.DisclaimerResetsOnFullReset,
		AffiliateInterval:           cfg.AffiliateInterval,
		AnalyzeTimeout:              cfg.AnalyzeTimeout,
		DefaultProjectType:          cfg.DefaultProjectType,
	}
	registry := service.NewWorkspaceRegistry(deps, opts, cfg.WorkspaceTTL, warmReference)
	defer registry.Close()

	workspaceTokens, err := service.NewWorkspaceTokens(cfg.WorkspaceSecret, cfg.WorkspaceTTL*4)
	if err != nil {
		logger.Fatal("failed to init workspace tokens", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(registry, workspaceTokens, ref, metrics, handler.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RateLimitTTL:   cfg.WorkspaceTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.AnalyzeTimeout + cfg.HTTPTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
