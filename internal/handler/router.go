package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RateLimitTTL   time.Duration
	MaxUploadBytes int64
}

// NewRouter creates the HTTP router with all routes and middleware.
// A nil registry serves the operational endpoints only.
func NewRouter(
	registry *service.WorkspaceRegistry,
	tokens *service.WorkspaceTokens,
	ref *service.ReferenceService,
	metrics *observability.Metrics,
	cfg RouterConfig,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, routePattern))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", WorkspaceTokenHeader},
		ExposedHeaders:   []string{WorkspaceTokenHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ref))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if registry == nil || tokens == nil {
		return r
	}

	limit := RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitTTL)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/intake", intakeMetricsHandler(metrics))

		// Reference data
		if ref != nil {
			r.Get("/reference/project-types", projectTypesHandler(ref, logger))
			r.Get("/reference/states", statesHandler(ref, logger))
			r.Get("/reference/states/{code}", stateHandler(ref, logger))
		}

		// Workspace lifecycle
		r.With(limit).Post("/workspaces", createWorkspaceHandler(registry, tokens, logger))

		r.Route("/workspace", func(r chi.Router) {
			r.Use(WorkspaceMiddleware(registry, tokens, logger))

			r.Get("/", getWorkspaceHandler())
			r.Post("/reset", resetWorkspaceHandler())
			r.Put("/options", setOptionsHandler(logger))

			// Document intake
			r.With(limit).Post("/upload", uploadHandler(cfg.MaxUploadBytes, logger))
			r.Put("/text", editTextHandler(logger))

			// Analysis
			r.With(limit).Post("/analyze", analyzeHandler(logger))
			r.Put("/disclaimer", disclaimerInputHandler(logger))
			r.With(limit).Post("/disclaimer/confirm", disclaimerConfirmHandler(logger))
			r.Post("/disclaimer/cancel", disclaimerCancelHandler())
			r.Put("/reports/{type}/tab", setTabHandler(logger))
			r.Delete("/reports/{type}", resetReportHandler(logger))

			// Unsupported documents
			r.Put("/waitlist/email", waitlistEmailHandler(logger))
			r.Post("/waitlist", waitlistSubmitHandler(logger))
			r.Delete("/unsupported", dismissUnsupportedHandler())

			// Account
			r.Post("/auth/signup", signupHandler(logger))
			r.Post("/auth/login", loginHandler(logger))
			r.Post("/auth/logout", logoutHandler())
			r.Put("/auth/modal", authModalHandler(logger))
			r.Get("/history", historyHandler())
			r.Post("/unlock", unlockHandler(logger))
			r.With(limit).Post("/checkout", checkoutHandler(logger))
			r.Get("/unlock/{hash}", checkUnlockHandler(logger))
		})
	})

	return r
}

func routePattern(r *http.Request) []zap.Field {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return []zap.Field{zap.String("route", rc.RoutePattern())}
	}
	return nil
}

// ============================================================
// Metrics & Health
// ============================================================

func healthzHandler(ref *service.ReferenceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "doc-intake-bfa", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if ref != nil {
			start := time.Now()
			_, err := ref.States(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "analyzer-api", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func intakeMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetIntakeSnapshot())
	}
}
