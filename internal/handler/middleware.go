package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/cache"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const workspaceKey contextKey = "workspace"

// WorkspaceTokenHeader carries the signed workspace token.
const WorkspaceTokenHeader = "X-Workspace-Token"

// WorkspaceMiddleware validates the workspace token and injects the
// workspace into the request context. Expired workspaces are rebuilt.
func WorkspaceMiddleware(registry *service.WorkspaceRegistry, tokens *service.WorkspaceTokens, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(WorkspaceTokenHeader)
			if raw == "" {
				logger.Warn("workspace: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "workspace token not provided")
				return
			}

			id, err := tokens.Parse(raw)
			if err != nil {
				logger.Warn("workspace: invalid token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ws, err := registry.Resolve(r.Context(), id)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), workspaceKey, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkspaceFromContext returns the workspace injected by WorkspaceMiddleware.
func WorkspaceFromContext(ctx context.Context) *service.Workspace {
	ws, _ := ctx.Value(workspaceKey).(*service.Workspace)
	return ws
}

// RateLimitMiddleware applies a token bucket per workspace. Limiters idle
// for longer than ttl are dropped.
func RateLimitMiddleware(rps float64, burst int, ttl time.Duration) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	limiters := cache.New[*rate.Limiter](ttl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if ws := WorkspaceFromContext(r.Context()); ws != nil {
				key = ws.ID()
			}

			lim, ok := limiters.Touch(key)
			if !ok {
				lim = rate.NewLimiter(rate.Limit(rps), burst)
				limiters.Set(key, lim)
			}

			res := lim.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
