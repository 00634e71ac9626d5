// Package client talks to the analyzer backend over HTTP. Every call runs
// inside one circuit breaker; only read-style calls are retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const serviceName = "analyzer-api"

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// BackendClient is the single HTTP client for every analyzer backend endpoint.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewBackendClient creates a new BackendClient.
func NewBackendClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *BackendClient {
	return &BackendClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

type call struct {
	op     string
	method string
	path   string
	token  string
	body   any
	retry  bool
}

// do executes one backend call through the breaker, retrying only when the
// call allows it and the failure is transient.
func (c *BackendClient) do(ctx context.Context, cl call, out any) error {
	ctx, span := tracer.Start(ctx, "BackendClient."+cl.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("backend.path", cl.path),
		attribute.Bool("auth.bearer", cl.token != ""),
	)

	start := time.Now()
	defer func() { c.metrics.RecordRequestDuration(cl.op, time.Since(start)) }()

	cfg := c.cfg
	if !cl.retry {
		cfg = cfg.NoRetry()
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, func() error {
			return c.roundTrip(ctx, cl, out)
		})
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if resilience.IsBreakerRejection(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	c.metrics.IncrExternalError(cl.op)
	return &domain.ErrExternalService{Service: cl.op, Err: err}
}

func (c *BackendClient) roundTrip(ctx context.Context, cl call, out any) error {
	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("encode %s body: %w", cl.op, err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return resilience.Permanent(err)
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID(ctx))
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &domain.ErrHTTPStatus{
			Service:    cl.op,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
		if statusErr.Retryable() {
			return statusErr
		}
		return resilience.Permanent(statusErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s response: %w", cl.op, err))
	}
	return nil
}

// readDetail extracts the backend's {"detail": "..."} message. Validation
// failures carry a list instead; those are reduced to the first message.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// BreakerSuccess tells the circuit breaker which errors say nothing about
// backend health: client-side 4xx answers and caller cancellation.
func BreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *domain.ErrHTTPStatus
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}
