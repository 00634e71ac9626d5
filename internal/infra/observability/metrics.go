package observability

import (
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
	classifications  *prometheus.CounterVec
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	disclaimers      prometheus.Counter
	waitlisted       prometheus.Counter
	staleResponses   prometheus.Counter
	activeWorkspaces prometheus.Gauge
	breakerState     *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intake_backend_request_duration_seconds",
				Help:    "Duration of analyzer backend calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_external_errors_total",
				Help: "Total errors from the analyzer backend.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_uploads_total",
				Help: "Uploads by outcome.",
			},
			[]string{"status"},
		),
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_classifications_total",
				Help: "Classification results by document type.",
			},
			[]string{"document_type"},
		),
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_analyses_total",
				Help: "Analyzer runs by document type and outcome.",
			},
			[]string{"document_type", "status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intake_analysis_duration_seconds",
				Help:    "Analyzer run duration by document type.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"document_type"},
		),
		disclaimers: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_disclaimer_prompts_total",
			Help: "Times the disclaimer gate prompted the user.",
		}),
		waitlisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_waitlist_submissions_total",
			Help: "Waitlist submissions for unsupported documents.",
		}),
		staleResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_stale_responses_total",
			Help: "Analyzer responses dropped because a newer run or reset superseded them.",
		}),
		activeWorkspaces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "intake_active_workspaces",
			Help: "Workspaces currently held in memory.",
		}),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "intake_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service"},
		),
	}
}

// RecordRequestDuration records the duration of a backend call.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrUpload counts an upload attempt by outcome ("ok", "rejected", "error").
func (m *Metrics) IncrUpload(status string) {
	m.uploadsTotal.WithLabelValues(status).Inc()
}

// IncrClassification counts a classification result.
func (m *Metrics) IncrClassification(docType domain.DocumentType) {
	m.classifications.WithLabelValues(string(docType)).Inc()
}

// RecordAnalysis records one analyzer run.
func (m *Metrics) RecordAnalysis(docType domain.DocumentType, status string, d time.Duration) {
	m.analysesTotal.WithLabelValues(string(docType), status).Inc()
	m.analysisDuration.WithLabelValues(string(docType)).Observe(d.Seconds())
}

// IncrDisclaimerPrompt counts a disclaimer prompt.
func (m *Metrics) IncrDisclaimerPrompt() { m.disclaimers.Inc() }

// IncrWaitlist counts a waitlist submission.
func (m *Metrics) IncrWaitlist() { m.waitlisted.Inc() }

// IncrStaleResponse counts a dropped analyzer response.
func (m *Metrics) IncrStaleResponse() { m.staleResponses.Inc() }

// SetActiveWorkspaces sets the workspace gauge.
func (m *Metrics) SetActiveWorkspaces(n int) { m.activeWorkspaces.Set(float64(n)) }

// SetBreakerState records a circuit breaker transition.
func (m *Metrics) SetBreakerState(service string, state int) {
	m.breakerState.WithLabelValues(service).Set(float64(state))
}

// GetIntakeSnapshot returns a snapshot suitable for GET /v1/metrics/intake.
func (m *Metrics) GetIntakeSnapshot() *domain.IntakeMetrics {
	snap := &domain.IntakeMetrics{
		Classifications:  map[string]int64{},
		Analyses:         map[string]int64{},
		AnalysisFailures: map[string]int64{},
		AvgLatencyMs:     map[string]float64{},
	}

	families, err := m.Registry.Gather()
	if err != nil {
		return snap
	}

	var hits, misses float64
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := labelMap(metric)
			switch mf.GetName() {
			case "intake_uploads_total":
				v := int64(metric.GetCounter().GetValue())
				snap.Uploads += v
				if labels["status"] != "ok" {
					snap.UploadFailures += v
				}
			case "intake_classifications_total":
				snap.Classifications[labels["document_type"]] += int64(metric.GetCounter().GetValue())
			case "intake_analyses_total":
				v := int64(metric.GetCounter().GetValue())
				snap.Analyses[labels["document_type"]] += v
				if labels["status"] != "ok" {
					snap.AnalysisFailures[labels["document_type"]] += v
				}
			case "intake_analysis_duration_seconds":
				h := metric.GetHistogram()
				if h.GetSampleCount() > 0 {
					snap.AvgLatencyMs[labels["document_type"]] = h.GetSampleSum() / float64(h.GetSampleCount()) * 1000
				}
			case "intake_disclaimer_prompts_total":
				snap.DisclaimersShown = int64(metric.GetCounter().GetValue())
			case "intake_waitlist_submissions_total":
				snap.Waitlisted = int64(metric.GetCounter().GetValue())
			case "intake_stale_responses_total":
				snap.StaleResponses = int64(metric.GetCounter().GetValue())
			case "intake_active_workspaces":
				snap.ActiveWorkspaces = metric.GetGauge().GetValue()
			case "intake_cache_hits_total":
				hits += metric.GetCounter().GetValue()
			case "intake_cache_misses_total":
				misses += metric.GetCounter().GetValue()
			}
		}
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}
