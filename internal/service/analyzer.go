package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// AnalyzeConfig describes one analyzer run.
type AnalyzeConfig struct {
	Endpoint     string
	Body         func() any
	ErrorMessage string
}

// AnalyzerView is the type-erased rendering of one analyzer.
type AnalyzerView struct {
	DocumentType domain.DocumentType `json:"document_type"`
	DisplayName  string              `json:"display_name"`
	Report       domain.Report       `json:"report"`
	Letter       string              `json:"letter,omitempty"`
	ActiveTab    domain.Tab          `json:"active_tab"`
	Loading      bool                `json:"loading"`
}

// AnalyzerHandle is what the dispatcher and workspace need from an analyzer
// without knowing its report type.
type AnalyzerHandle interface {
	Kind() domain.DocumentType
	Analyze(ctx context.Context, cfg AnalyzeConfig) error
	Reset()
	Loading() bool
	SetTab(tab domain.Tab)
	View() AnalyzerView
}

// Analyzer holds the report/tab/loading triple for one report type. Every
// run takes a generation number; Reset and newer runs supersede older ones,
// whose responses are then dropped.
type Analyzer[T domain.Report] struct {
	kind     domain.DocumentType
	caller   port.AnalyzerCaller
	token    func() string
	alert    func(string)
	onChange func()
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	report  *T
	tab     domain.Tab
	loading bool
	gen     uint64
}

// NewAnalyzer creates an analyzer for kind. token supplies the optional
// bearer token; alert receives user-visible failure messages; onChange is
// called after every loading transition.
func NewAnalyzer[T domain.Report](
	kind domain.DocumentType,
	caller port.AnalyzerCaller,
	token func() string,
	alert func(string),
	onChange func(),
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Analyzer[T] {
	return &Analyzer[T]{
		kind:     kind,
		caller:   caller,
		token:    token,
		alert:    alert,
		onChange: onChange,
		metrics:  metrics,
		logger:   logger.With(zap.String("document_type", string(kind))),
		tab:      domain.TabReport,
	}
}

// Kind returns the document type this analyzer serves.
func (a *Analyzer[T]) Kind() domain.DocumentType { return a.kind }

// Analyze clears the current report, posts the request and stores the
// decoded report. Failures alert cfg.ErrorMessage and leave the report nil.
// Loading is false again on every exit path unless a newer run took over.
func (a *Analyzer[T]) Analyze(ctx context.Context, cfg AnalyzeConfig) error {
	ctx, span := tracer.Start(ctx, "Analyzer.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_type", string(a.kind)),
		attribute.String("endpoint", cfg.Endpoint),
	)

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.report = nil
	a.loading = true
	a.mu.Unlock()
	a.changed()

	settled := false
	defer func() {
		if settled {
			return
		}
		a.mu.Lock()
		if a.gen == gen {
			a.loading = false
		}
		a.mu.Unlock()
		a.changed()
	}()

	var body any
	if cfg.Body != nil {
		body = cfg.Body()
	}

	start := time.Now()
	var out T
	err := a.caller.CallAnalyzer(ctx, cfg.Endpoint, body, a.bearer(), &out)

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		settled = true
		a.metrics.IncrStaleResponse()
		a.logger.Debug("dropping superseded analyzer response", zap.Uint64("generation", gen))
		return nil
	}
	a.loading = false
	if err == nil {
		a.report = &out
		a.tab = domain.TabReport
	}
	a.mu.Unlock()
	settled = true
	a.changed()

	if err != nil {
		a.metrics.RecordAnalysis(a.kind, "error", time.Since(start))
		a.logger.Warn("analysis failed", zap.String("endpoint", cfg.Endpoint), zap.Error(err))
		span.RecordError(err)
		a.alert(cfg.ErrorMessage)
		return err
	}
	a.metrics.RecordAnalysis(a.kind, "ok", time.Since(start))
	return nil
}

// Reset clears the report and tab and abandons any in-flight run. Idempotent.
func (a *Analyzer[T]) Reset() {
	a.mu.Lock()
	a.gen++
	wasLoading := a.loading
	a.report = nil
	a.tab = domain.TabReport
	a.loading = false
	a.mu.Unlock()

	if wasLoading {
		a.changed()
	}
}

// Loading reports whether a run is in flight.
func (a *Analyzer[T]) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// SetTab switches between the report and its letter.
func (a *Analyzer[T]) SetTab(tab domain.Tab) {
	a.mu.Lock()
	a.tab = tab
	a.mu.Unlock()
}

// Snapshot returns a copy of the analyzer state.
func (a *Analyzer[T]) Snapshot() domain.AnalyzerState[T] {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := domain.AnalyzerState[T]{ActiveTab: a.tab, Loading: a.loading}
	if a.report != nil {
		r := *a.report
		st.Report = &r
	}
	return st
}

// View returns the type-erased snapshot.
func (a *Analyzer[T]) View() AnalyzerView {
	st := a.Snapshot()
	v := AnalyzerView{
		DocumentType: a.kind,
		DisplayName:  a.kind.DisplayName(),
		ActiveTab:    st.ActiveTab,
		Loading:      st.Loading,
	}
	if st.Report != nil {
		v.Report = *st.Report
		v.Letter = (*st.Report).Letter()
	}
	return v
}

func (a *Analyzer[T]) bearer() string {
	if a.token == nil {
		return ""
	}
	return a.token()
}

func (a *Analyzer[T]) changed() {
	if a.onChange != nil {
		a.onChange()
	}
}
