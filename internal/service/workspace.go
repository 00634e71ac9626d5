package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxNotices = 20

// Outcome says what an analyze request turned into.
type Outcome string

const (
	OutcomeDispatched      Outcome = "dispatched"
	OutcomeNeedsDisclaimer Outcome = "needs_disclaimer"
	OutcomeUnsupported     Outcome = "unsupported"
)

// Dependencies are the collaborators shared by every workspace.
type Dependencies struct {
	OCR        port.TextExtractor
	Classifier port.Classifier
	Waitlist   port.WaitlistSubmitter
	Analyzer   port.AnalyzerCaller
	Auth       port.AuthBackend
	Unlocker   port.ReportUnlocker
	Tokens     port.TokenStore
	Offers     port.OfferCatalog
	Bulkhead   *resilience.Bulkhead
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Options are the per-deployment workspace policies.
type Options struct {
	MaxPDFPages                 int
	EditInvalidatesReports      bool
	DisclaimerResetsOnFullReset bool
	AffiliateInterval           time.Duration
	AnalyzeTimeout              time.Duration
	DefaultProjectType          string
}

// View is a point-in-time rendering of a workspace.
type View struct {
	ID         string                        `json:"id"`
	Upload     UploadState                   `json:"upload"`
	Disclaimer domain.DisclaimerSession      `json:"disclaimer"`
	Options    domain.AnalysisOptions        `json:"options"`
	AnyLoading bool                          `json:"any_loading"`
	Active     *AnalyzerView                 `json:"active"`
	Analyzers  []AnalyzerView                `json:"analyzers"`
	Affiliate  domain.AffiliateRotationState `json:"affiliate"`
	Auth       domain.AuthSession            `json:"auth"`
	Notices    []string                      `json:"notices"`
	Version    uint64                        `json:"version"`
}

// Workspace is the intake state of one front-end session: the uploaded
// document, the disclaimer gate, one analyzer per report type, the login
// session and the affiliate rotation.
type Workspace struct {
	id      string
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger

	upload     *UploadCoordinator
	gate       *DisclaimerGate
	session    *SessionCoordinator
	rotation   *AffiliateRotation
	analyzers  []AnalyzerHandle
	dispatcher *Dispatcher

	// ctx bounds background analyses; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncMu  sync.Mutex
	version atomic.Uint64

	mu       sync.Mutex
	options  domain.AnalysisOptions
	lastType domain.DocumentType
	notices  []string
}

// NewWorkspace assembles a workspace for id.
func NewWorkspace(id string, deps Dependencies, opts Options) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With(zap.String("workspace_id", id))

	w := &Workspace{
		id:      id,
		opts:    opts,
		metrics: deps.Metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		options: domain.AnalysisOptions{ProjectType: opts.DefaultProjectType}.WithDefaults(),
	}

	w.session = NewSessionCoordinator(deps.Auth, deps.Unlocker, deps.Tokens, id, logger)
	w.gate = NewDisclaimerGate(opts.DisclaimerResetsOnFullReset, deps.Metrics)
	w.rotation = NewAffiliateRotation(deps.Offers, opts.AffiliateInterval, w.touch, logger)

	w.analyzers = []AnalyzerHandle{
		newTypedAnalyzer[domain.ComplianceReport](w, deps, domain.DocCOI),
		newTypedAnalyzer[domain.LeaseReport](w, deps, domain.DocLease),
		newTypedAnalyzer[domain.GymReport](w, deps, domain.DocGym),
		newTypedAnalyzer[domain.EmploymentReport](w, deps, domain.DocEmployment),
		newTypedAnalyzer[domain.FreelancerReport](w, deps, domain.DocFreelancer),
		newTypedAnalyzer[domain.InfluencerReport](w, deps, domain.DocInfluencer),
		newTypedAnalyzer[domain.TimeshareReport](w, deps, domain.DocTimeshare),
		newTypedAnalyzer[domain.InsurancePolicyReport](w, deps, domain.DocInsurancePolicy),
	}
	w.dispatcher = NewDispatcher(w.analyzers...)

	w.upload = NewUploadCoordinator(
		deps.OCR, deps.Classifier, deps.Waitlist, deps.Bulkhead,
		w.ResetReports, w.Alert,
		UploadConfig{MaxPDFPages: opts.MaxPDFPages, EditInvalidatesReports: opts.EditInvalidatesReports},
		deps.Metrics, logger,
	)
	return w
}

func newTypedAnalyzer[T domain.Report](w *Workspace, deps Dependencies, kind domain.DocumentType) *Analyzer[T] {
	return NewAnalyzer[T](kind, deps.Analyzer, w.session.Token, w.Alert, w.syncAffiliate, deps.Metrics, w.logger)
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// Upload returns the upload coordinator.
func (w *Workspace) Upload() *UploadCoordinator { return w.upload }

// Disclaimer returns the disclaimer gate.
func (w *Workspace) Disclaimer() *DisclaimerGate { return w.gate }

// Session returns the auth/session coordinator.
func (w *Workspace) Session() *SessionCoordinator { return w.session }

// Mount restores the persisted login and runs the given warmers
// concurrently.
func (w *Workspace) Mount(ctx context.Context, warmers ...func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Workspace.Mount")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.session.Restore(gctx) })
	for _, warm := range warmers {
		g.Go(func() error { return warm(gctx) })
	}
	return g.Wait()
}

// Analyze runs the analyze action synchronously: it classifies when needed,
// opens the unsupported flow or the disclaimer prompt, and otherwise routes
// the document to its analyzer.
func (w *Workspace) Analyze(ctx context.Context) (Outcome, error) {
	return w.analyze(ctx, false)
}

// AnalyzeAsync is Analyze with the analyzer call moved to the background.
// The call outlives ctx but is bounded by the analyze timeout and Close.
func (w *Workspace) AnalyzeAsync(ctx context.Context) (Outcome, error) {
	return w.analyze(ctx, true)
}

func (w *Workspace) analyze(ctx context.Context, async bool) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "Workspace.Analyze")
	defer span.End()

	if strings.TrimSpace(w.upload.Text()) == "" {
		return "", &domain.ErrValidation{Field: "text", Message: "upload a document or paste its text first"}
	}

	cls := w.upload.Classification()
	if cls == nil {
		c := w.upload.Classify(ctx)
		cls = &c
	}
	span.SetAttributes(attribute.String("document_type", string(cls.DocumentType)))

	if !cls.Supported {
		w.upload.OpenUnsupported(*cls)
		return OutcomeUnsupported, nil
	}
	if !w.gate.Request(cls.DocumentType) {
		return OutcomeNeedsDisclaimer, nil
	}
	return OutcomeDispatched, w.dispatch(ctx, cls.DocumentType, async)
}

// ConfirmDisclaimer accepts the disclaimer and dispatches the buffered
// request.
func (w *Workspace) ConfirmDisclaimer(ctx context.Context) (domain.DocumentType, error) {
	return w.confirm(ctx, false)
}

// ConfirmDisclaimerAsync is ConfirmDisclaimer with a background dispatch.
func (w *Workspace) ConfirmDisclaimerAsync(ctx context.Context) (domain.DocumentType, error) {
	return w.confirm(ctx, true)
}

func (w *Workspace) confirm(ctx context.Context, async bool) (domain.DocumentType, error) {
	ctx, span := tracer.Start(ctx, "Workspace.ConfirmDisclaimer")
	defer span.End()

	docType, err := w.gate.Confirm()
	if err != nil {
		return "", err
	}
	return docType, w.dispatch(ctx, docType, async)
}

func (w *Workspace) dispatch(ctx context.Context, docType domain.DocumentType, async bool) error {
	rc := RouteContext{Text: w.upload.Text(), Options: w.Options()}

	w.mu.Lock()
	w.lastType = docType
	w.mu.Unlock()

	if !async {
		return w.dispatcher.Route(ctx, docType, rc)
	}

	// Detach from the request but keep its trace.
	bg := trace.ContextWithSpanContext(w.ctx, trace.SpanContextFromContext(ctx))
	cancel := context.CancelFunc(func() {})
	if w.opts.AnalyzeTimeout > 0 {
		bg, cancel = context.WithTimeout(bg, w.opts.AnalyzeTimeout)
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		w.routeBackground(bg, docType, rc)
	}()
	return nil
}

func (w *Workspace) routeBackground(ctx context.Context, docType domain.DocumentType, rc RouteContext) {
	if err := w.dispatcher.Route(ctx, docType, rc); err != nil {
		w.logger.Debug("background analysis ended with error",
			zap.String("document_type", string(docType)),
			zap.Error(err),
		)
	}
}

// Reset clears the document, every report, the unsupported flow and any
// pending disclaimer prompt. The login and chosen options survive.
func (w *Workspace) Reset() {
	w.upload.Reset()
	w.ResetReports()
	w.gate.Reset(true)

	w.mu.Lock()
	w.lastType = ""
	w.mu.Unlock()

	w.syncAffiliate()
	w.logger.Info("workspace reset")
}

// ResetReports clears every analyzer.
func (w *Workspace) ResetReports() {
	for _, a := range w.analyzers {
		a.Reset()
	}
	w.touch()
}

// ResetReport clears the analyzer for docType.
func (w *Workspace) ResetReport(docType domain.DocumentType) error {
	a, err := w.analyzer(docType)
	if err != nil {
		return err
	}
	a.Reset()
	w.touch()
	return nil
}

// SetTab switches the view of docType's report.
func (w *Workspace) SetTab(docType domain.DocumentType, tab domain.Tab) error {
	a, err := w.analyzer(docType)
	if err != nil {
		return err
	}
	a.SetTab(tab)
	w.touch()
	return nil
}

func (w *Workspace) analyzer(docType domain.DocumentType) (AnalyzerHandle, error) {
	for _, a := range w.analyzers {
		if a.Kind() == docType {
			return a, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "analyzer", ID: string(docType)}
}

// AnyLoading reports whether any analyzer has a request in flight.
func (w *Workspace) AnyLoading() bool {
	for _, a := range w.analyzers {
		if a.Loading() {
			return true
		}
	}
	return false
}

// syncAffiliate aligns the rotation with AnyLoading. Serialized so two
// concurrent transitions cannot apply out of order.
func (w *Workspace) syncAffiliate() {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	w.mu.Lock()
	docType := w.lastType
	w.mu.Unlock()

	w.rotation.Sync(w.AnyLoading(), docType)
	w.touch()
}

// SetOptions replaces the analysis supplements; empty presets fall back to
// their defaults.
func (w *Workspace) SetOptions(o domain.AnalysisOptions) {
	if o.ProjectType == "" {
		o.ProjectType = w.opts.DefaultProjectType
	}
	w.mu.Lock()
	w.options = o.WithDefaults()
	w.mu.Unlock()
	w.touch()
}

// Options returns the current analysis supplements.
func (w *Workspace) Options() domain.AnalysisOptions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.options
}

// Alert queues a user-visible notice. The oldest notice is dropped once the
// queue is full.
func (w *Workspace) Alert(msg string) {
	w.mu.Lock()
	w.notices = append(w.notices, msg)
	if len(w.notices) > maxNotices {
		w.notices = w.notices[len(w.notices)-maxNotices:]
	}
	w.mu.Unlock()
	w.touch()
}

// DrainNotices returns and clears the queued notices.
func (w *Workspace) DrainNotices() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notices
	w.notices = nil
	return out
}

// View renders the workspace. Notices are left queued.
func (w *Workspace) View() View {
	v := View{
		ID:         w.id,
		Upload:     w.upload.Snapshot(),
		Disclaimer: w.gate.Snapshot(),
		Options:    w.Options(),
		Affiliate:  w.rotation.Snapshot(),
		Auth:       w.session.Snapshot(),
		Version:    w.version.Load(),
	}

	w.mu.Lock()
	lastType := w.lastType
	v.Notices = append([]string(nil), w.notices...)
	w.mu.Unlock()

	activeType := lastType
	if c := v.Upload.Document.Classification; c != nil && c.Supported {
		activeType = c.DocumentType
	}

	v.Analyzers = make([]AnalyzerView, 0, len(w.analyzers))
	for _, a := range w.analyzers {
		av := a.View()
		v.AnyLoading = v.AnyLoading || av.Loading
		v.Analyzers = append(v.Analyzers, av)
	}
	for i := range v.Analyzers {
		if v.Analyzers[i].DocumentType == activeType {
			active := v.Analyzers[i]
			v.Active = &active
		}
	}
	return v
}

// Version increases on every observable change.
func (w *Workspace) Version() uint64 { return w.version.Load() }

func (w *Workspace) touch() { w.version.Add(1) }

// Close abandons in-flight work and stops the rotation. The workspace must
// not be used afterwards.
func (w *Workspace) Close() {
	w.cancel()
	for _, a := range w.analyzers {
		a.Reset()
	}
	w.wg.Wait()
	w.rotation.Stop()
	w.logger.Debug("workspace closed")
}
