package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type analyzerCall struct {
	Endpoint string
	Body     map[string]any
	Token    string
}

// fakeBackend implements every backend port with canned answers.
type fakeBackend struct {
	mu sync.Mutex

	ocrText   string
	ocrErr    error
	ocrCalls  int
	ocrByName map[string]string        // per-file answers, overriding ocrText
	ocrGates  map[string]chan struct{} // per-file gates, closed to release

	classification *domain.Classification
	classifyErr    error
	classifyCalls  int
	classifyGate   chan struct{}

	waitlistErr error
	waitlisted  []domain.WaitlistRequest

	responses   map[string]string
	analyzeErr  error
	analyzeGate chan struct{}
	calls       []analyzerCall

	authResp    *domain.AuthResponse
	authErr     error
	me          *domain.MeResponse
	meErr       error
	history     []domain.HistoryEntry
	historyErr  error
	logoutCalls int

	unlockResp *domain.UnlockResponse
	unlockErr  error

	checkoutResp *domain.CheckoutResponse
	checkoutErr  error
	checkouts    []domain.CheckoutRequest
}

func (f *fakeBackend) ExtractText(ctx context.Context, req *domain.OCRRequest) (string, error) {
	f.mu.Lock()
	f.ocrCalls++
	text, err := f.ocrText, f.ocrErr
	if t, ok := f.ocrByName[req.FileName]; ok {
		text = t
	}
	gate := f.ocrGates[req.FileName]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

func (f *fakeBackend) ocrCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ocrCalls
}

func (f *fakeBackend) Classify(ctx context.Context, _ string) (*domain.Classification, error) {
	f.mu.Lock()
	f.classifyCalls++
	gate := f.classifyGate
	cls, err := f.classification, f.classifyErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if cls == nil {
		return nil, err
	}
	c := *cls
	return &c, err
}

func (f *fakeBackend) JoinWaitlist(_ context.Context, req *domain.WaitlistRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitlisted = append(f.waitlisted, *req)
	return f.waitlistErr
}

func (f *fakeBackend) CallAnalyzer(ctx context.Context, endpoint string, body any, token string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	f.calls = append(f.calls, analyzerCall{Endpoint: endpoint, Body: decoded, Token: token})
	gate := f.analyzeGate
	resp, analyzeErr := f.responses[endpoint], f.analyzeErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if analyzeErr != nil {
		return analyzeErr
	}
	if resp == "" {
		resp = "{}"
	}
	return json.Unmarshal([]byte(resp), out)
}

func (f *fakeBackend) Signup(_ context.Context, _ domain.Credentials) (*domain.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authResp, f.authErr
}

func (f *fakeBackend) Login(_ context.Context, _ domain.Credentials) (*domain.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authResp, f.authErr
}

func (f *fakeBackend) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return errors.New("logout endpoint down")
}

func (f *fakeBackend) Me(_ context.Context, _ string) (*domain.MeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, f.meErr
}

func (f *fakeBackend) History(_ context.Context, _ string) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, f.historyErr
}

func (f *fakeBackend) UnlockReport(_ context.Context, _, _ string) (*domain.UnlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlockResp, f.unlockErr
}

func (f *fakeBackend) CheckUnlock(_ context.Context, token, _ string) (*domain.UnlockStatus, error) {
	return &domain.UnlockStatus{Authenticated: token != ""}, nil
}

func (f *fakeBackend) CreateCheckout(_ context.Context, _ string, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	return f.checkoutResp, f.checkoutErr
}

func (f *fakeBackend) analyzerCalls() []analyzerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyzerCall(nil), f.calls...)
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type memTokenStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{data: make(map[string]string)}
}

func (s *memTokenStore) Get(_ context.Context, ns, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.data[ns+"/"+key]
	return v, ok, nil
}

func (s *memTokenStore) Set(_ context.Context, ns, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ns+"/"+key] = value
	return s.err
}

func (s *memTokenStore) Delete(_ context.Context, ns, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, ns+"/"+key)
	return s.err
}

func (s *memTokenStore) value(ns, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[ns+"/"+key]
	return v, ok
}

type staticOffers map[domain.DocumentType][]domain.Offer

func (s staticOffers) OffersFor(docType domain.DocumentType) []domain.Offer {
	if list, ok := s[docType]; ok {
		return list
	}
	return s["default"]
}

// --- Helpers ---

func testOffers() staticOffers {
	return staticOffers{
		"default": {
			{ID: "d1", Title: "Default one", URL: "https://example.com/d1"},
			{ID: "d2", Title: "Default two", URL: "https://example.com/d2"},
		},
		domain.DocCOI: {
			{ID: "c1", Title: "COI one", URL: "https://example.com/c1"},
			{ID: "c2", Title: "COI two", URL: "https://example.com/c2"},
		},
	}
}

func supported(t domain.DocumentType) *domain.Classification {
	return &domain.Classification{DocumentType: t, Confidence: 0.9, Supported: true}
}

func newDeps(b *fakeBackend, store *memTokenStore) service.Dependencies {
	return service.Dependencies{
		OCR:        b,
		Classifier: b,
		Waitlist:   b,
		Analyzer:   b,
		Auth:       b,
		Unlocker:   b,
		Tokens:     store,
		Offers:     testOffers(),
		Bulkhead:   resilience.NewBulkhead(2),
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
	}
}

func defaultOptions() service.Options {
	return service.Options{
		MaxPDFPages:            60,
		EditInvalidatesReports: true,
		AffiliateInterval:      time.Hour,
		AnalyzeTimeout:         5 * time.Second,
		DefaultProjectType:     domain.DefaultProjectType,
	}
}

func newTestWorkspace(t *testing.T, b *fakeBackend) *service.Workspace {
	t.Helper()
	w := service.NewWorkspace("ws-test", newDeps(b, newMemTokenStore()), defaultOptions())
	t.Cleanup(w.Close)
	return w
}

func textFile(name, body string) domain.FileUpload {
	return domain.FileUpload{Name: name, MIMEType: "text/plain", Data: []byte(body)}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
