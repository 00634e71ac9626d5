package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/handler"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/cache"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/client"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/offers"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/tokenstore"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"go.uber.org/zap"
)

const leaseReport = `{
	"overall_risk": "medium",
	"risk_score": 55,
	"red_flags": [{"severity": "high", "title": "No renter's insurance clause", "description": "d", "remediation": "Ask for one"}],
	"summary": "Standard residential lease.",
	"lease_type": "residential",
	"insurance_requirements": [],
	"missing_protections": ["waiver of subrogation"],
	"negotiation_letter": "Dear landlord"
}`

// fakeAnalyzerAPI answers the backend endpoints one intake run touches.
func fakeAnalyzerAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/classify", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"document_type":"lease","confidence":0.93,"description":"Residential lease","supported":true}`))
	})
	mux.HandleFunc("POST /api/analyze-lease", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(leaseReport))
	})
	mux.HandleFunc("GET /api/states", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"code":"CA","wc_required":true,"risk_level":"high"}]`))
	})
	mux.HandleFunc("GET /api/state/{code}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("code") != "AZ" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"State not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state":"AZ","anti_indemnity":{"type":"Broad","voids_ai_for_negligence":true,"risk_level":"CRITICAL"},"auto_liability":{"combined_format":"25/50/15"}}`))
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"token":"user-tok","user":{"email":"a@b.co","credits":0}}`))
	})
	mux.HandleFunc("GET /api/user/history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"uploads":[]}`))
	})
	mux.HandleFunc("POST /api/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Must be logged in to purchase"}`))
			return
		}
		var req domain.CheckoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(domain.CheckoutResponse{
			CheckoutURL: "https://pay.example/" + req.DocumentHash,
			SessionID:   "cs_" + req.DocumentHash,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testAPI struct {
	router http.Handler
}

func newTestAPI(t *testing.T, cfg handler.RouterConfig) *testAPI {
	t.Helper()
	srv := fakeAnalyzerAPI(t)
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	cb := resilience.NewCircuitBreaker("test", resilience.WithSuccessCheck(client.BreakerSuccess))
	backend := client.NewBackendClient(srv.Client(), srv.URL,
		cb, resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}, metrics)

	db, err := tokenstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open token db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := tokenstore.New(db, "test-secret")
	if err != nil {
		t.Fatalf("token store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalog, err := offers.Load("")
	if err != nil {
		t.Fatalf("offers: %v", err)
	}

	deps := service.Dependencies{
		OCR:        backend,
		Classifier: backend,
		Waitlist:   backend,
		Analyzer:   backend,
		Auth:       backend,
		Unlocker:   backend,
		Tokens:     store,
		Offers:     catalog,
		Bulkhead:   resilience.NewBulkhead(2),
		Metrics:    metrics,
		Logger:     logger,
	}
	opts := service.Options{
		MaxPDFPages:            50,
		EditInvalidatesReports: true,
		AffiliateInterval:      time.Hour,
		AnalyzeTimeout:         5 * time.Second,
	}
	registry := service.NewWorkspaceRegistry(deps, opts, time.Hour)
	t.Cleanup(registry.Close)

	tokens, err := service.NewWorkspaceTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	ref := service.NewReferenceService(backend,
		cache.New[[]domain.ProjectType](time.Minute),
		cache.New[[]domain.StateRules](time.Minute),
		cache.New[domain.StateDetail](time.Minute),
		metrics, logger)

	return &testAPI{router: handler.NewRouter(registry, tokens, ref, metrics, cfg, logger)}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(handler.WorkspaceTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T, token, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/workspace/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(handler.WorkspaceTokenHeader, token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createWorkspace(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/workspaces", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create workspace: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || rec.Header().Get(handler.WorkspaceTokenHeader) != resp.Token {
		t.Fatalf("expected matching token in body and header")
	}
	return resp.Token
}

type viewBody struct {
	ID     string `json:"id"`
	Upload struct {
		Document struct {
			RawText        string `json:"raw_text"`
			Classification *struct {
				DocumentType string `json:"document_type"`
				Supported    bool   `json:"supported"`
			} `json:"classification"`
		} `json:"document"`
	} `json:"upload"`
	Disclaimer struct {
		State      string `json:"state"`
		Accepted   bool   `json:"accepted"`
		CanConfirm bool   `json:"can_confirm"`
	} `json:"disclaimer"`
	Active *struct {
		DocumentType string         `json:"document_type"`
		Report       map[string]any `json:"report"`
		Letter       string         `json:"letter"`
	} `json:"active"`
	Notices []string `json:"notices"`
}

type actionBody struct {
	Outcome   string   `json:"outcome"`
	Error     string   `json:"error"`
	Workspace viewBody `json:"workspace"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestWorkspace_MissingToken(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})

	rec := api.do(t, http.MethodGet, "/v1/workspace/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestWorkspace_InvalidToken(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})

	rec := api.do(t, http.MethodGet, "/v1/workspace/", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestWorkspace_UploadAnalyzeThroughDisclaimer(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{MaxUploadBytes: 1 << 20})
	token := api.createWorkspace(t)

	rec := api.upload(t, token, "lease.txt", []byte("This lease is made between the landlord and the tenant."))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	uploaded := decode[actionBody](t, rec)
	cls := uploaded.Workspace.Upload.Document.Classification
	if cls == nil || cls.DocumentType != "lease" || !cls.Supported {
		t.Fatalf("expected supported lease classification, got %+v", cls)
	}

	rec = api.do(t, http.MethodPost, "/v1/workspace/analyze", token, nil)
	if got := decode[actionBody](t, rec); got.Outcome != "needs_disclaimer" || got.Workspace.Disclaimer.State != "prompting" {
		t.Fatalf("expected disclaimer prompt, got outcome=%q state=%q", got.Outcome, got.Workspace.Disclaimer.State)
	}

	rec = api.do(t, http.MethodPut, "/v1/workspace/disclaimer", token, map[string]string{"input": "Not Legal Advice"})
	if got := decode[viewBody](t, rec); !got.Disclaimer.CanConfirm {
		t.Fatal("expected the typed phrase to enable confirmation")
	}

	rec = api.do(t, http.MethodPost, "/v1/workspace/disclaimer/confirm", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[actionBody](t, rec)
	if got.Error != "" {
		t.Fatalf("unexpected error: %s", got.Error)
	}
	if !got.Workspace.Disclaimer.Accepted {
		t.Error("expected disclaimer to be accepted")
	}
	active := got.Workspace.Active
	if active == nil || active.DocumentType != "lease" {
		t.Fatalf("expected active lease analyzer, got %+v", active)
	}
	if active.Report["overall_risk"] != "medium" || active.Letter != "Dear landlord" {
		t.Errorf("unexpected report: %+v letter=%q", active.Report, active.Letter)
	}

	// The disclaimer latch holds for the rest of the workspace.
	rec = api.do(t, http.MethodPost, "/v1/workspace/analyze", token, nil)
	if got := decode[actionBody](t, rec); got.Outcome != "dispatched" {
		t.Errorf("expected direct dispatch after acceptance, got %q", got.Outcome)
	}
}

func TestWorkspace_AnalyzeWithoutText(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)

	rec := api.do(t, http.MethodPost, "/v1/workspace/analyze", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWorkspace_UploadTooLarge(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{MaxUploadBytes: 1024})
	token := api.createWorkspace(t)

	rec := api.upload(t, token, "big.txt", bytes.Repeat([]byte("a"), 8192))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWorkspace_UploadNoFile(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "nothing attached")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/workspace/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(handler.WorkspaceTokenHeader, token)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWorkspace_SetTabUnknownType(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)

	rec := api.do(t, http.MethodPut, "/v1/workspace/reports/bogus/tab", token, map[string]string{"tab": "letter"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPut, "/v1/workspace/reports/lease/tab", token, map[string]string{"tab": "sideways"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown tab, got %d", rec.Code)
	}
}

func TestWorkspace_UnlockRequiresLogin(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)

	rec := api.do(t, http.MethodPost, "/v1/workspace/unlock", token, map[string]string{"document_hash": "abc"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/v1/workspace/", token, nil)
	if !strings.Contains(rec.Body.String(), `"modal_open":true`) {
		t.Errorf("expected the auth modal to open: %s", rec.Body.String())
	}
}

func TestWorkspace_UnknownFieldsRejected(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)

	rec := api.do(t, http.MethodPut, "/v1/workspace/text", token, map[string]string{"txt": "typo"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateWorkspace_RateLimited(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1, RateLimitTTL: time.Minute})

	api.createWorkspace(t)
	rec := api.do(t, http.MethodPost, "/v1/workspaces", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestReferenceStates(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})

	rec := api.do(t, http.MethodGet, "/v1/reference/states", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	states := decode[[]domain.StateRules](t, rec)
	if len(states) != 1 || states[0].Code != "CA" {
		t.Errorf("unexpected states: %+v", states)
	}
}

func TestReferenceStateDetail(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})

	rec := api.do(t, http.MethodGet, "/v1/reference/states/az", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	detail := decode[domain.StateDetail](t, rec)
	if detail.State != "AZ" || !detail.AntiIndemnity.VoidsAIForNegligence || detail.AutoLiability.CombinedFormat != "25/50/15" {
		t.Errorf("unexpected detail: %+v", detail)
	}

	if rec := api.do(t, http.MethodGet, "/v1/reference/states/ZZ", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown state, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/v1/reference/states/ARIZONA", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed code, got %d", rec.Code)
	}
}

func TestWorkspace_Checkout(t *testing.T) {
	api := newTestAPI(t, handler.RouterConfig{})
	token := api.createWorkspace(t)
	body := map[string]string{
		"document_hash": "abc",
		"success_url":   "https://app.example/ok",
		"cancel_url":    "https://app.example/cancel",
	}

	rec := api.do(t, http.MethodPost, "/v1/workspace/checkout", token, body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous checkout: expected 401, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodGet, "/v1/workspace/", token, nil)
	if !strings.Contains(rec.Body.String(), `"modal_open":true`) {
		t.Errorf("expected the auth modal to open: %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/v1/workspace/auth/login", token, domain.Credentials{Email: "a@b.co", Password: "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/v1/workspace/checkout", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.CheckoutResponse](t, rec)
	if got.CheckoutURL != "https://pay.example/abc" || got.SessionID != "cs_abc" {
		t.Errorf("unexpected checkout response: %+v", got)
	}

	rec = api.do(t, http.MethodPost, "/v1/workspace/checkout", token, map[string]string{"document_hash": "abc"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing urls: expected 400, got %d", rec.Code)
	}
}
