package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
)

func TestMetrics_IntakeSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrUpload("ok")
	m.IncrUpload("ok")
	m.IncrUpload("error")
	m.IncrClassification(domain.DocLease)
	m.RecordAnalysis(domain.DocLease, "ok", 2*time.Second)
	m.RecordAnalysis(domain.DocLease, "error", 4*time.Second)
	m.IncrDisclaimerPrompt()
	m.IncrWaitlist()
	m.IncrStaleResponse()
	m.SetActiveWorkspaces(3)
	m.IncrCacheHit("reference")
	m.IncrCacheMiss("reference")

	snap := m.GetIntakeSnapshot()

	if snap.Uploads != 3 || snap.UploadFailures != 1 {
		t.Errorf("uploads = %d/%d, want 3/1", snap.Uploads, snap.UploadFailures)
	}
	if snap.Classifications["lease"] != 1 {
		t.Errorf("expected 1 lease classification, got %d", snap.Classifications["lease"])
	}
	if snap.Analyses["lease"] != 2 || snap.AnalysisFailures["lease"] != 1 {
		t.Errorf("analyses = %d/%d, want 2/1", snap.Analyses["lease"], snap.AnalysisFailures["lease"])
	}
	if got := snap.AvgLatencyMs["lease"]; got < 2999 || got > 3001 {
		t.Errorf("avg latency = %f, want ~3000", got)
	}
	if snap.DisclaimersShown != 1 || snap.Waitlisted != 1 || snap.StaleResponses != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ActiveWorkspaces != 3 {
		t.Errorf("active workspaces = %f, want 3", snap.ActiveWorkspaces)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate = %f, want 0.5", snap.CacheHitRate)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	snap := observability.NewMetrics().GetIntakeSnapshot()
	if snap.Uploads != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}
