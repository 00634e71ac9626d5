package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ANALYZER_API_URL", "AFFILIATE_INTERVAL", "EDIT_INVALIDATES_REPORTS", "DISCLAIMER_RESETS_ON_FULL_RESET", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.AffiliateInterval != 4*time.Second {
		t.Errorf("affiliate interval = %s, want 4s", cfg.AffiliateInterval)
	}
	if !cfg.EditInvalidatesReports {
		t.Error("expected edits to invalidate reports by default")
	}
	if cfg.DisclaimerResetsOnFullReset {
		t.Error("expected disclaimer to survive full reset by default")
	}
	if cfg.DefaultProjectType != "commercial_construction" {
		t.Errorf("default project type = %q", cfg.DefaultProjectType)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANALYZER_API_URL", "http://backend:9000/")
	t.Setenv("AFFILIATE_INTERVAL", "250ms")
	t.Setenv("EDIT_INVALIDATES_REPORTS", "false")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg := config.Load()

	if cfg.AnalyzerAPIURL != "http://backend:9000" {
		t.Errorf("trailing slash not trimmed: %q", cfg.AnalyzerAPIURL)
	}
	if cfg.AffiliateInterval != 250*time.Millisecond {
		t.Errorf("affiliate interval = %s", cfg.AffiliateInterval)
	}
	if cfg.EditInvalidatesReports {
		t.Error("expected override to disable edit invalidation")
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("rate limit = %f", cfg.RateLimitRPS)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport INTAKE_A=one\nINTAKE_B=\"two # not a comment\"\nINTAKE_C=three # trailing\nINTAKE_D=keep\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INTAKE_A", "")
	t.Setenv("INTAKE_B", "")
	t.Setenv("INTAKE_C", "")
	t.Setenv("INTAKE_D", "preset")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"INTAKE_A": "one",
		"INTAKE_B": "two # not a comment",
		"INTAKE_C": "three",
		"INTAKE_D": "preset",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}
