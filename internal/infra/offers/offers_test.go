package offers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/offers"
)

func TestLoad_BuiltinCatalog(t *testing.T) {
	c, err := offers.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dt := range domain.AnalyzableTypes {
		if len(c.OffersFor(dt)) == 0 {
			t.Errorf("no offers for %s", dt)
		}
	}
	if len(c.OffersFor(domain.DocUnknown)) == 0 {
		t.Error("expected default offers for unknown type")
	}
}

func TestOffersFor_FallsBackToDefault(t *testing.T) {
	c, err := offers.Parse([]byte(`
default:
  - {id: d1, title: D, url: https://d}
gym:
  - {id: g1, title: G, url: https://g}
  - {id: g2, title: G2, url: https://g2}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.OffersFor(domain.DocGym); len(got) != 2 || got[0].ID != "g1" {
		t.Errorf("gym offers = %+v", got)
	}
	if got := c.OffersFor(domain.DocLease); len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("lease should fall back to default, got %+v", got)
	}

	got := c.OffersFor(domain.DocGym)
	got[0].ID = "mutated"
	if c.OffersFor(domain.DocGym)[0].ID != "g1" {
		t.Error("OffersFor must return a copy")
	}
}

func TestParse_RejectsIncompleteOffer(t *testing.T) {
	if _, err := offers.Parse([]byte("default:\n  - {title: no id}\n")); err == nil {
		t.Error("expected error for offer without id")
	}
	if _, err := offers.Parse([]byte("::: not yaml")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offers.yaml")
	if err := os.WriteFile(path, []byte("default:\n  - {id: x, url: https://x}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := offers.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.OffersFor(domain.DocCOI); len(got) != 1 || got[0].ID != "x" {
		t.Errorf("unexpected offers: %+v", got)
	}

	if _, err := offers.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
