// Package offers loads the affiliate offer catalog from YAML.
package offers

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_offers.yaml
var defaultCatalog []byte

// DefaultKey is the catalog entry used for types without their own offers.
const DefaultKey = "default"

// Catalog implements port.OfferCatalog.
type Catalog struct {
	byType map[string][]domain.Offer
}

// Parse decodes a YAML catalog. Offers missing an id or url are rejected.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]domain.Offer
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse offers: %w", err)
	}
	for key, list := range raw {
		for i, o := range list {
			if o.ID == "" || o.URL == "" {
				return nil, fmt.Errorf("offer %s[%d]: id and url are required", key, i)
			}
		}
	}
	return &Catalog{byType: raw}, nil
}

// Load reads the catalog at path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read offers: %w", err)
	}
	return Parse(data)
}

// OffersFor returns the offers for docType, falling back to the default
// list. The returned slice is a copy.
func (c *Catalog) OffersFor(docType domain.DocumentType) []domain.Offer {
	list, ok := c.byType[string(docType)]
	if !ok || len(list) == 0 {
		list = c.byType[DefaultKey]
	}
	out := make([]domain.Offer, len(list))
	copy(out, list)
	return out
}
