package client

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

// ProjectTypes fetches the COI presets, sorted by id.
func (c *BackendClient) ProjectTypes(ctx context.Context) ([]domain.ProjectType, error) {
	var resp map[string]domain.ProjectType
	if err := c.do(ctx, call{op: "project_types", method: http.MethodGet, path: "/api/project-types", retry: true}, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ProjectType, 0, len(resp))
	for id, pt := range resp {
		pt.ID = id
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// States fetches the per-state rule summaries.
func (c *BackendClient) States(ctx context.Context) ([]domain.StateRules, error) {
	var resp []domain.StateRules
	if err := c.do(ctx, call{op: "states", method: http.MethodGet, path: "/api/states", retry: true}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// State fetches the detailed rules for one state. An unknown code is an
// ErrNotFound.
func (c *BackendClient) State(ctx context.Context, code string) (*domain.StateDetail, error) {
	var resp domain.StateDetail
	err := c.do(ctx, call{op: "state", method: http.MethodGet, path: "/api/state/" + url.PathEscape(code), retry: true}, &resp)
	if domain.StatusCodeOf(err) == http.StatusNotFound {
		return nil, &domain.ErrNotFound{Resource: "state", ID: code}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
