package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.uber.org/zap"
)

const (
	projectTypesKey = "project_types"
	statesKey       = "states"
)

// ReferenceService serves the COI presets and state rules, cached for the
// configured TTL.
type ReferenceService struct {
	fetcher      port.ReferenceFetcher
	projectTypes port.Cache[[]domain.ProjectType]
	states       port.Cache[[]domain.StateRules]
	details      port.Cache[domain.StateDetail]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewReferenceService creates a ReferenceService.
func NewReferenceService(
	fetcher port.ReferenceFetcher,
	projectTypes port.Cache[[]domain.ProjectType],
	states port.Cache[[]domain.StateRules],
	details port.Cache[domain.StateDetail],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReferenceService {
	return &ReferenceService{
		fetcher:      fetcher,
		projectTypes: projectTypes,
		states:       states,
		details:      details,
		metrics:      metrics,
		logger:       logger,
	}
}

// ProjectTypes returns the COI requirement presets.
func (s *ReferenceService) ProjectTypes(ctx context.Context) ([]domain.ProjectType, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.ProjectTypes")
	defer span.End()

	if cached, ok := s.projectTypes.Get(projectTypesKey); ok {
		s.metrics.IncrCacheHit("project_types")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("project_types")

	types, err := s.fetcher.ProjectTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("get project types: %w", err)
	}
	s.projectTypes.Set(projectTypesKey, types)
	return types, nil
}

// States returns the per-state rule summaries.
func (s *ReferenceService) States(ctx context.Context) ([]domain.StateRules, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.States")
	defer span.End()

	if cached, ok := s.states.Get(statesKey); ok {
		s.metrics.IncrCacheHit("states")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("states")

	states, err := s.fetcher.States(ctx)
	if err != nil {
		return nil, fmt.Errorf("get states: %w", err)
	}
	s.states.Set(statesKey, states)
	return states, nil
}

// State returns the detailed rules for a two-letter state code, matched
// case-insensitively.
func (s *ReferenceService) State(ctx context.Context, code string) (*domain.StateDetail, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.State")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || strings.Trim(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "must be a two-letter state code"}
	}

	if cached, ok := s.details.Get(code); ok {
		s.metrics.IncrCacheHit("state")
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("state")

	detail, err := s.fetcher.State(ctx, code)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			s.logger.Warn("state lookup failed", zap.String("code", code), zap.Error(err))
		}
		return nil, fmt.Errorf("get state %s: %w", code, err)
	}
	s.details.Set(code, *detail)
	return detail, nil
}

// Warm loads both lists into the cache. Both fetches are attempted; the
// returned error joins whichever failed. Nothing is cached for a failed list,
// so the next request retries it.
func (s *ReferenceService) Warm(ctx context.Context) error {
	_, ptErr := s.ProjectTypes(ctx)
	_, stErr := s.States(ctx)
	return errors.Join(ptErr, stErr)
}
