package service

import (
	"context"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// WorkspaceRegistry holds the live workspaces. Idle workspaces expire after
// the TTL and are closed; a later request for the same id rebuilds one and
// restores its login from durable storage.
type WorkspaceRegistry struct {
	deps    Dependencies
	opts    Options
	warmers []func(context.Context) error

	mounts     singleflight.Group // one rebuild per id at a time
	workspaces *cache.InMemory[*Workspace]
}

// NewWorkspaceRegistry creates a registry. warmers run on every mount.
func NewWorkspaceRegistry(deps Dependencies, opts Options, ttl time.Duration, warmers ...func(context.Context) error) *WorkspaceRegistry {
	r := &WorkspaceRegistry{deps: deps, opts: opts, warmers: warmers}
	r.workspaces = cache.New[*Workspace](ttl, cache.WithEvict(r.evicted))
	return r
}

func (r *WorkspaceRegistry) evicted(id string, w *Workspace) {
	w.Close()
	r.deps.Metrics.SetActiveWorkspaces(r.workspaces.Len())
	r.deps.Logger.Info("workspace evicted", zap.String("workspace_id", id))
}

// Create starts a workspace under a fresh id.
func (r *WorkspaceRegistry) Create(ctx context.Context) (*Workspace, error) {
	return r.mount(ctx, uuid.NewString())
}

// Resolve returns the workspace for id, rebuilding it when it expired.
// Concurrent requests for the same expired id share one rebuild; mounts of
// other ids are not held up by it.
func (r *WorkspaceRegistry) Resolve(ctx context.Context, id string) (*Workspace, error) {
	if w, ok := r.workspaces.Touch(id); ok {
		return w, nil
	}

	v, err, _ := r.mounts.Do(id, func() (any, error) {
		if w, ok := r.workspaces.Touch(id); ok {
			return w, nil
		}
		return r.mount(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

func (r *WorkspaceRegistry) mount(ctx context.Context, id string) (*Workspace, error) {
	w := NewWorkspace(id, r.deps, r.opts)
	if err := w.Mount(ctx, r.warmers...); err != nil {
		w.Close()
		return nil, err
	}
	r.workspaces.Set(id, w)
	r.deps.Metrics.SetActiveWorkspaces(r.workspaces.Len())
	r.deps.Logger.Info("workspace mounted", zap.String("workspace_id", id))
	return w, nil
}

// Len returns the number of live workspaces.
func (r *WorkspaceRegistry) Len() int { return r.workspaces.Len() }

// Close closes every workspace.
func (r *WorkspaceRegistry) Close() { r.workspaces.Close() }
