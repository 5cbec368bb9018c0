// Package cleanup prunes per-incident repository clones from the workspace.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/github"
	"github.com/codeready-toolchain/responder/pkg/metrics"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/store"
)

// IncidentReader loads the incident a clone belongs to.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*models.Incident, error)
}

// Workspace lists and removes incident clones.
type Workspace interface {
	Clones() ([]github.Clone, error)
	Remove(dir string) error
}

// Service periodically removes clones whose incident finished more than
// WorkspaceRetention ago, and clones whose incident no longer exists.
//
// Clones of incidents still in flight are never touched. All operations are
// idempotent and safe to run from multiple pods sharing a workspace volume.
type Service struct {
	config    *config.RetentionConfig
	incidents IncidentReader
	workspace Workspace
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, incidents IncidentReader, workspace Workspace) *Service {
	return &Service{
		config:    cfg,
		incidents: incidents,
		workspace: workspace,
		now:       time.Now,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"workspace_retention", s.config.WorkspaceRetention,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.PruneWorkspace(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PruneWorkspace(ctx)
		}
	}
}

// PruneWorkspace runs one sweep and returns the number of clones removed.
func (s *Service) PruneWorkspace(ctx context.Context) int {
	clones, err := s.workspace.Clones()
	if err != nil {
		slog.Error("Retention: listing workspace failed", "error", err)
		return 0
	}

	cutoff := s.now().Add(-s.config.WorkspaceRetention)
	removed := 0
	for _, c := range clones {
		if ctx.Err() != nil {
			break
		}
		if !s.expired(ctx, c, cutoff) {
			continue
		}
		if err := s.workspace.Remove(c.Dir); err != nil {
			slog.Error("Retention: removing clone failed", "dir", c.Dir, "error", err)
			continue
		}
		removed++
		metrics.WorkspaceClonesRemoved.Inc()
	}

	if removed > 0 {
		slog.Info("Retention: removed incident clones", "count", removed)
	}
	return removed
}

func (s *Service) expired(ctx context.Context, c github.Clone, cutoff time.Time) bool {
	inc, err := s.incidents.Get(ctx, c.IncidentID)
	if errors.Is(err, store.ErrNotFound) {
		return c.ModTime.Before(cutoff)
	}
	if err != nil {
		slog.Warn("Retention: incident lookup failed, keeping clone",
			"incident_id", c.IncidentID, "error", err)
		return false
	}
	if !inc.Status.IsTerminal() {
		return false
	}
	finished := inc.UpdatedAt
	if inc.CompletedAt != nil {
		finished = *inc.CompletedAt
	}
	return finished.Before(cutoff)
}
