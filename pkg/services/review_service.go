package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// IncidentReader loads incidents.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*models.Incident, error)
}

// PullRequestReviewer performs the review actions on a hosted pull request.
type PullRequestReviewer interface {
	MarkReady(ctx context.Context, owner, repo string, number int) error
	ClosePR(ctx context.Context, owner, repo string, number int) error
}

// ReviewService applies human approve/reject decisions to an incident's
// draft pull request. Used by both the chat buttons and the HTTP API.
type ReviewService struct {
	incidents IncidentReader
	services  ServiceLookup
	prs       PullRequestReviewer
}

// NewReviewService creates a new ReviewService.
func NewReviewService(incidents IncidentReader, services ServiceLookup, prs PullRequestReviewer) *ReviewService {
	if incidents == nil || services == nil || prs == nil {
		panic("NewReviewService: all dependencies must be set")
	}
	return &ReviewService{incidents: incidents, services: services, prs: prs}
}

// ApproveFix marks the incident's draft pull request ready for review.
func (s *ReviewService) ApproveFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error) {
	inc, svc, err := s.resolve(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.prs.MarkReady(ctx, svc.RepoOwner, svc.RepoName, inc.PullRequest.Number); err != nil {
		return nil, fmt.Errorf("failed to mark pull request ready: %w", err)
	}
	slog.Info("Fix approved", "incident_id", incidentID, "pr_number", inc.PullRequest.Number)
	return inc.PullRequest, nil
}

// RejectFix closes the incident's pull request.
func (s *ReviewService) RejectFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error) {
	inc, svc, err := s.resolve(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.prs.ClosePR(ctx, svc.RepoOwner, svc.RepoName, inc.PullRequest.Number); err != nil {
		return nil, fmt.Errorf("failed to close pull request: %w", err)
	}
	slog.Info("Fix rejected", "incident_id", incidentID, "pr_number", inc.PullRequest.Number)
	return inc.PullRequest, nil
}

func (s *ReviewService) resolve(ctx context.Context, incidentID string) (*models.Incident, *models.ServiceConfig, error) {
	inc, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, nil, fmt.Errorf("incident %s: %w", incidentID, err)
	}
	if inc.PullRequest == nil || inc.PullRequest.Number == 0 {
		return nil, nil, fmt.Errorf("incident %s: %w", incidentID, ErrNoPullRequest)
	}
	svc, err := s.services.GetByExternalID(ctx, inc.ServiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("service config for %s: %w", inc.ServiceName, err)
	}
	return inc, svc, nil
}
