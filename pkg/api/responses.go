package api

import (
	"github.com/codeready-toolchain/responder/pkg/database"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/queue"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IncidentDetailResponse is returned by GET /api/v1/incidents/:id.
type IncidentDetailResponse struct {
	*models.Incident
	Events []models.IncidentEvent `json:"events"`
}

// ReviewResponse is returned by the approve and reject endpoints.
type ReviewResponse struct {
	IncidentID  string                 `json:"incident_id"`
	Action      string                 `json:"action"`
	PullRequest *models.PullRequestRef `json:"pull_request"`
}

// ServiceListResponse is returned by GET /api/v1/services.
type ServiceListResponse struct {
	Services []*models.ServiceConfig `json:"services"`
}

// HealthCheck is the result of one component check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Checks     map[string]HealthCheck `json:"checks"`
	Database   *database.HealthStatus `json:"database,omitempty"`
	WorkerPool *queue.PoolHealth      `json:"worker_pool,omitempty"`
}
