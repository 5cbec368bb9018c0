package models

import "time"

// LogSource selects the log-retrieval backend for a service.
type LogSource string

// Supported log sources.
const (
	LogSourceMock       LogSource = "mock"
	LogSourceDatadog    LogSource = "datadog"
	LogSourceCloudWatch LogSource = "cloudwatch"
)

// ServiceConfig routes alerts of one monitored service to its repository
// and chat channel.
type ServiceConfig struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ExternalServiceID string    `json:"external_service_id"`
	RepoOwner         string    `json:"repo_owner"`
	RepoName          string    `json:"repo_name"`
	DefaultBranch     string    `json:"default_branch"`
	ChatChannel       string    `json:"chat_channel"`
	LogSource         LogSource `json:"log_source"`
	LogQuery          string    `json:"log_query,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RepoFullName returns "owner/name".
func (s ServiceConfig) RepoFullName() string {
	return s.RepoOwner + "/" + s.RepoName
}

// CreateServiceRequest contains fields for registering a monitored service.
type CreateServiceRequest struct {
	Name              string `json:"name" validate:"required,max=255"`
	ExternalServiceID string `json:"external_service_id" validate:"required,max=255"`
	RepoOwner         string `json:"repo_owner" validate:"required,max=255"`
	RepoName          string `json:"repo_name" validate:"required,max=255"`
	DefaultBranch     string `json:"default_branch" validate:"omitempty,max=255"`
	ChatChannel       string `json:"chat_channel" validate:"required,max=255"`
	LogSource         string `json:"log_source" validate:"omitempty,oneof=mock datadog cloudwatch"`
	LogQuery          string `json:"log_query" validate:"omitempty,max=2048"`
}

// UpdateServiceRequest contains the mutable fields of a service. Nil fields
// are left unchanged.
type UpdateServiceRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	RepoOwner     *string `json:"repo_owner" validate:"omitempty,min=1,max=255"`
	RepoName      *string `json:"repo_name" validate:"omitempty,min=1,max=255"`
	DefaultBranch *string `json:"default_branch" validate:"omitempty,min=1,max=255"`
	ChatChannel   *string `json:"chat_channel" validate:"omitempty,min=1,max=255"`
	LogSource     *string `json:"log_source" validate:"omitempty,oneof=mock datadog cloudwatch"`
	LogQuery      *string `json:"log_query" validate:"omitempty,max=2048"`
	Active        *bool   `json:"active"`
}
