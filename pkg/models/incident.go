// Package models holds the domain types shared across the responder packages.
package models

import (
	"time"
)

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

// Lifecycle states, in pipeline order.
const (
	StatusReceived      IncidentStatus = "received"
	StatusFetchingLogs  IncidentStatus = "fetching_logs"
	StatusDiagnosing    IncidentStatus = "diagnosing"
	StatusGeneratingFix IncidentStatus = "generating_fix"
	StatusCreatingPR    IncidentStatus = "creating_pr"
	StatusNotifying     IncidentStatus = "notifying"
	StatusCompleted     IncidentStatus = "completed"
	StatusFailed        IncidentStatus = "failed"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []IncidentStatus{
	StatusReceived,
	StatusFetchingLogs,
	StatusDiagnosing,
	StatusGeneratingFix,
	StatusCreatingPR,
	StatusNotifying,
	StatusCompleted,
	StatusFailed,
}

// forward holds the success-path edges. GENERATING_FIX and CREATING_PR can
// be skipped; NOTIFYING cannot.
var forward = map[IncidentStatus][]IncidentStatus{
	StatusReceived:      {StatusFetchingLogs},
	StatusFetchingLogs:  {StatusDiagnosing},
	StatusDiagnosing:    {StatusGeneratingFix, StatusNotifying},
	StatusGeneratingFix: {StatusCreatingPR, StatusNotifying},
	StatusCreatingPR:    {StatusNotifying},
	StatusNotifying:     {StatusCompleted},
}

// IsValid reports whether s is a known status.
func (s IncidentStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is COMPLETED or FAILED.
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label returns a human readable phase name.
func (s IncidentStatus) Label() string {
	switch s {
	case StatusReceived:
		return "Received"
	case StatusFetchingLogs:
		return "Fetching logs"
	case StatusDiagnosing:
		return "Diagnosing"
	case StatusGeneratingFix:
		return "Generating fix"
	case StatusCreatingPR:
		return "Creating pull request"
	case StatusNotifying:
		return "Notifying"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// FAILED is reachable from every non-terminal state. Retries use CanReopen.
func CanTransition(from, to IncidentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanReopen reports whether a redelivered job may restart an incident in
// the given state. COMPLETED is absorbing.
func CanReopen(from IncidentStatus) bool {
	return from != StatusCompleted
}

// Urgency is the alert urgency reported by the pager.
type Urgency string

// Urgency values.
const (
	UrgencyHigh Urgency = "high"
	UrgencyLow  Urgency = "low"
)

// NormalizeUrgency maps anything but "low" to high.
func NormalizeUrgency(s string) Urgency {
	if Urgency(s) == UrgencyLow {
		return UrgencyLow
	}
	return UrgencyHigh
}

// PullRequestRef identifies an opened review request.
type PullRequestRef struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
}

// Incident is one tracked occurrence of an inbound alert.
type Incident struct {
	ID          string           `json:"id"`
	ExternalID  string           `json:"external_id"`
	Title       string           `json:"title"`
	Urgency     Urgency          `json:"urgency"`
	ServiceName string           `json:"service_name"`
	ServiceID   string           `json:"service_id"`
	Status      IncidentStatus   `json:"status"`
	Alert       AlertDescriptor  `json:"alert"`
	ChatChannel string           `json:"chat_channel,omitempty"`
	ChatHandle  string           `json:"chat_handle,omitempty"`
	Diagnosis   *DiagnosisResult `json:"diagnosis,omitempty"`
	PullRequest *PullRequestRef  `json:"pull_request,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IncidentEvent is one persisted lifecycle transition.
type IncidentEvent struct {
	ID         int64          `json:"id"`
	IncidentID string         `json:"incident_id"`
	FromStatus IncidentStatus `json:"from_status"`
	ToStatus   IncidentStatus `json:"to_status"`
	Detail     string         `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IncidentFilters contains filtering options for listing incidents.
type IncidentFilters struct {
	Status      string `json:"status,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// IncidentListResponse contains a page of incidents.
type IncidentListResponse struct {
	Incidents  []*Incident `json:"incidents"`
	TotalCount int         `json:"total_count"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}
