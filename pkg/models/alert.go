package models

import "time"

// AlertDescriptor is the normalized form of an inbound trigger event.
type AlertDescriptor struct {
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Urgency     Urgency   `json:"urgency"`
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	CreatedAt   time.Time `json:"created_at"`
	HTMLURL     string    `json:"html_url"`
	Details     string    `json:"details,omitempty"`
}

// Job is the queue envelope for one incident.
type Job struct {
	IncidentID string          `json:"incident_id"`
	Alert      AlertDescriptor `json:"alert"`
	Service    ServiceConfig   `json:"service"`
}
