// Package pagerduty decodes PagerDuty v3 webhook deliveries into alert
// descriptors and verifies their signatures.
package pagerduty

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// EventTypeTriggered is the only event type that starts an incident.
const EventTypeTriggered = "incident.triggered"

const (
	defaultTitle   = "Untitled incident"
	unknownService = "unknown"
)

type envelope struct {
	Event *event `json:"event"`
}

type event struct {
	ID        string     `json:"id"`
	EventType string     `json:"event_type"`
	Data      *eventData `json:"data"`
}

type eventData struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Urgency   string        `json:"urgency"`
	Status    string        `json:"status"`
	HTMLURL   string        `json:"html_url"`
	CreatedAt string        `json:"created_at"`
	Service   *reference    `json:"service"`
	Body      *incidentBody `json:"body"`
}

type reference struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type incidentBody struct {
	Details json.RawMessage `json:"details"`
}

// ParseEvent decodes a webhook body. Non-trigger events return
// ErrNotTriggerEvent and undecodable bodies ErrMalformedEvent; neither is a
// reason for the sender to retry.
func ParseEvent(body []byte, now time.Time) (*models.AlertDescriptor, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == nil {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedEvent)
	}
	if env.Event.EventType != EventTypeTriggered {
		return nil, fmt.Errorf("%w: %q", ErrNotTriggerEvent, env.Event.EventType)
	}
	data := env.Event.Data
	if data == nil || data.ID == "" {
		return nil, fmt.Errorf("%w: missing incident id", ErrMalformedEvent)
	}

	alert := &models.AlertDescriptor{
		ExternalID:  data.ID,
		Title:       data.Title,
		Urgency:     models.NormalizeUrgency(data.Urgency),
		ServiceID:   unknownService,
		ServiceName: unknownService,
		CreatedAt:   now.UTC(),
		HTMLURL:     data.HTMLURL,
	}
	if alert.Title == "" {
		alert.Title = defaultTitle
	}
	if data.Service != nil {
		if data.Service.ID != "" {
			alert.ServiceID = data.Service.ID
		}
		if data.Service.Summary != "" {
			alert.ServiceName = data.Service.Summary
		}
	}
	if data.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
			alert.CreatedAt = t.UTC()
		}
	}
	if data.Body != nil {
		alert.Details = detailsText(data.Body.Details)
	}
	return alert, nil
}

// detailsText renders details verbatim when they are a JSON string and as
// compact JSON otherwise.
func detailsText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
