package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/responder/pkg/metrics"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/pagerduty"
	"github.com/codeready-toolchain/responder/pkg/store"
)

// IngestResult is the status token returned to the webhook caller.
type IngestResult string

// Ingest results.
const (
	IngestAccepted    IngestResult = "accepted"
	IngestDuplicate   IngestResult = "duplicate"
	IngestUnmonitored IngestResult = "unmonitored_service"
	IngestIgnored     IngestResult = "ignored"
)

// IngestOutcome is the result of one webhook delivery.
type IngestOutcome struct {
	Status     IngestResult `json:"status"`
	IncidentID string       `json:"incident_id,omitempty"`
}

// IncidentRecorder is the incident persistence used by ingestion.
type IncidentRecorder interface {
	Create(ctx context.Context, inc *models.Incident) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Incident, error)
}

// ServiceLookup resolves the active service for a pager service ID.
type ServiceLookup interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.ServiceConfig, error)
}

// JobEnqueuer hands an incident to the work queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job models.Job) (bool, error)
}

// IngestService turns webhook deliveries into incidents and queued jobs.
type IngestService struct {
	incidents IncidentRecorder
	services  ServiceLookup
	jobs      JobEnqueuer
	now       func() time.Time
}

// NewIngestService creates a new IngestService.
func NewIngestService(incidents IncidentRecorder, services ServiceLookup, jobs JobEnqueuer) *IngestService {
	if incidents == nil {
		panic("NewIngestService: incidents must not be nil")
	}
	if services == nil {
		panic("NewIngestService: services must not be nil")
	}
	if jobs == nil {
		panic("NewIngestService: jobs must not be nil")
	}
	return &IngestService{
		incidents: incidents,
		services:  services,
		jobs:      jobs,
		now:       time.Now,
	}
}

// Ingest processes one raw webhook body. Content problems never surface as
// errors; only storage failures do, so the sender retries those.
func (s *IngestService) Ingest(ctx context.Context, body []byte) (*IngestOutcome, error) {
	out, err := s.ingest(ctx, body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.WebhooksTotal.WithLabelValues(string(out.Status)).Inc()
	return out, nil
}

func (s *IngestService) ingest(ctx context.Context, body []byte) (*IngestOutcome, error) {
	alert, err := pagerduty.ParseEvent(body, s.now())
	if err != nil {
		if errors.Is(err, pagerduty.ErrNotTriggerEvent) {
			slog.Debug("Ignoring non-trigger webhook event", "reason", err)
		} else {
			slog.Warn("Ignoring malformed webhook payload", "error", err)
		}
		return &IngestOutcome{Status: IngestIgnored}, nil
	}
	log := slog.With("external_id", alert.ExternalID, "service_id", alert.ServiceID)

	existing, err := s.incidents.GetByExternalID(ctx, alert.ExternalID)
	switch {
	case err == nil:
		log.Info("Duplicate alert, skipping", "incident_id", existing.ID)
		return &IngestOutcome{Status: IngestDuplicate, IncidentID: existing.ID}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to check for duplicate alert: %w", err)
	}

	svc, err := s.services.GetByExternalID(ctx, alert.ServiceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("No service configured for alert", "service_name", alert.ServiceName)
			return &IngestOutcome{Status: IngestUnmonitored}, nil
		}
		return nil, fmt.Errorf("failed to look up service: %w", err)
	}

	inc := &models.Incident{
		ID:          uuid.New().String(),
		ExternalID:  alert.ExternalID,
		Title:       alert.Title,
		Urgency:     alert.Urgency,
		ServiceName: svc.Name,
		ServiceID:   alert.ServiceID,
		Status:      models.StatusReceived,
		Alert:       *alert,
		ChatChannel: svc.ChatChannel,
	}
	// The record must exist before the job: an orphaned RECEIVED incident is
	// re-enqueued by orphan recovery, an orphaned job is not recoverable.
	if err := s.incidents.Create(ctx, inc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Info("Duplicate alert raced with another delivery")
			return &IngestOutcome{Status: IngestDuplicate}, nil
		}
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	if _, err := s.jobs.Enqueue(ctx, models.Job{IncidentID: inc.ID, Alert: *alert, Service: *svc}); err != nil {
		return nil, fmt.Errorf("failed to enqueue incident %s: %w", inc.ID, err)
	}

	log.Info("Incident accepted", "incident_id", inc.ID, "service", svc.Name, "urgency", alert.Urgency)
	return &IngestOutcome{Status: IngestAccepted, IncidentID: inc.ID}, nil
}
