package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/responder/pkg/models"
)

const incidentColumns = `id, external_id, title, urgency, service_name, service_id, status,
	alert_payload, chat_channel, chat_handle, diagnosis, pr_url, pr_number, error,
	created_at, started_at, completed_at, updated_at`

// IncidentStore reads and writes incident records. Incidents are never deleted.
type IncidentStore struct {
	pool *pgxpool.Pool
}

// NewIncidentStore creates a new IncidentStore.
func NewIncidentStore(pool *pgxpool.Pool) *IncidentStore {
	if pool == nil {
		panic("NewIncidentStore: pool must not be nil")
	}
	return &IncidentStore{pool: pool}
}

// Create inserts a new incident. A taken external ID yields ErrAlreadyExists.
func (s *IncidentStore) Create(ctx context.Context, inc *models.Incident) error {
	alert, err := json.Marshal(inc.Alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO incidents (id, external_id, title, urgency, service_name, service_id,
			status, alert_payload, chat_channel)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		inc.ID, inc.ExternalID, inc.Title, inc.Urgency, inc.ServiceName, inc.ServiceID,
		inc.Status, alert, inc.ChatChannel,
	).Scan(&inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("incident with external id %s: %w", inc.ExternalID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// Get returns the incident with the given internal ID.
func (s *IncidentStore) Get(ctx context.Context, id string) (*models.Incident, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, notFound(err)
	}
	return inc, nil
}

// GetByExternalID returns the incident created for a source alert ID.
func (s *IncidentStore) GetByExternalID(ctx context.Context, externalID string) (*models.Incident, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE external_id = $1`, externalID)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, notFound(err)
	}
	return inc, nil
}

// List returns a page of incidents, newest first.
func (s *IncidentStore) List(ctx context.Context, filters models.IncidentFilters) (*models.IncidentListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	const where = `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR service_name = $2)`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM incidents `+where,
		filters.Status, filters.ServiceName).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+incidentColumns+` FROM incidents `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		filters.Status, filters.ServiceName, filters.Limit, filters.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0, filters.Limit)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	return &models.IncidentListResponse{
		Incidents:  incidents,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}, nil
}

// Transition moves an incident to a new status and records the move in
// incident_events within one transaction. Entering FAILED stores detail as
// the error message. Terminal states stamp completed_at.
func (s *IncidentStore) Transition(ctx context.Context, id string, to models.IncidentStatus, detail string) (*models.Incident, error) {
	return s.transition(ctx, id, to, detail, false)
}

// Reopen restarts a redelivered incident at FETCHING_LOGS. Error and
// completed_at from a previous failed run are cleared. COMPLETED incidents
// cannot be reopened.
func (s *IncidentStore) Reopen(ctx context.Context, id string, detail string) (*models.Incident, error) {
	return s.transition(ctx, id, models.StatusFetchingLogs, detail, true)
}

func (s *IncidentStore) transition(ctx context.Context, id string, to models.IncidentStatus, detail string, reopen bool) (*models.Incident, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from models.IncidentStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM incidents WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
		return nil, notFound(err)
	}

	allowed := models.CanTransition(from, to)
	if reopen {
		allowed = models.CanReopen(from)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var errMsg *string
	if to == models.StatusFailed {
		errMsg = &detail
	}

	row := tx.QueryRow(ctx, `
		UPDATE incidents SET
			status = $2,
			error = CASE WHEN $3 THEN NULL WHEN $4::text IS NOT NULL THEN $4 ELSE error END,
			started_at = COALESCE(started_at, CASE WHEN $2 = 'fetching_logs' THEN now() END),
			completed_at = CASE WHEN $5 THEN now() WHEN $3 THEN NULL ELSE completed_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+incidentColumns,
		id, to, reopen, errMsg, to.IsTerminal())
	inc, err := scanIncident(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update incident status: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO incident_events (incident_id, from_status, to_status, detail)
		VALUES ($1, $2, $3, $4)`, id, from, to, detail); err != nil {
		return nil, fmt.Errorf("failed to record incident event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return inc, nil
}

// SetChatHandle records the chat message handle. The handle is set once;
// later calls leave an existing handle untouched and return it.
func (s *IncidentStore) SetChatHandle(ctx context.Context, id, channel, handle string) (string, error) {
	var stored string
	err := s.pool.QueryRow(ctx, `
		UPDATE incidents SET
			chat_channel = CASE WHEN chat_handle IS NULL THEN $2 ELSE chat_channel END,
			chat_handle = COALESCE(chat_handle, $3),
			updated_at = now()
		WHERE id = $1
		RETURNING chat_handle`, id, channel, handle).Scan(&stored)
	if err != nil {
		return "", notFound(err)
	}
	return stored, nil
}

// SetDiagnosis stores the diagnosis result, including the raw agent output.
func (s *IncidentStore) SetDiagnosis(ctx context.Context, id string, diagnosis *models.DiagnosisResult) error {
	data, err := json.Marshal(diagnosis)
	if err != nil {
		return fmt.Errorf("failed to encode diagnosis: %w", err)
	}
	return s.exec(ctx, `UPDATE incidents SET diagnosis = $2, updated_at = now() WHERE id = $1`, id, data)
}

// SetPullRequest stores the review request reference.
func (s *IncidentStore) SetPullRequest(ctx context.Context, id string, pr models.PullRequestRef) error {
	return s.exec(ctx, `UPDATE incidents SET pr_url = $2, pr_number = $3, updated_at = now() WHERE id = $1`,
		id, pr.URL, pr.Number)
}

// Events returns the lifecycle transitions of an incident, oldest first.
func (s *IncidentStore) Events(ctx context.Context, id string) ([]models.IncidentEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, incident_id, from_status, to_status, detail, created_at
		FROM incident_events WHERE incident_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.IncidentEvent, error) {
		var e models.IncidentEvent
		err := row.Scan(&e.ID, &e.IncidentID, &e.FromStatus, &e.ToStatus, &e.Detail, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan incident events: %w", err)
	}
	return events, nil
}

// ListUnqueued returns RECEIVED incidents created before olderThan that
// have no queue job, i.e. the ingestor stopped between insert and enqueue.
func (s *IncidentStore) ListUnqueued(ctx context.Context, olderThan time.Time, limit int) ([]*models.Incident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixed("i", incidentColumns)+`
		FROM incidents i
		LEFT JOIN incident_jobs j ON j.incident_id = i.id
		WHERE i.status = 'received' AND i.created_at < $1 AND j.incident_id IS NULL
		ORDER BY i.created_at
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unqueued incidents: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *IncidentStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// prefixed qualifies every column of a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var (
		inc        models.Incident
		alert      []byte
		chatHandle *string
		diagnosis  []byte
		prURL      *string
		prNumber   *int
		errMsg     *string
	)
	err := row.Scan(
		&inc.ID, &inc.ExternalID, &inc.Title, &inc.Urgency, &inc.ServiceName, &inc.ServiceID, &inc.Status,
		&alert, &inc.ChatChannel, &chatHandle, &diagnosis, &prURL, &prNumber, &errMsg,
		&inc.CreatedAt, &inc.StartedAt, &inc.CompletedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(alert, &inc.Alert); err != nil {
		return nil, fmt.Errorf("failed to decode alert payload: %w", err)
	}
	if len(diagnosis) > 0 {
		inc.Diagnosis = &models.DiagnosisResult{}
		if err := json.Unmarshal(diagnosis, inc.Diagnosis); err != nil {
			return nil, fmt.Errorf("failed to decode diagnosis: %w", err)
		}
	}
	if chatHandle != nil {
		inc.ChatHandle = *chatHandle
	}
	if prURL != nil && prNumber != nil {
		inc.PullRequest = &models.PullRequestRef{URL: *prURL, Number: *prNumber}
	}
	if errMsg != nil {
		inc.Error = *errMsg
	}
	return &inc, nil
}
