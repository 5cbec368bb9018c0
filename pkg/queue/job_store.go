package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/responder/pkg/models"
)

const jobColumns = `incident_id, payload, status, attempts, run_after, COALESCE(last_error, '')`

// JobStore is the PostgreSQL-backed job table. Jobs are keyed by incident
// ID, so a second enqueue of the same incident is a no-op.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a new JobStore.
func NewJobStore(pool *pgxpool.Pool) *JobStore {
	if pool == nil {
		panic("NewJobStore: pool must not be nil")
	}
	return &JobStore{pool: pool}
}

// Enqueue adds a job for immediate delivery. It reports false when a job for
// the incident already exists.
func (s *JobStore) Enqueue(ctx context.Context, job models.Job) (bool, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to encode job payload: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO incident_jobs (incident_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (incident_id) DO NOTHING`, job.IncidentID, payload)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Claim atomically takes the oldest due pending job using
// FOR UPDATE SKIP LOCKED and marks it active for podID.
func (s *JobStore) Claim(ctx context.Context, podID string) (*QueuedJob, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE incident_jobs SET
			status = 'active',
			attempts = attempts + 1,
			pod_id = $1,
			claimed_at = now(),
			heartbeat_at = now(),
			updated_at = now()
		WHERE incident_id = (
			SELECT incident_id FROM incident_jobs
			WHERE status = 'pending' AND run_after <= now()
			ORDER BY run_after, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, podID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// Get returns the job of an incident.
func (s *JobStore) Get(ctx context.Context, incidentID string) (*QueuedJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM incident_jobs WHERE incident_id = $1`, incidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Complete marks an active job done.
func (s *JobStore) Complete(ctx context.Context, incidentID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE incident_jobs SET status = 'completed', pod_id = NULL, last_error = NULL, updated_at = now()
		WHERE incident_id = $1`, incidentID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Retry returns a failed job to pending, due after delay.
func (s *JobStore) Retry(ctx context.Context, incidentID string, delay time.Duration, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE incident_jobs SET
			status = 'pending',
			run_after = now() + make_interval(secs => $2),
			last_error = $3,
			pod_id = NULL,
			updated_at = now()
		WHERE incident_id = $1`, incidentID, delay.Seconds(), cause)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Discard marks a job permanently failed.
func (s *JobStore) Discard(ctx context.Context, incidentID string, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE incident_jobs SET status = 'failed', last_error = $2, pod_id = NULL, updated_at = now()
		WHERE incident_id = $1`, incidentID, cause)
	if err != nil {
		return fmt.Errorf("failed to discard job: %w", err)
	}
	return nil
}

// Heartbeat refreshes an active job's liveness timestamp.
func (s *JobStore) Heartbeat(ctx context.Context, incidentID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE incident_jobs SET heartbeat_at = now()
		WHERE incident_id = $1 AND status = 'active'`, incidentID)
	return err
}

// CountActive returns the number of active jobs across all pods.
func (s *JobStore) CountActive(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM incident_jobs WHERE status = 'active'`)
}

// CountActiveForPod returns the number of active jobs claimed by podID.
func (s *JobStore) CountActiveForPod(ctx context.Context, podID string) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM incident_jobs WHERE status = 'active' AND pod_id = $1`, podID)
}

// QueueDepth returns the number of pending jobs.
func (s *JobStore) QueueDepth(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM incident_jobs WHERE status = 'pending'`)
}

// ResetStale returns active jobs without a heartbeat since olderThan to
// pending and reports their incident IDs.
func (s *JobStore) ResetStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	return s.reset(ctx, `
		UPDATE incident_jobs SET status = 'pending', pod_id = NULL, run_after = now(), updated_at = now()
		WHERE status = 'active' AND heartbeat_at < $1
		RETURNING incident_id`, olderThan)
}

// ResetPod returns every active job owned by podID to pending. Used once at
// startup, before the pod's workers begin claiming.
func (s *JobStore) ResetPod(ctx context.Context, podID string) ([]string, error) {
	return s.reset(ctx, `
		UPDATE incident_jobs SET status = 'pending', pod_id = NULL, run_after = now(), updated_at = now()
		WHERE status = 'active' AND pod_id = $1
		RETURNING incident_id`, podID)
}

func (s *JobStore) reset(ctx context.Context, sql string, arg any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to reset jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to reset jobs: %w", err)
	}
	return ids, nil
}

func (s *JobStore) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanJob(row pgx.Row) (*QueuedJob, error) {
	var (
		job     QueuedJob
		payload []byte
	)
	if err := row.Scan(&job.IncidentID, &payload, &job.Status, &job.Attempts, &job.RunAfter, &job.LastError); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &job, nil
}
