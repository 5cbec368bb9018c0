// Package queue provides the durable incident job queue, the worker pool
// that drains it and the orchestrator that runs one incident's pipeline.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no pending job is due.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent job limit has been reached.
	ErrAtCapacity = errors.New("at capacity")

	// ErrRateLimited indicates the job start budget of the rolling window is spent.
	ErrRateLimited = errors.New("rate limited")
)

// JobStatus is the delivery state of a queued job.
type JobStatus string

// Job states.
const (
	JobPending   JobStatus = "pending"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// QueuedJob is one row of the job table. Attempts counts deliveries,
// including the current one.
type QueuedJob struct {
	IncidentID string
	Payload    models.Job
	Status     JobStatus
	Attempts   int
	RunAfter   time.Time
	LastError  string
}

// Executor runs the pipeline for one job. A returned error schedules a
// retry until the retry budget is spent.
type Executor interface {
	Execute(ctx context.Context, job *QueuedJob) error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	RecentStarts     int            `json:"recent_starts"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string       `json:"id"`
	Status            WorkerStatus `json:"status"`
	CurrentIncidentID string       `json:"current_incident_id,omitempty"`
	JobsProcessed     int          `json:"jobs_processed"`
	LastActivity      time.Time    `json:"last_activity"`
}
