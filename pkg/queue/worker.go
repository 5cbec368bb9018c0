package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/metrics"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Job outcomes recorded in metrics.
const (
	outcomeCompleted = "completed"
	outcomeRetried   = "retried"
	outcomeDiscarded = "discarded"
)

// JobQueue is the subset of JobStore a Worker needs.
type JobQueue interface {
	Claim(ctx context.Context, podID string) (*QueuedJob, error)
	Complete(ctx context.Context, incidentID string) error
	Retry(ctx context.Context, incidentID string, delay time.Duration, cause string) error
	Discard(ctx context.Context, incidentID string, cause string) error
	Heartbeat(ctx context.Context, incidentID string) error
	CountActive(ctx context.Context) (int, error)
}

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id       string
	podID    string
	jobs     JobQueue
	config   *config.QueueConfig
	executor Executor
	limiter  *WindowLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentIncidentID string
	jobsProcessed     int
	lastActivity      time.Time
}

// NewWorker creates a new queue worker. limiter is shared with the other
// workers of the pool.
func NewWorker(id, podID string, jobs JobQueue, cfg *config.QueueConfig, executor Executor, limiter *WindowLimiter) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		jobs:         jobs,
		config:       cfg,
		executor:     executor,
		limiter:      limiter,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// job. It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            w.status,
		CurrentIncidentID: w.currentIncidentID,
		JobsProcessed:     w.jobsProcessed,
		LastActivity:      w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				switch {
				case errors.Is(err, ErrNoJobsAvailable), errors.Is(err, ErrAtCapacity):
					w.sleep(w.pollInterval())
				case errors.Is(err, ErrRateLimited):
					w.sleep(max(w.limiter.NextFree(), w.pollInterval()))
				default:
					log.Error("Error processing job", "error", err)
					w.sleep(time.Second)
				}
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity and the start budget, claims a job and
// runs it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// Best-effort global capacity check; racy with concurrent workers but
	// bounded by WorkerCount.
	active, err := w.jobs.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if active >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	if !w.limiter.Allow() {
		return ErrRateLimited
	}
	job, err := w.jobs.Claim(ctx, w.podID)
	if err != nil {
		w.limiter.Release()
		return err
	}

	log := slog.With("incident_id", job.IncidentID, "worker_id", w.id, "attempt", job.Attempts)
	log.Info("Job claimed")

	w.setStatus(WorkerStatusWorking, job.IncidentID)
	defer w.setStatus(WorkerStatusIdle, "")
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	// A claimed job runs to completion; shutdown only stops new claims.
	jobCtx := context.WithoutCancel(ctx)
	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.IncidentID)

	execErr := w.executor.Execute(jobCtx, job)
	cancelHeartbeat()

	// Settle with a fresh context; ctx may be cancelled during shutdown.
	settleCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.settle(settleCtx, log, job, execErr); err != nil {
		return err
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
	return nil
}

// settle records the job outcome: completed, rescheduled with backoff, or
// discarded once the retry budget is spent.
func (w *Worker) settle(ctx context.Context, log *slog.Logger, job *QueuedJob, execErr error) error {
	if execErr == nil {
		if err := w.jobs.Complete(ctx, job.IncidentID); err != nil {
			return err
		}
		metrics.JobsTotal.WithLabelValues(outcomeCompleted).Inc()
		log.Info("Job completed")
		return nil
	}

	cause := execErr.Error()
	if job.Attempts <= w.config.MaxRetries {
		delay := Backoff(w.config.BackoffBase, w.config.BackoffMax, job.Attempts)
		if err := w.jobs.Retry(ctx, job.IncidentID, delay, cause); err != nil {
			return err
		}
		metrics.JobsTotal.WithLabelValues(outcomeRetried).Inc()
		log.Warn("Job failed, retry scheduled", "error", cause, "retry_in", delay)
		return nil
	}

	if err := w.jobs.Discard(ctx, job.IncidentID, cause); err != nil {
		return err
	}
	metrics.JobsTotal.WithLabelValues(outcomeDiscarded).Inc()
	log.Error("Job failed, retries exhausted", "error", cause, "attempts", job.Attempts)
	return nil
}

// runHeartbeat periodically refreshes the job heartbeat for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, incidentID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.jobs.Heartbeat(ctx, incidentID); err != nil {
				slog.Warn("Heartbeat update failed", "incident_id", incidentID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, incidentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentIncidentID = incidentID
	w.lastActivity = time.Now()
}
