package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// PoolStore is the job-table access the pool needs beyond its workers.
type PoolStore interface {
	JobQueue
	Enqueue(ctx context.Context, job models.Job) (bool, error)
	QueueDepth(ctx context.Context) (int, error)
	CountActiveForPod(ctx context.Context, podID string) (int, error)
	ResetStale(ctx context.Context, olderThan time.Time) ([]string, error)
}

// UnqueuedLister finds incidents that were stored but never enqueued.
type UnqueuedLister interface {
	ListUnqueued(ctx context.Context, olderThan time.Time, limit int) ([]*models.Incident, error)
}

// ServiceLookup resolves the current service configuration of an incident.
type ServiceLookup interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.ServiceConfig, error)
}

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID     string
	jobs      PoolStore
	incidents UnqueuedLister
	services  ServiceLookup
	config    *config.QueueConfig
	executor  Executor
	limiter   *WindowLimiter
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	started   bool

	// Orphan detection state
	orphans orphanState
}

// NewWorkerPool creates a new worker pool. incidents and services may be nil,
// which disables re-enqueuing of unqueued incidents.
func NewWorkerPool(podID string, jobs PoolStore, incidents UnqueuedLister, services ServiceLookup, cfg *config.QueueConfig, executor Executor) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		jobs:      jobs,
		incidents: incidents,
		services:  services,
		config:    cfg,
		executor:  executor,
		limiter:   NewWindowLimiter(cfg.RateLimitJobs, cfg.RateLimitWindow),
		workers:   make([]*Worker, 0, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool",
		"pod_id", p.podID,
		"worker_count", p.config.WorkerCount,
		"rate_limit", fmt.Sprintf("%d/%s", p.config.RateLimitJobs, p.config.RateLimitWindow))

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.jobs, p.config, p.executor, p.limiter)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current jobs before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	if active := p.activeIncidentIDs(); len(active) > 0 {
		slog.Info("Waiting for active jobs to complete",
			"count", len(active),
			"incident_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	queueDepth, errQ := p.jobs.QueueDepth(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}
	activeJobs, errA := p.jobs.CountActiveForPod(ctx, p.podID)
	if errA != nil {
		slog.Error("Failed to query active jobs for health check", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	switch {
	case errQ != nil:
		dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
	case errA != nil:
		dbError = fmt.Sprintf("active jobs query failed: %v", errA)
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveJobs:       activeJobs,
		MaxConcurrent:    p.config.MaxConcurrentJobs,
		QueueDepth:       queueDepth,
		RecentStarts:     p.limiter.Count(),
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// activeIncidentIDs returns IDs of incidents currently being processed (for logging).
func (p *WorkerPool) activeIncidentIDs() []string {
	ids := make([]string, 0, len(p.workers))
	for _, w := range p.workers {
		if h := w.Health(); h.CurrentIncidentID != "" {
			ids = append(ids, h.CurrentIncidentID)
		}
	}
	return ids
}
