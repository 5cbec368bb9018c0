package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// unqueuedBatch bounds how many unqueued incidents one scan re-enqueues.
const unqueuedBatch = 50

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned jobs.
// All pods run this independently; operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans returns active jobs with stale heartbeats to
// pending and enqueues incidents the ingestor stored but never queued.
// Delivery is at-least-once: a recovered job reruns from the top.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	stale, err := p.jobs.ResetStale(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to reset stale jobs: %w", err)
	}
	if len(stale) > 0 {
		slog.Warn("Recovered orphaned jobs", "count", len(stale), "incident_ids", stale)
	}

	requeued, err := p.requeueUnqueued(ctx, threshold)
	if err != nil {
		return err
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += len(stale) + requeued
	p.orphans.mu.Unlock()
	return nil
}

// requeueUnqueued enqueues RECEIVED incidents without a job, rebuilt from
// the stored alert and the service's current configuration.
func (p *WorkerPool) requeueUnqueued(ctx context.Context, olderThan time.Time) (int, error) {
	if p.incidents == nil || p.services == nil {
		return 0, nil
	}
	incidents, err := p.incidents.ListUnqueued(ctx, olderThan, unqueuedBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list unqueued incidents: %w", err)
	}

	requeued := 0
	for _, inc := range incidents {
		log := slog.With("incident_id", inc.ID, "service_id", inc.ServiceID)
		svc, err := p.services.GetByExternalID(ctx, inc.ServiceID)
		if err != nil {
			log.Error("Cannot requeue incident, service lookup failed", "error", err)
			continue
		}
		added, err := p.jobs.Enqueue(ctx, models.Job{IncidentID: inc.ID, Alert: inc.Alert, Service: *svc})
		if err != nil {
			log.Error("Failed to requeue incident", "error", err)
			continue
		}
		if added {
			log.Warn("Requeued incident that was never enqueued")
			requeued++
		}
	}
	return requeued, nil
}

// CleanupStartupOrphans returns jobs this pod held when it previously
// stopped to pending. Called once during startup, before the worker pool
// begins processing.
func CleanupStartupOrphans(ctx context.Context, jobs *JobStore, podID string) error {
	ids, err := jobs.ResetPod(ctx, podID)
	if err != nil {
		return fmt.Errorf("failed to reset startup orphans: %w", err)
	}
	if len(ids) > 0 {
		slog.Warn("Found startup orphans from previous run",
			"pod_id", podID,
			"count", len(ids),
			"incident_ids", ids)
	}
	return nil
}
