package queue

import (
	"context"
	"sync"
	"time"

	"github.com/codeready-toolchain/responder/pkg/models"
)

type settledJob struct {
	outcome string
	delay   time.Duration
	cause   string
}

// fakeJobQueue is an in-memory PoolStore.
type fakeJobQueue struct {
	mu         sync.Mutex
	pending    []*QueuedJob
	active     int
	settled    map[string]settledJob
	heartbeats map[string]int
	enqueued   []models.Job
	stale      []string
	claimErr   error
}

func newFakeJobQueue(jobs ...*QueuedJob) *fakeJobQueue {
	return &fakeJobQueue{
		pending:    jobs,
		settled:    map[string]settledJob{},
		heartbeats: map[string]int{},
	}
}

func (f *fakeJobQueue) Claim(_ context.Context, _ string) (*QueuedJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.pending) == 0 {
		return nil, ErrNoJobsAvailable
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	job.Attempts++
	job.Status = JobActive
	return job, nil
}

func (f *fakeJobQueue) Complete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[id] = settledJob{outcome: outcomeCompleted}
	return nil
}

func (f *fakeJobQueue) Retry(_ context.Context, id string, delay time.Duration, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[id] = settledJob{outcome: outcomeRetried, delay: delay, cause: cause}
	return nil
}

func (f *fakeJobQueue) Discard(_ context.Context, id string, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[id] = settledJob{outcome: outcomeDiscarded, cause: cause}
	return nil
}

func (f *fakeJobQueue) Heartbeat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[id]++
	return nil
}

func (f *fakeJobQueue) CountActive(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeJobQueue) Enqueue(_ context.Context, job models.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.enqueued {
		if j.IncidentID == job.IncidentID {
			return false, nil
		}
	}
	f.enqueued = append(f.enqueued, job)
	return true, nil
}

func (f *fakeJobQueue) QueueDepth(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), nil
}

func (f *fakeJobQueue) CountActiveForPod(context.Context, string) (int, error) {
	return f.CountActive(context.Background())
}

func (f *fakeJobQueue) ResetStale(context.Context, time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.stale
	f.stale = nil
	return ids, nil
}

func (f *fakeJobQueue) settledJob(id string) (settledJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settled[id]
	return s, ok
}

type executorFunc func(ctx context.Context, job *QueuedJob) error

func (f executorFunc) Execute(ctx context.Context, job *QueuedJob) error { return f(ctx, job) }
