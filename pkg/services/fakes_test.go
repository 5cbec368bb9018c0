package services

import (
	"context"
	"errors"
	"sync"

	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/store"
)

type fakeIncidentStore struct {
	mu        sync.Mutex
	byID      map[string]*models.Incident
	createErr error
	lookupErr error
}

func newFakeIncidentStore() *fakeIncidentStore {
	return &fakeIncidentStore{byID: make(map[string]*models.Incident)}
}

func (f *fakeIncidentStore) Create(_ context.Context, inc *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.ExternalID == inc.ExternalID {
			return store.ErrAlreadyExists
		}
	}
	cp := *inc
	f.byID[inc.ID] = &cp
	return nil
}

func (f *fakeIncidentStore) Get(_ context.Context, id string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (f *fakeIncidentStore) GetByExternalID(_ context.Context, externalID string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, inc := range f.byID {
		if inc.ExternalID == externalID {
			cp := *inc
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeIncidentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeServiceRepo struct {
	mu       sync.Mutex
	services map[string]*models.ServiceConfig
	lookups  int
}

func newFakeServiceRepo(svcs ...*models.ServiceConfig) *fakeServiceRepo {
	r := &fakeServiceRepo{services: make(map[string]*models.ServiceConfig)}
	for _, s := range svcs {
		r.services[s.ID] = s
	}
	return r
}

func (r *fakeServiceRepo) Create(_ context.Context, svc *models.ServiceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.Active && s.ExternalServiceID == svc.ExternalServiceID {
			return store.ErrAlreadyExists
		}
	}
	cp := *svc
	r.services[svc.ID] = &cp
	return nil
}

func (r *fakeServiceRepo) Get(_ context.Context, id string) (*models.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeServiceRepo) GetByExternalID(_ context.Context, externalID string) (*models.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, s := range r.services {
		if s.Active && s.ExternalServiceID == externalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeServiceRepo) List(_ context.Context, includeInactive bool) ([]*models.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ServiceConfig, 0, len(r.services))
	for _, s := range r.services {
		if s.Active || includeInactive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeServiceRepo) Update(_ context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if req.ChatChannel != nil {
		s.ChatChannel = *req.ChatChannel
	}
	if req.RepoName != nil {
		s.RepoName = *req.RepoName
	}
	if req.Active != nil {
		s.Active = *req.Active
	}
	cp := *s
	return &cp, nil
}

func (r *fakeServiceRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Active = false
	return nil
}

func (r *fakeServiceRepo) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

type fakeJobs struct {
	mu       sync.Mutex
	enqueued []models.Job
	err      error
}

func (f *fakeJobs) Enqueue(_ context.Context, job models.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, j := range f.enqueued {
		if j.IncidentID == job.IncidentID {
			return false, nil
		}
	}
	f.enqueued = append(f.enqueued, job)
	return true, nil
}

type reviewCall struct {
	action string
	owner  string
	repo   string
	number int
}

type fakeReviewer struct {
	calls []reviewCall
	err   error
}

func (f *fakeReviewer) MarkReady(_ context.Context, owner, repo string, number int) error {
	f.calls = append(f.calls, reviewCall{"ready", owner, repo, number})
	return f.err
}

func (f *fakeReviewer) ClosePR(_ context.Context, owner, repo string, number int) error {
	f.calls = append(f.calls, reviewCall{"close", owner, repo, number})
	return f.err
}

var errDatabaseDown = errors.New("connection refused")

func checkoutService() *models.ServiceConfig {
	return &models.ServiceConfig{
		ID:                "svc-1",
		Name:              "checkout",
		ExternalServiceID: "PSVC001",
		RepoOwner:         "acme",
		RepoName:          "checkout",
		DefaultBranch:     "main",
		ChatChannel:       "C-checkout",
		LogSource:         models.LogSourceMock,
		Active:            true,
	}
}
