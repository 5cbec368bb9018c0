package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/database"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/queue"
	"github.com/codeready-toolchain/responder/pkg/services"
	"github.com/codeready-toolchain/responder/pkg/store"
)

type fakeIngester struct {
	bodies  [][]byte
	outcome *services.IngestOutcome
	err     error
}

func (f *fakeIngester) Ingest(_ context.Context, body []byte) (*services.IngestOutcome, error) {
	f.bodies = append(f.bodies, body)
	return f.outcome, f.err
}

type fakeServiceAdmin struct {
	services map[string]*models.ServiceConfig
	created  []models.CreateServiceRequest
	err      error
}

func (f *fakeServiceAdmin) CreateService(_ context.Context, req models.CreateServiceRequest) (*models.ServiceConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &models.ServiceConfig{ID: "svc-new", Name: req.Name, ExternalServiceID: req.ExternalServiceID, Active: true}, nil
}

func (f *fakeServiceAdmin) GetService(_ context.Context, id string) (*models.ServiceConfig, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return svc, nil
}

func (f *fakeServiceAdmin) ListServices(context.Context, bool) ([]*models.ServiceConfig, error) {
	out := make([]*models.ServiceConfig, 0, len(f.services))
	for _, s := range f.services {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeServiceAdmin) UpdateService(_ context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if req.ChatChannel != nil {
		svc.ChatChannel = *req.ChatChannel
	}
	return svc, nil
}

func (f *fakeServiceAdmin) DeactivateService(_ context.Context, id string) error {
	svc, ok := f.services[id]
	if !ok {
		return store.ErrNotFound
	}
	svc.Active = false
	return nil
}

type fakeIncidentReader struct {
	incidents map[string]*models.Incident
	filters   models.IncidentFilters
}

func (f *fakeIncidentReader) Get(_ context.Context, id string) (*models.Incident, error) {
	inc, ok := f.incidents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return inc, nil
}

func (f *fakeIncidentReader) List(_ context.Context, filters models.IncidentFilters) (*models.IncidentListResponse, error) {
	f.filters = filters
	out := make([]*models.Incident, 0, len(f.incidents))
	for _, inc := range f.incidents {
		out = append(out, inc)
	}
	return &models.IncidentListResponse{Incidents: out, TotalCount: len(out), Limit: filters.Limit, Offset: filters.Offset}, nil
}

func (f *fakeIncidentReader) Events(_ context.Context, id string) ([]models.IncidentEvent, error) {
	return []models.IncidentEvent{
		{IncidentID: id, FromStatus: models.StatusReceived, ToStatus: models.StatusFetchingLogs},
	}, nil
}

type fakeReviews struct {
	approved []string
	rejected []string
	err      error
}

func (f *fakeReviews) ApproveFix(_ context.Context, id string) (*models.PullRequestRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.approved = append(f.approved, id)
	return &models.PullRequestRef{URL: "https://github.com/acme/checkout/pull/7", Number: 7}, nil
}

func (f *fakeReviews) RejectFix(_ context.Context, id string) (*models.PullRequestRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rejected = append(f.rejected, id)
	return &models.PullRequestRef{URL: "https://github.com/acme/checkout/pull/7", Number: 7}, nil
}

type fakePool struct {
	health *queue.PoolHealth
}

func (f *fakePool) Health(context.Context) *queue.PoolHealth {
	return f.health
}

type testServer struct {
	server    *Server
	ingest    *fakeIngester
	services  *fakeServiceAdmin
	incidents *fakeIncidentReader
	reviews   *fakeReviews
	dbErr     error
}

func newTestServer(t *testing.T, webhookSecret string) *testServer {
	t.Helper()
	t.Setenv("TEST_PD_SECRET", webhookSecret)

	cfg := config.Defaults()
	cfg.PagerDuty.WebhookSecretEnv = "TEST_PD_SECRET"

	ts := &testServer{
		ingest: &fakeIngester{outcome: &services.IngestOutcome{Status: services.IngestAccepted, IncidentID: "inc-1"}},
		services: &fakeServiceAdmin{services: map[string]*models.ServiceConfig{
			"svc-1": {ID: "svc-1", Name: "checkout", ExternalServiceID: "PSVC001", ChatChannel: "C-checkout", Active: true},
		}},
		incidents: &fakeIncidentReader{incidents: map[string]*models.Incident{
			"inc-1": {ID: "inc-1", ExternalID: "PD1", Title: "Checkout 500s", Status: models.StatusCompleted},
		}},
		reviews: &fakeReviews{},
	}
	dbHealth := func(context.Context) (*database.HealthStatus, error) {
		if ts.dbErr != nil {
			return &database.HealthStatus{Status: "unhealthy"}, ts.dbErr
		}
		return &database.HealthStatus{Status: "healthy"}, nil
	}
	ts.server = NewServer(cfg, dbHealth, ts.ingest, ts.services, ts.incidents, ts.reviews)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var errBoom = errors.New("boom")
