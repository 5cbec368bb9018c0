package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/store"
)

func validCreateRequest() models.CreateServiceRequest {
	return models.CreateServiceRequest{
		Name:              "payments",
		ExternalServiceID: "PSVC002",
		RepoOwner:         "acme",
		RepoName:          "payments",
		ChatChannel:       "C-payments",
	}
}

func TestServiceRegistry_CachesLookups(t *testing.T) {
	repo := newFakeServiceRepo(checkoutService())
	r := NewServiceRegistry(repo, time.Minute)
	ctx := context.Background()

	for range 3 {
		svc, err := r.GetByExternalID(ctx, "PSVC001")
		require.NoError(t, err)
		assert.Equal(t, "checkout", svc.Name)
	}
	assert.Equal(t, 1, repo.lookupCount())

	_, err := r.GetByExternalID(ctx, "PMISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = r.GetByExternalID(ctx, "PMISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 3, repo.lookupCount(), "misses are not cached")
}

func TestServiceRegistry_CachedValueIsACopy(t *testing.T) {
	r := NewServiceRegistry(newFakeServiceRepo(checkoutService()), time.Minute)
	ctx := context.Background()

	svc, err := r.GetByExternalID(ctx, "PSVC001")
	require.NoError(t, err)
	svc.ChatChannel = "mutated"

	again, err := r.GetByExternalID(ctx, "PSVC001")
	require.NoError(t, err)
	assert.Equal(t, "C-checkout", again.ChatChannel)
}

func TestServiceRegistry_WritesInvalidate(t *testing.T) {
	repo := newFakeServiceRepo(checkoutService())
	r := NewServiceRegistry(repo, time.Hour)
	ctx := context.Background()

	_, err := r.GetByExternalID(ctx, "PSVC001")
	require.NoError(t, err)

	channel := "C-new"
	_, err = r.UpdateService(ctx, "svc-1", models.UpdateServiceRequest{ChatChannel: &channel})
	require.NoError(t, err)

	svc, err := r.GetByExternalID(ctx, "PSVC001")
	require.NoError(t, err)
	assert.Equal(t, "C-new", svc.ChatChannel)

	require.NoError(t, r.DeactivateService(ctx, "svc-1"))
	_, err = r.GetByExternalID(ctx, "PSVC001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceRegistry_CreateService(t *testing.T) {
	r := NewServiceRegistry(newFakeServiceRepo(), 0)
	ctx := context.Background()

	svc, err := r.CreateService(ctx, validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, svc.ID)
	assert.Equal(t, "main", svc.DefaultBranch)
	assert.Equal(t, models.LogSourceMock, svc.LogSource)
	assert.True(t, svc.Active)

	_, err = r.CreateService(ctx, validCreateRequest())
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := r.GetByExternalID(ctx, "PSVC002")
	require.NoError(t, err)
	assert.Equal(t, svc.ID, got.ID)
}

func TestServiceRegistry_Validation(t *testing.T) {
	r := NewServiceRegistry(newFakeServiceRepo(), 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.CreateServiceRequest)
		field  string
	}{
		{"missing name", func(req *models.CreateServiceRequest) { req.Name = "" }, "name"},
		{"missing external id", func(req *models.CreateServiceRequest) { req.ExternalServiceID = "" }, "external_service_id"},
		{"missing channel", func(req *models.CreateServiceRequest) { req.ChatChannel = "" }, "chat_channel"},
		{"unknown log source", func(req *models.CreateServiceRequest) { req.LogSource = "splunk" }, "log_source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := r.CreateService(ctx, req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.ErrorIs(t, err, ErrInvalidInput)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("update rejects empty name", func(t *testing.T) {
		empty := ""
		_, err := r.UpdateService(ctx, "svc-1", models.UpdateServiceRequest{Name: &empty})
		assert.True(t, IsValidationError(err))
	})
}
