package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/test/util"
)

func newTestIncident(externalID string) *models.Incident {
	return &models.Incident{
		ID:          uuid.NewString(),
		ExternalID:  externalID,
		Title:       "High error rate on checkout",
		Urgency:     models.UrgencyHigh,
		ServiceName: "checkout",
		ServiceID:   "PSVC001",
		Status:      models.StatusReceived,
		ChatChannel: "#checkout-alerts",
		Alert: models.AlertDescriptor{
			ExternalID:  externalID,
			Title:       "High error rate on checkout",
			Urgency:     models.UrgencyHigh,
			ServiceID:   "PSVC001",
			ServiceName: "checkout",
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			HTMLURL:     "https://acme.pagerduty.com/incidents/" + externalID,
		},
	}
}

func TestIncidentStore_CreateAndGet(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	inc := newTestIncident("Q1ABC")
	require.NoError(t, s.Create(ctx, inc))
	assert.False(t, inc.CreatedAt.IsZero())

	got, err := s.Get(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1ABC", got.ExternalID)
	assert.Equal(t, models.StatusReceived, got.Status)
	assert.Equal(t, "checkout", got.Alert.ServiceName)
	assert.True(t, got.Alert.CreatedAt.Equal(inc.Alert.CreatedAt))
	assert.Nil(t, got.Diagnosis)
	assert.Nil(t, got.PullRequest)
	assert.Nil(t, got.CompletedAt)

	byExternal, err := s.GetByExternalID(ctx, "Q1ABC")
	require.NoError(t, err)
	assert.Equal(t, inc.ID, byExternal.ID)

	_, err = s.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByExternalID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncidentStore_CreateDuplicateExternalID(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestIncident("Q1DUP")))
	err := s.Create(ctx, newTestIncident("Q1DUP"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestIncidentStore_Transition(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	inc := newTestIncident("Q1FLOW")
	require.NoError(t, s.Create(ctx, inc))

	got, err := s.Transition(ctx, inc.ID, models.StatusFetchingLogs, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFetchingLogs, got.Status)
	require.NotNil(t, got.StartedAt)

	_, err = s.Transition(ctx, inc.ID, models.StatusCreatingPR, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, next := range []models.IncidentStatus{models.StatusDiagnosing, models.StatusNotifying, models.StatusCompleted} {
		got, err = s.Transition(ctx, inc.ID, next, "")
		require.NoError(t, err)
	}
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	_, err = s.Transition(ctx, inc.ID, models.StatusFailed, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Reopen(ctx, inc.ID, "retry")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	events, err := s.Events(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, models.StatusReceived, events[0].FromStatus)
	assert.Equal(t, models.StatusFetchingLogs, events[0].ToStatus)
	assert.Equal(t, models.StatusCompleted, events[3].ToStatus)

	_, err = s.Transition(ctx, uuid.NewString(), models.StatusFetchingLogs, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncidentStore_FailAndReopen(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	inc := newTestIncident("Q1RETRY")
	require.NoError(t, s.Create(ctx, inc))
	_, err := s.Transition(ctx, inc.ID, models.StatusFetchingLogs, "")
	require.NoError(t, err)

	failed, err := s.Transition(ctx, inc.ID, models.StatusFailed, "log source unavailable")
	require.NoError(t, err)
	assert.Equal(t, "log source unavailable", failed.Error)
	require.NotNil(t, failed.CompletedAt)

	reopened, err := s.Reopen(ctx, inc.ID, "retry attempt 2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFetchingLogs, reopened.Status)
	assert.Empty(t, reopened.Error)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, failed.StartedAt.Unix(), reopened.StartedAt.Unix())
}

func TestIncidentStore_SetOnceFields(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	inc := newTestIncident("Q1FIELDS")
	require.NoError(t, s.Create(ctx, inc))

	handle, err := s.SetChatHandle(ctx, inc.ID, "C123", "1700000000.000100")
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", handle)

	handle, err = s.SetChatHandle(ctx, inc.ID, "C999", "1700000099.000999")
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", handle, "handle is set once")

	diagnosis := &models.DiagnosisResult{
		RootCause:     "Nil pointer in payment client",
		AffectedFiles: []string{"pkg/pay/client.go"},
		ProposedChanges: []models.ProposedChange{
			{FilePath: "pkg/pay/client.go", Diff: "--- a\n+++ b\n", Explanation: "guard nil"},
		},
		RiskLevel:  models.RiskLow,
		Confidence: 0.8,
		RawOutput:  "### ROOT_CAUSE\nNil pointer in payment client",
	}
	require.NoError(t, s.SetDiagnosis(ctx, inc.ID, diagnosis))
	require.NoError(t, s.SetPullRequest(ctx, inc.ID, models.PullRequestRef{URL: "https://github.com/acme/checkout/pull/7", Number: 7}))

	got, err := s.Get(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "C123", got.ChatChannel)
	assert.Equal(t, "1700000000.000100", got.ChatHandle)
	require.NotNil(t, got.Diagnosis)
	assert.Equal(t, diagnosis, got.Diagnosis)
	require.NotNil(t, got.PullRequest)
	assert.Equal(t, 7, got.PullRequest.Number)

	assert.ErrorIs(t, s.SetDiagnosis(ctx, uuid.NewString(), diagnosis), ErrNotFound)
}

func TestIncidentStore_List(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	for _, id := range []string{"L1", "L2", "L3"} {
		require.NoError(t, s.Create(ctx, newTestIncident(id)))
	}
	first, err := s.GetByExternalID(ctx, "L1")
	require.NoError(t, err)
	_, err = s.Transition(ctx, first.ID, models.StatusFailed, "boom")
	require.NoError(t, err)

	all, err := s.List(ctx, models.IncidentFilters{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalCount)
	assert.Len(t, all.Incidents, 3)
	assert.Equal(t, 50, all.Limit)

	failed, err := s.List(ctx, models.IncidentFilters{Status: string(models.StatusFailed)})
	require.NoError(t, err)
	require.Len(t, failed.Incidents, 1)
	assert.Equal(t, "L1", failed.Incidents[0].ExternalID)

	page, err := s.List(ctx, models.IncidentFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Len(t, page.Incidents, 1)
}

func TestIncidentStore_ListUnqueued(t *testing.T) {
	client := util.SetupTestDatabase(t)
	s := NewIncidentStore(client.Pool())
	ctx := context.Background()

	queued := newTestIncident("U1")
	orphan := newTestIncident("U2")
	require.NoError(t, s.Create(ctx, queued))
	require.NoError(t, s.Create(ctx, orphan))

	_, err := client.Pool().Exec(ctx,
		`INSERT INTO incident_jobs (incident_id, payload) VALUES ($1, '{}')`, queued.ID)
	require.NoError(t, err)

	found, err := s.ListUnqueued(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, orphan.ID, found[0].ID)

	none, err := s.ListUnqueued(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
