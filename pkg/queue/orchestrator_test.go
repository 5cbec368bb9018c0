package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/agent"
	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/github"
	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/slack"
)

type fakeIncidents struct {
	mu        sync.Mutex
	incidents map[string]*models.Incident
	history   []models.IncidentStatus
}

func newFakeIncidents(inc *models.Incident) *fakeIncidents {
	return &fakeIncidents{incidents: map[string]*models.Incident{inc.ID: inc}}
}

func (f *fakeIncidents) Get(_ context.Context, id string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.incidents[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *inc
	return &cp, nil
}

func (f *fakeIncidents) Transition(_ context.Context, id string, to models.IncidentStatus, detail string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc := f.incidents[id]
	if !models.CanTransition(inc.Status, to) {
		return nil, fmt.Errorf("invalid status transition: %s -> %s", inc.Status, to)
	}
	inc.Status = to
	if to == models.StatusFailed {
		inc.Error = detail
	}
	f.history = append(f.history, to)
	cp := *inc
	return &cp, nil
}

func (f *fakeIncidents) Reopen(_ context.Context, id string, _ string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc := f.incidents[id]
	if !models.CanReopen(inc.Status) {
		return nil, fmt.Errorf("invalid status transition: %s -> reopen", inc.Status)
	}
	inc.Status = models.StatusFetchingLogs
	inc.Error = ""
	f.history = append(f.history, models.StatusFetchingLogs)
	cp := *inc
	return &cp, nil
}

func (f *fakeIncidents) SetChatHandle(_ context.Context, id, channel, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc := f.incidents[id]
	if inc.ChatHandle == "" {
		inc.ChatHandle = handle
		inc.ChatChannel = channel
	}
	return inc.ChatHandle, nil
}

func (f *fakeIncidents) SetDiagnosis(_ context.Context, id string, d *models.DiagnosisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents[id].Diagnosis = d
	return nil
}

func (f *fakeIncidents) SetPullRequest(_ context.Context, id string, pr models.PullRequestRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents[id].PullRequest = &pr
	return nil
}

func (f *fakeIncidents) current(id string) *models.Incident {
	inc, _ := f.Get(context.Background(), id)
	return inc
}

type fakeLogs struct {
	query logs.Query
	err   error
}

func (f *fakeLogs) Fetch(_ context.Context, _ models.ServiceConfig, q logs.Query) (*logs.Result, error) {
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	return &logs.Result{Logs: "ERROR boom", RawLineCount: 1}, nil
}

type fakeDiagnoser struct {
	diagnosis   *models.DiagnosisResult
	diagnoseErr error
	fixErr      error
	fixCalls    int
}

func (f *fakeDiagnoser) Diagnose(context.Context, agent.DiagnosisInput) (*models.DiagnosisResult, error) {
	if f.diagnoseErr != nil {
		return nil, f.diagnoseErr
	}
	return f.diagnosis, nil
}

func (f *fakeDiagnoser) ApplyFix(context.Context, string, *models.DiagnosisResult, models.ServiceConfig) (string, error) {
	f.fixCalls++
	return "applied", f.fixErr
}

type fakeRepo struct {
	committed bool
	pushErr   error
	prs       []github.DraftPR
	removed   []string
}

func (f *fakeRepo) EnsureClone(_ context.Context, owner, repo, _, incidentID string) (string, error) {
	return "/work/" + owner + "/" + repo + "/" + incidentID, nil
}

func (f *fakeRepo) CreateBranch(_ context.Context, _ string, incidentID string) (string, error) {
	return github.BranchName(incidentID), nil
}

func (f *fakeRepo) CommitAndPush(context.Context, string, string, string) (bool, error) {
	return f.committed, f.pushErr
}

func (f *fakeRepo) OpenDraftPR(_ context.Context, pr github.DraftPR) (*models.PullRequestRef, error) {
	f.prs = append(f.prs, pr)
	return &models.PullRequestRef{URL: "https://github.com/acme/app/pull/12", Number: 12}, nil
}

func (f *fakeRepo) Remove(dir string) error {
	f.removed = append(f.removed, dir)
	return nil
}

type notification struct {
	kind   string
	handle string
	status models.IncidentStatus
	pr     *models.PullRequestRef
	errMsg string
}

type fakeNotifier struct {
	handle     string
	initialErr error
	summaryErr error
	sent       []notification
}

func (f *fakeNotifier) PostInitial(context.Context, string, slack.IncidentInfo) (string, error) {
	if f.initialErr != nil {
		return "", f.initialErr
	}
	f.sent = append(f.sent, notification{kind: "initial"})
	return f.handle, nil
}

func (f *fakeNotifier) UpdateProgress(_ context.Context, _, handle string, _ slack.IncidentInfo, status models.IncidentStatus) error {
	f.sent = append(f.sent, notification{kind: "progress", handle: handle, status: status})
	return nil
}

func (f *fakeNotifier) PostSummary(_ context.Context, _, handle string, _ slack.IncidentInfo, _ *models.DiagnosisResult, pr *models.PullRequestRef, _ time.Duration) error {
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.sent = append(f.sent, notification{kind: "summary", handle: handle, pr: pr})
	return nil
}

func (f *fakeNotifier) PostFailure(_ context.Context, _, handle string, _ slack.IncidentInfo, errMsg string) error {
	f.sent = append(f.sent, notification{kind: "failure", handle: handle, errMsg: errMsg})
	return nil
}

func (f *fakeNotifier) kinds() []string {
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.kind)
	}
	return out
}

type orchestratorFixture struct {
	incidents *fakeIncidents
	logs      *fakeLogs
	agent     *fakeDiagnoser
	repo      *fakeRepo
	notifier  *fakeNotifier
	orch      *Orchestrator
	job       *QueuedJob
}

func confidentDiagnosis() *models.DiagnosisResult {
	return &models.DiagnosisResult{
		RootCause:       "Nil map write in order cache",
		AffectedFiles:   []string{"internal/cache/orders.go"},
		ProposedChanges: []models.ProposedChange{{FilePath: "internal/cache/orders.go", Diff: "-a\n+b", Explanation: "init map"}},
		RiskLevel:       models.RiskLow,
		Confidence:      0.8,
		RawOutput:       "### ROOT_CAUSE\nNil map write in order cache",
	}
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	svc := models.ServiceConfig{
		ID: "svc-1", Name: "orders", ExternalServiceID: "PSVC1",
		RepoOwner: "acme", RepoName: "orders", DefaultBranch: "main", ChatChannel: "C-orders",
		LogSource: models.LogSourceMock,
	}
	alert := models.AlertDescriptor{
		ExternalID: "PD1", Title: "Orders API 500s", Urgency: models.UrgencyHigh,
		ServiceID: "PSVC1", ServiceName: "orders",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		HTMLURL:   "https://acme.pagerduty.com/incidents/PD1",
	}
	inc := &models.Incident{ID: "inc-1", ExternalID: "PD1", Title: alert.Title, Status: models.StatusReceived, Alert: alert}

	f := &orchestratorFixture{
		incidents: newFakeIncidents(inc),
		logs:      &fakeLogs{},
		agent:     &fakeDiagnoser{diagnosis: confidentDiagnosis()},
		repo:      &fakeRepo{committed: true},
		notifier:  &fakeNotifier{handle: "1700.0001"},
		job: &QueuedJob{
			IncidentID: "inc-1",
			Attempts:   1,
			Payload:    models.Job{IncidentID: "inc-1", Alert: alert, Service: svc},
		},
	}
	f.orch = NewOrchestrator(Collaborators{
		Incidents: f.incidents,
		Logs:      f.logs,
		Agent:     f.agent,
		Repo:      f.repo,
		Notifier:  f.notifier,
	}, config.DefaultLogsConfig(), agent.NewGate(agent.DefaultMinConfidence))
	return f
}

func TestOrchestrator_FullRemediation(t *testing.T) {
	f := newOrchestratorFixture(t)

	require.NoError(t, f.orch.Execute(context.Background(), f.job))

	assert.Equal(t, []models.IncidentStatus{
		models.StatusFetchingLogs,
		models.StatusDiagnosing,
		models.StatusGeneratingFix,
		models.StatusCreatingPR,
		models.StatusNotifying,
		models.StatusCompleted,
	}, f.incidents.history)

	inc := f.incidents.current("inc-1")
	assert.Equal(t, "1700.0001", inc.ChatHandle)
	assert.Equal(t, "C-orders", inc.ChatChannel)
	require.NotNil(t, inc.Diagnosis)
	assert.NotEmpty(t, inc.Diagnosis.RawOutput)
	require.NotNil(t, inc.PullRequest)
	assert.Equal(t, 12, inc.PullRequest.Number)

	require.Len(t, f.repo.prs, 1)
	pr := f.repo.prs[0]
	assert.Equal(t, "incident-responder/fix-inc-1", pr.Branch)
	assert.Equal(t, "main", pr.Base)
	assert.Equal(t, "https://acme.pagerduty.com/incidents/PD1", pr.ReferenceURL)
	assert.Equal(t, 1, f.agent.fixCalls)
	assert.Equal(t, []string{"/work/acme/orders/inc-1"}, f.repo.removed)

	assert.Equal(t, []string{"initial", "progress", "progress", "progress", "progress", "summary"}, f.notifier.kinds())
	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, "1700.0001", last.handle)
	require.NotNil(t, last.pr)
	assert.Equal(t, 12, last.pr.Number)

	// Log window surrounds the alert time.
	assert.Equal(t, time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC), f.logs.query.Start)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC), f.logs.query.End)
	assert.Equal(t, "ERROR", f.logs.query.Severity)
	assert.Equal(t, 200, f.logs.query.MaxLines)
}

func TestOrchestrator_GateDeclines(t *testing.T) {
	tests := []struct {
		name      string
		diagnosis *models.DiagnosisResult
	}{
		{"low confidence", func() *models.DiagnosisResult {
			d := confidentDiagnosis()
			d.Confidence = 0.29
			return d
		}()},
		{"no changes", func() *models.DiagnosisResult {
			d := confidentDiagnosis()
			d.ProposedChanges = nil
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(t)
			f.agent.diagnosis = tt.diagnosis

			require.NoError(t, f.orch.Execute(context.Background(), f.job))

			assert.Equal(t, []models.IncidentStatus{
				models.StatusFetchingLogs,
				models.StatusDiagnosing,
				models.StatusNotifying,
				models.StatusCompleted,
			}, f.incidents.history)
			assert.Zero(t, f.agent.fixCalls)
			assert.Empty(t, f.repo.prs)
			summary := f.notifier.sent[len(f.notifier.sent)-1]
			assert.Equal(t, "summary", summary.kind)
			assert.Nil(t, summary.pr)
		})
	}
}

func TestOrchestrator_NothingCommittedSkipsPullRequest(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.repo.committed = false

	require.NoError(t, f.orch.Execute(context.Background(), f.job))

	assert.Equal(t, []models.IncidentStatus{
		models.StatusFetchingLogs,
		models.StatusDiagnosing,
		models.StatusGeneratingFix,
		models.StatusNotifying,
		models.StatusCompleted,
	}, f.incidents.history)
	assert.Empty(t, f.repo.prs)
	assert.Nil(t, f.incidents.current("inc-1").PullRequest)
}

func TestOrchestrator_FailureDuringFixApplication(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.agent.fixErr = errors.New("agent fix exited with code 2 and no output")

	err := f.orch.Execute(context.Background(), f.job)
	require.Error(t, err)

	inc := f.incidents.current("inc-1")
	assert.Equal(t, models.StatusFailed, inc.Status)
	assert.Equal(t, "agent fix exited with code 2 and no output", inc.Error)
	assert.NotContains(t, f.incidents.history, models.StatusCreatingPR)
	assert.Nil(t, inc.PullRequest)
	assert.Empty(t, f.repo.prs)

	failure := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, "failure", failure.kind)
	assert.Equal(t, "1700.0001", failure.handle)
	assert.Contains(t, failure.errMsg, "code 2")
}

func TestOrchestrator_FailureBeforeChatMessage(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.notifier.initialErr = errors.New("channel_not_found")

	err := f.orch.Execute(context.Background(), f.job)
	require.Error(t, err)

	assert.Equal(t, models.StatusFailed, f.incidents.current("inc-1").Status)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "failure", f.notifier.sent[0].kind)
	assert.Empty(t, f.notifier.sent[0].handle)
}

func TestOrchestrator_NotificationFailureFailsIncident(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.notifier.summaryErr = errors.New("rate_limited")

	require.Error(t, f.orch.Execute(context.Background(), f.job))

	assert.Equal(t, models.StatusFailed, f.incidents.current("inc-1").Status)
	assert.NotContains(t, f.incidents.history, models.StatusCompleted)
}

func TestOrchestrator_RetryReopensFailedIncident(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.logs.err = errors.New("datadog: HTTP 503")

	require.Error(t, f.orch.Execute(context.Background(), f.job))
	assert.Equal(t, models.StatusFailed, f.incidents.current("inc-1").Status)

	f.logs.err = nil
	f.job.Attempts = 2
	require.NoError(t, f.orch.Execute(context.Background(), f.job))

	inc := f.incidents.current("inc-1")
	assert.Equal(t, models.StatusCompleted, inc.Status)
	assert.Empty(t, inc.Error)

	initials := 0
	for _, n := range f.notifier.sent {
		if n.kind == "initial" {
			initials++
		}
	}
	assert.Equal(t, 1, initials, "retries reuse the stored chat message")
}

func TestOrchestrator_SkipsCompletedIncident(t *testing.T) {
	f := newOrchestratorFixture(t)
	require.NoError(t, f.orch.Execute(context.Background(), f.job))
	transitions := len(f.incidents.history)

	require.NoError(t, f.orch.Execute(context.Background(), f.job))
	assert.Len(t, f.incidents.history, transitions)
}

func TestOrchestrator_DisabledChat(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.notifier.handle = ""

	require.NoError(t, f.orch.Execute(context.Background(), f.job))
	assert.Empty(t, f.incidents.current("inc-1").ChatHandle)
}

func TestNewOrchestrator_PanicsOnMissingCollaborator(t *testing.T) {
	assert.Panics(t, func() {
		NewOrchestrator(Collaborators{}, config.DefaultLogsConfig(), agent.NewGate(0.3))
	})
}
