package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/responder/pkg/agent"
	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/github"
	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/metrics"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/slack"
)

// IncidentStore is the incident persistence the orchestrator drives.
type IncidentStore interface {
	Get(ctx context.Context, id string) (*models.Incident, error)
	Transition(ctx context.Context, id string, to models.IncidentStatus, detail string) (*models.Incident, error)
	Reopen(ctx context.Context, id string, detail string) (*models.Incident, error)
	SetChatHandle(ctx context.Context, id, channel, handle string) (string, error)
	SetDiagnosis(ctx context.Context, id string, diagnosis *models.DiagnosisResult) error
	SetPullRequest(ctx context.Context, id string, pr models.PullRequestRef) error
}

// LogFetcher retrieves logs around an alert.
type LogFetcher interface {
	Fetch(ctx context.Context, svc models.ServiceConfig, q logs.Query) (*logs.Result, error)
}

// Diagnoser runs the diagnostic agent.
type Diagnoser interface {
	Diagnose(ctx context.Context, in agent.DiagnosisInput) (*models.DiagnosisResult, error)
	ApplyFix(ctx context.Context, repoDir string, d *models.DiagnosisResult, svc models.ServiceConfig) (string, error)
}

// Repository is the version-control collaborator.
type Repository interface {
	EnsureClone(ctx context.Context, owner, repo, base, incidentID string) (string, error)
	CreateBranch(ctx context.Context, dir, incidentID string) (string, error)
	CommitAndPush(ctx context.Context, dir, branch, message string) (bool, error)
	OpenDraftPR(ctx context.Context, pr github.DraftPR) (*models.PullRequestRef, error)
	Remove(dir string) error
}

// Notifier is the chat collaborator.
type Notifier interface {
	PostInitial(ctx context.Context, channel string, info slack.IncidentInfo) (string, error)
	UpdateProgress(ctx context.Context, channel, handle string, info slack.IncidentInfo, status models.IncidentStatus) error
	PostSummary(ctx context.Context, channel, handle string, info slack.IncidentInfo, diagnosis *models.DiagnosisResult, pr *models.PullRequestRef, duration time.Duration) error
	PostFailure(ctx context.Context, channel, handle string, info slack.IncidentInfo, errMsg string) error
}

// Collaborators groups the orchestrator's dependencies.
type Collaborators struct {
	Incidents IncidentStore
	Logs      LogFetcher
	Agent     Diagnoser
	Repo      Repository
	Notifier  Notifier
}

// Orchestrator runs one incident through its lifecycle. Each transition is
// persisted before the phase's side effects start.
type Orchestrator struct {
	Collaborators
	gate    agent.Gate
	logsCfg *config.LogsConfig
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(c Collaborators, logsCfg *config.LogsConfig, gate agent.Gate) *Orchestrator {
	if c.Incidents == nil || c.Logs == nil || c.Agent == nil || c.Repo == nil || c.Notifier == nil {
		panic("NewOrchestrator: all collaborators must be set")
	}
	if logsCfg == nil {
		panic("NewOrchestrator: logsCfg must not be nil")
	}
	return &Orchestrator{
		Collaborators: c,
		gate:          gate,
		logsCfg:       logsCfg,
		now:           time.Now,
	}
}

// pipeline carries the state of one run.
type pipeline struct {
	job     models.Job
	info    slack.IncidentInfo
	channel string
	handle  string
	start   time.Time
	log     *slog.Logger
}

// Execute runs the pipeline. On failure the incident is marked FAILED, a
// failure notice is attempted, and the error is returned so the queue can
// retry the whole job.
func (o *Orchestrator) Execute(ctx context.Context, job *QueuedJob) error {
	p := &pipeline{
		job:   job.Payload,
		start: o.now(),
		log:   slog.With("incident_id", job.IncidentID, "service", job.Payload.Service.Name, "attempt", job.Attempts),
	}
	p.info = slack.IncidentInfo{
		ID:           job.IncidentID,
		Title:        p.job.Alert.Title,
		Urgency:      p.job.Alert.Urgency,
		ServiceName:  p.job.Service.Name,
		ReferenceURL: p.job.Alert.HTMLURL,
	}
	p.channel = p.job.Service.ChatChannel

	inc, err := o.Incidents.Get(ctx, job.IncidentID)
	if err != nil {
		return fmt.Errorf("failed to load incident: %w", err)
	}
	if inc.Status == models.StatusCompleted {
		p.log.Info("Incident already completed, skipping redelivered job")
		return nil
	}
	p.handle = inc.ChatHandle
	if inc.ChatChannel != "" {
		p.channel = inc.ChatChannel
	}

	p.log.Info("Processing incident")
	status, err := o.run(ctx, p, inc.Status, job.Attempts)
	if err != nil {
		o.fail(ctx, p, err)
		return err
	}

	metrics.IncidentsTotal.WithLabelValues(string(status)).Inc()
	metrics.PipelineDuration.WithLabelValues(string(status)).Observe(o.now().Sub(p.start).Seconds())
	return nil
}

func (o *Orchestrator) run(ctx context.Context, p *pipeline, from models.IncidentStatus, attempt int) (models.IncidentStatus, error) {
	id := p.info.ID
	svc := p.job.Service

	// Fetching logs.
	if from == models.StatusReceived {
		if _, err := o.Incidents.Transition(ctx, id, models.StatusFetchingLogs, ""); err != nil {
			return "", err
		}
	} else {
		if _, err := o.Incidents.Reopen(ctx, id, fmt.Sprintf("retry attempt %d", attempt)); err != nil {
			return "", err
		}
	}
	if err := o.ensureChatMessage(ctx, p); err != nil {
		return "", err
	}
	if err := o.progress(ctx, p, models.StatusFetchingLogs); err != nil {
		return "", err
	}
	evidence, err := o.Logs.Fetch(ctx, svc, logs.NewQuery(o.logsCfg, p.job.Alert, svc))
	if err != nil {
		return "", fmt.Errorf("failed to fetch logs: %w", err)
	}
	p.log.Info("Logs fetched", "lines", evidence.RawLineCount, "stack_traces", len(evidence.StackTraces))

	// Diagnosing.
	if err := o.enter(ctx, p, models.StatusDiagnosing); err != nil {
		return "", err
	}
	repoDir, err := o.Repo.EnsureClone(ctx, svc.RepoOwner, svc.RepoName, svc.DefaultBranch, id)
	if err != nil {
		return "", fmt.Errorf("failed to prepare repository: %w", err)
	}
	diagnosis, err := o.Agent.Diagnose(ctx, agent.DiagnosisInput{
		Alert:   p.job.Alert,
		Logs:    evidence,
		Service: svc,
		RepoDir: repoDir,
	})
	if err != nil {
		return "", err
	}
	if err := o.Incidents.SetDiagnosis(ctx, id, diagnosis); err != nil {
		return "", fmt.Errorf("failed to store diagnosis: %w", err)
	}

	decision := o.gate.Evaluate(diagnosis)
	p.log.Info("Gate evaluated", "remediate", decision.Remediate, "reason", decision.Reason)

	var pr *models.PullRequestRef
	if decision.Remediate {
		metrics.GateDecisionsTotal.WithLabelValues("remediate").Inc()
		pr, err = o.remediate(ctx, p, repoDir, diagnosis)
		if err != nil {
			return "", err
		}
	} else {
		metrics.GateDecisionsTotal.WithLabelValues("skip").Inc()
	}

	// Notifying.
	if _, err := o.Incidents.Transition(ctx, id, models.StatusNotifying, ""); err != nil {
		return "", err
	}
	if err := o.Notifier.PostSummary(ctx, p.channel, p.handle, p.info, diagnosis, pr, o.now().Sub(p.start)); err != nil {
		return "", err
	}
	if _, err := o.Incidents.Transition(ctx, id, models.StatusCompleted, ""); err != nil {
		return "", err
	}

	if err := o.Repo.Remove(repoDir); err != nil {
		p.log.Warn("Failed to remove repository clone", "dir", repoDir, "error", err)
	}
	p.log.Info("Incident processing completed", "duration", o.now().Sub(p.start), "pull_request", pr != nil)
	return models.StatusCompleted, nil
}

// remediate applies the fix on the incident branch and opens a draft pull
// request. Returns nil when the agent changed nothing.
func (o *Orchestrator) remediate(ctx context.Context, p *pipeline, repoDir string, d *models.DiagnosisResult) (*models.PullRequestRef, error) {
	id := p.info.ID
	svc := p.job.Service

	if err := o.enter(ctx, p, models.StatusGeneratingFix); err != nil {
		return nil, err
	}
	branch, err := o.Repo.CreateBranch(ctx, repoDir, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create fix branch: %w", err)
	}
	if _, err := o.Agent.ApplyFix(ctx, repoDir, d, svc); err != nil {
		return nil, err
	}
	committed, err := o.Repo.CommitAndPush(ctx, repoDir, branch, github.CommitMessage(p.info.Title, id, d))
	if err != nil {
		return nil, fmt.Errorf("failed to push fix: %w", err)
	}
	if !committed {
		p.log.Warn("Fix pass produced no changes, skipping pull request")
		return nil, nil
	}

	if err := o.enter(ctx, p, models.StatusCreatingPR); err != nil {
		return nil, err
	}
	pr, err := o.Repo.OpenDraftPR(ctx, github.DraftPR{
		Owner:        svc.RepoOwner,
		Repo:         svc.RepoName,
		Branch:       branch,
		Base:         svc.DefaultBranch,
		IncidentID:   id,
		Diagnosis:    d,
		ReferenceURL: p.job.Alert.HTMLURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pull request: %w", err)
	}
	if err := o.Incidents.SetPullRequest(ctx, id, *pr); err != nil {
		return nil, fmt.Errorf("failed to store pull request: %w", err)
	}
	p.log.Info("Draft pull request opened", "url", pr.URL, "number", pr.Number)
	return pr, nil
}

// enter persists a transition, then reflects it in chat.
func (o *Orchestrator) enter(ctx context.Context, p *pipeline, to models.IncidentStatus) error {
	if _, err := o.Incidents.Transition(ctx, p.info.ID, to, ""); err != nil {
		return err
	}
	return o.progress(ctx, p, to)
}

func (o *Orchestrator) progress(ctx context.Context, p *pipeline, status models.IncidentStatus) error {
	return o.Notifier.UpdateProgress(ctx, p.channel, p.handle, p.info, status)
}

// ensureChatMessage posts the incident message once per incident; retries
// reuse the stored handle.
func (o *Orchestrator) ensureChatMessage(ctx context.Context, p *pipeline) error {
	if p.handle != "" {
		return nil
	}
	handle, err := o.Notifier.PostInitial(ctx, p.channel, p.info)
	if err != nil {
		return err
	}
	if handle == "" {
		return nil
	}
	stored, err := o.Incidents.SetChatHandle(ctx, p.info.ID, p.channel, handle)
	if err != nil {
		return fmt.Errorf("failed to store chat handle: %w", err)
	}
	p.handle = stored
	return nil
}

// fail records FAILED and posts a best-effort failure notice.
func (o *Orchestrator) fail(ctx context.Context, p *pipeline, cause error) {
	ctx = context.WithoutCancel(ctx)
	p.log.Error("Incident processing failed", "error", cause)

	if _, err := o.Incidents.Transition(ctx, p.info.ID, models.StatusFailed, cause.Error()); err != nil {
		p.log.Error("Failed to mark incident as failed", "error", err)
	}
	if err := o.Notifier.PostFailure(ctx, p.channel, p.handle, p.info, cause.Error()); err != nil {
		p.log.Error("Failed to post failure notification", "error", err)
	}
	metrics.IncidentsTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	metrics.PipelineDuration.WithLabelValues(string(models.StatusFailed)).Observe(o.now().Sub(p.start).Seconds())
}
