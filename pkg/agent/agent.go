// Package agent drives the external diagnostic agent CLI: it builds prompts,
// runs the process under a timeout, parses its free-form output into a
// structured diagnosis and gates remediation on the result.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// DiagnosisInput is everything the diagnosis pass needs.
type DiagnosisInput struct {
	Alert   models.AlertDescriptor
	Logs    *logs.Result
	Service models.ServiceConfig

	// RepoDir is the local clone the agent runs in.
	RepoDir string
}

// Agent runs the diagnosis and fix passes with their capability sets.
type Agent struct {
	invoker        *Invoker
	diagnosisTools []string
	fixTools       []string
}

// New creates an Agent. Panics if cfg or invoker is nil.
func New(cfg *config.AgentConfig, invoker *Invoker) *Agent {
	if cfg == nil || invoker == nil {
		panic("agent.New: cfg and invoker must not be nil")
	}
	return &Agent{
		invoker:        invoker,
		diagnosisTools: cfg.DiagnosisTools,
		fixTools:       cfg.FixTools,
	}
}

// Diagnose runs the read-only pass and parses its output. Only invocation
// failures are returned as errors; unparseable output yields a low-confidence
// result.
func (a *Agent) Diagnose(ctx context.Context, in DiagnosisInput) (*models.DiagnosisResult, error) {
	raw, err := a.invoker.Invoke(ctx, Request{
		Kind:    KindDiagnosis,
		Prompt:  BuildDiagnosisPrompt(in.Alert, in.Logs, in.Service),
		WorkDir: in.RepoDir,
		Tools:   a.diagnosisTools,
	})
	if err != nil {
		return nil, fmt.Errorf("diagnosis pass: %w", err)
	}

	d := ParseDiagnosis(raw)
	slog.Info("Diagnosis parsed",
		"service", in.Service.Name,
		"confidence", d.Confidence,
		"risk", d.RiskLevel,
		"affected_files", len(d.AffectedFiles),
		"proposed_changes", len(d.ProposedChanges))
	return d, nil
}

// ApplyFix runs the read/write pass that edits repoDir according to the
// diagnosis and returns the agent's raw output.
func (a *Agent) ApplyFix(ctx context.Context, repoDir string, d *models.DiagnosisResult, svc models.ServiceConfig) (string, error) {
	if d == nil {
		return "", fmt.Errorf("fix pass: no diagnosis")
	}
	out, err := a.invoker.Invoke(ctx, Request{
		Kind:    KindFix,
		Prompt:  BuildFixPrompt(d.RawOutput, svc),
		WorkDir: repoDir,
		Tools:   a.fixTools,
	})
	if err != nil {
		return "", fmt.Errorf("fix pass: %w", err)
	}
	return out, nil
}
