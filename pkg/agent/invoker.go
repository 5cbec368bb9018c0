package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/metrics"
)

// Kind distinguishes the two agent passes.
type Kind string

// Agent passes.
const (
	KindDiagnosis Kind = "diagnosis"
	KindFix       Kind = "fix"
)

// PromptFileEnv names the env var carrying the prompt scratch file path.
const PromptFileEnv = "RESPONDER_PROMPT_FILE"

const stderrTailBytes = 500

// Request is one agent invocation.
type Request struct {
	Kind    Kind
	Prompt  string
	WorkDir string

	// Tools is the capability allowlist passed to the agent.
	Tools []string
}

// Invoker runs the agent CLI non-interactively and returns its stdout.
type Invoker struct {
	cfg    *config.AgentConfig
	runner CommandRunner
	logger *slog.Logger
}

// NewInvoker creates an Invoker. Panics if cfg or runner is nil.
func NewInvoker(cfg *config.AgentConfig, runner CommandRunner) *Invoker {
	if cfg == nil {
		panic("agent.NewInvoker: cfg must not be nil")
	}
	if runner == nil {
		panic("agent.NewInvoker: runner must not be nil")
	}
	return &Invoker{
		cfg:    cfg,
		runner: runner,
		logger: slog.With("component", "agent_invoker"),
	}
}

// Invoke runs the agent for req and returns its raw output.
//
// Output produced by a process that timed out or exited non-zero is returned
// as-is. An *InvocationError is returned when the process could not be
// started, or when it failed without writing anything to stdout. The prompt
// scratch file is removed on every path.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (string, error) {
	promptFile, err := inv.writePromptFile(req.Prompt)
	if err != nil {
		return "", &InvocationError{Kind: req.Kind, ExitCode: -1, Err: err}
	}
	defer os.Remove(promptFile)

	spec := CommandSpec{
		Path:      inv.cfg.CLIPath,
		Args:      inv.args(req),
		Dir:       req.WorkDir,
		Env:       inv.env(promptFile),
		Timeout:   inv.cfg.Timeout,
		KillGrace: inv.cfg.KillGrace,
	}

	log := inv.logger.With("kind", req.Kind, "cwd", req.WorkDir)
	log.Info("Invoking agent CLI", "tools", req.Tools)

	start := time.Now()
	res, err := inv.runner.Run(ctx, spec)
	if err != nil {
		inv.observe(req.Kind, "failed", start)
		log.Error("Failed to spawn agent CLI", "error", err)
		return "", &InvocationError{Kind: req.Kind, ExitCode: -1, Err: fmt.Errorf("spawn %s: %w", spec.Path, err)}
	}

	stderrTail := tail(res.Stderr, stderrTailBytes)
	failed := res.TimedOut || res.ExitCode != 0

	if strings.TrimSpace(res.Stdout) == "" {
		if failed {
			inv.observe(req.Kind, "failed", start)
			log.Error("Agent CLI failed without output",
				"exit_code", res.ExitCode, "timed_out", res.TimedOut, "stderr", stderrTail)
			return "", &InvocationError{
				Kind:     req.Kind,
				ExitCode: res.ExitCode,
				TimedOut: res.TimedOut,
				Timeout:  inv.cfg.Timeout,
				Stderr:   stderrTail,
			}
		}
		inv.observe(req.Kind, "empty", start)
		log.Warn("Agent CLI produced no output")
		return "", nil
	}

	if failed {
		inv.observe(req.Kind, "salvaged", start)
		log.Warn("Agent CLI did not finish cleanly, using partial output",
			"exit_code", res.ExitCode, "timed_out", res.TimedOut,
			"output_length", len(res.Stdout), "stderr", stderrTail)
	} else {
		inv.observe(req.Kind, "success", start)
		if stderrTail != "" {
			log.Debug("Agent CLI stderr output", "stderr", stderrTail)
		}
	}

	log.Info("Agent CLI finished", "output_length", len(res.Stdout), "duration", res.Duration)
	return res.Stdout, nil
}

func (inv *Invoker) writePromptFile(prompt string) (string, error) {
	dir := inv.cfg.ScratchDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("create scratch dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "prompt-*.md")
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	if _, err := f.WriteString(prompt); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close prompt file: %w", err)
	}
	return f.Name(), nil
}

func (inv *Invoker) args(req Request) []string {
	return []string{
		"--print",
		"--output-format", inv.cfg.OutputFormat,
		"--max-turns", strconv.Itoa(inv.cfg.MaxTurns),
		"--allowedTools", strings.Join(req.Tools, ","),
		"-p", req.Prompt,
	}
}

func (inv *Invoker) env(promptFile string) []string {
	env := append(os.Environ(), PromptFileEnv+"="+promptFile)
	if inv.cfg.APIKeyEnv != "" {
		if key, ok := os.LookupEnv(inv.cfg.APIKeyEnv); ok {
			env = append(env, inv.cfg.APIKeyEnv+"="+key)
		}
	}
	return env
}

func (inv *Invoker) observe(kind Kind, outcome string, start time.Time) {
	metrics.AgentInvocationDuration.WithLabelValues(string(kind), outcome).Observe(time.Since(start).Seconds())
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
