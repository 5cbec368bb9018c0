//go:build !unix

package agent

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// ExecRunner runs commands with os/exec. Without process groups only the
// direct child is killed on timeout; its own children may outlive it.
type ExecRunner struct{}

// Run starts the process and waits for it.
func (ExecRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = &stdout
	cmd.Stderr = &tailBuffer{limit: 64 << 10, buf: &stderr}
	cmd.WaitDelay = spec.KillGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandResult{}, err
	}
	waitErr := cmd.Wait()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) && runCtx.Err() == nil {
		return result, waitErr
	}
	return result, nil
}
