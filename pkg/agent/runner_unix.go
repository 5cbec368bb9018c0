//go:build unix

package agent

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts the process in its own process group and waits for it.
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
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	// After the grace period os/exec kills the leader and closes the pipes.
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
	if runCtx.Err() != nil {
		// Reap anything left in the group, e.g. children that ignored SIGTERM.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) && runCtx.Err() == nil {
		return result, waitErr
	}
	return result, nil
}
