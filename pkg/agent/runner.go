package agent

import (
	"bytes"
	"context"
	"time"
)

// CommandSpec describes one agent process.
type CommandSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string

	// Timeout is the wall-clock limit. On expiry the process group gets
	// SIGTERM, then SIGKILL once KillGrace has passed.
	Timeout   time.Duration
	KillGrace time.Duration
}

// CommandResult is what a finished process left behind.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// CommandRunner runs an agent process to completion. It returns an error only
// when the process could not be started; non-zero exits and timeouts are
// reported in the result.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

// tailBuffer keeps only the last limit bytes written.
type tailBuffer struct {
	limit int
	buf   *bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}
