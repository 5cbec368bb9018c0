package agent

import (
	"fmt"
	"time"
)

// InvocationError reports a hard failure of the agent process: it could not
// be started, or it exited unsuccessfully without producing any output.
type InvocationError struct {
	Kind     Kind
	ExitCode int
	TimedOut bool
	Timeout  time.Duration
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("agent %s invocation failed: %v", e.Kind, e.Err)
	case e.TimedOut:
		return fmt.Sprintf("agent %s invocation timed out after %s without output", e.Kind, e.Timeout)
	case e.Stderr != "":
		return fmt.Sprintf("agent %s exited with code %d: %s", e.Kind, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("agent %s exited with code %d and no output", e.Kind, e.ExitCode)
	}
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
