// Package subproc spawns external model backends with fully captured
// stdio, a hard wall-clock timeout, and guaranteed process-group cleanup.
package subproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// killGrace is how long a terminated process group gets to exit before
// it is force-killed.
const killGrace = 2 * time.Second

// Spec describes one subprocess invocation.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Timeout bounds the whole run; zero relies on ctx alone.
	Timeout time.Duration
}

// RunResult is the structured outcome of one run. TimedOut is not an
// error by itself; callers translate it to their own timeout error.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Run spawns the command with stdout/stderr captured incrementally and no
// inherited terminal. On timeout the process group receives SIGTERM,
// then SIGKILL after a grace period; whatever output was captured up to
// that point is returned with TimedOut set. Context cancellation kills
// the group the same way and is returned as the context's error. No
// process is left running after Run returns.
func Run(ctx context.Context, spec Spec) (RunResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Own process group so termination reaches any children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	var timedOut bool
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		terminate(cmd.Process.Pid)
		select {
		case waitErr = <-done:
		case <-time.After(killGrace):
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			waitErr = <-done
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return RunResult{
				ExitCode: exitCode(waitErr),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, ctx.Err()
		}
		timedOut = true
	}

	res := RunResult{
		ExitCode: exitCode(waitErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}
	return res, nil
}

func terminate(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		return ee.ExitCode()
	}
	return -1
}
