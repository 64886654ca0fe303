// Package llamacli adapts a locally installed model CLI (for example
// `ollama run <model>`) as a subprocess text provider.
package llamacli

import (
	"context"
	"strings"
	"time"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
	"github.com/jacky-htg/ai-gateway/libs/subproc"
)

// Runner invokes the CLI once per request. The model identifier and the
// escaped prompt are appended to the base arguments.
type Runner struct {
	command  string
	baseArgs []string
	dir      string
	timeout  time.Duration
}

// New returns a runner for the default `ollama run` invocation.
func New() *Runner {
	return NewWithCommand("ollama", []string{"run"}, "", 0)
}

// NewWithCommand creates a runner for an arbitrary CLI. A zero timeout
// relies on the attempt deadline alone.
func NewWithCommand(command string, baseArgs []string, dir string, timeout time.Duration) *Runner {
	if command == "" {
		command = "ollama"
	}
	return &Runner{command: command, baseArgs: baseArgs, dir: dir, timeout: timeout}
}

// Complete runs the CLI to completion and decodes its stdout, which may
// be structured JSON or raw text depending on the backend's flags.
func (r *Runner) Complete(ctx context.Context, req gateway.Request) (gateway.Payload, error) {
	args := make([]string, 0, len(r.baseArgs)+2)
	args = append(args, r.baseArgs...)
	if req.Model != "" {
		args = append(args, req.Model)
	}
	args = append(args, subproc.QuoteArg(req.Prompt()))

	res, err := subproc.Run(ctx, subproc.Spec{
		Command: r.command,
		Args:    args,
		Dir:     r.dir,
		Timeout: r.timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "llamacli",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "process failed to start",
			Cause:    err,
		}
	}
	if res.TimedOut {
		return gateway.Payload{}, &gateway.Error{
			Provider: "llamacli",
			Kind:     gateway.ErrKindTimeout,
			Message:  "process killed after timeout",
		}
	}
	if res.ExitCode != 0 {
		return gateway.Payload{}, &gateway.Error{
			Provider: "llamacli",
			Kind:     gateway.ErrKindSubprocessExit,
			Message:  exitMessage(res),
		}
	}

	dec := subproc.DecodeOutput(res.Stdout)
	return gateway.Payload{Content: dec.Content}, nil
}

func exitMessage(res subproc.RunResult) string {
	msg := strings.TrimSpace(res.Stderr)
	if len(msg) > 512 {
		msg = msg[len(msg)-512:]
	}
	if msg == "" {
		msg = "no stderr output"
	}
	return msg
}
