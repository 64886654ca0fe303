package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jacky-htg/ai-gateway/libs/stream"
)

// Progress is a coarse request state emitted on the optional progress
// channel, in order, while a request is being served.
type Progress string

const (
	ProgressConnecting Progress = "connecting"
	ProgressStreaming  Progress = "streaming"
	ProgressThinking   Progress = "thinking"
	ProgressComplete   Progress = "complete"
)

const defaultAttemptTimeout = 30 * time.Second

// Controller attempts providers strictly in order for one request at a
// time, applying a per-attempt timeout and error classification, stopping
// at the first success and otherwise exhausting the chain. Attempts are
// never run in parallel speculatively.
type Controller struct {
	table    *Table
	board    *Board
	log      log.FieldLogger
	progress chan<- Progress
}

// Option configures a Controller.
type Option func(*Controller)

// WithProgress attaches a channel receiving ordered progress events.
// Sends are non-blocking: a slow consumer loses events, never stalls the
// request.
func WithProgress(ch chan<- Progress) Option {
	return func(c *Controller) { c.progress = ch }
}

// WithLogger overrides the controller's logger.
func WithLogger(l log.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController builds a controller over the descriptor table and the
// process-wide health board. The board is shared by reference across
// controllers; see Board for its weak-consistency contract.
func NewController(table *Table, board *Board, opts ...Option) *Controller {
	c := &Controller{table: table, board: board, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs the fallback chain for one request. It returns the assembled
// result on first success, the full ordered attempt record either way,
// and on exhaustion an *ExhaustedError carrying the failure trace.
// Cancellation is terminal: it aborts the in-flight attempt and never
// advances to the next provider.
func (c *Controller) Do(ctx context.Context, req Request) (*Result, []Attempt, error) {
	descs, err := c.table.Resolve(req.Capability, req.Model)
	if err != nil {
		return nil, nil, err
	}
	if req.AllowReorder {
		c.orderByHealth(descs)
	}

	var (
		attempts []Attempt
		trace    []TraceEntry
		warnings []string
		badCreds map[string]bool
	)

	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}
		if d.CredentialRef != "" && badCreds[d.CredentialRef] {
			attempts = append(attempts, Attempt{
				Provider:  d.ID,
				Status:    AttemptSkipped,
				ErrorKind: ErrKindAuth,
				Message:   "credential already rejected",
			})
			trace = append(trace, TraceEntry{
				Provider: d.ID,
				Kind:     ErrKindAuth,
				Message:  "skipped: shares rejected credential",
				Skipped:  true,
			})
			continue
		}

		c.emit(ProgressConnecting)
		att := Attempt{Provider: d.ID, StartedAt: time.Now()}
		res, aerr := c.attempt(ctx, d, req)
		att.EndedAt = time.Now()

		if aerr == nil {
			att.Status = AttemptSucceeded
			attempts = append(attempts, att)
			c.board.RecordSuccess(d.ID)
			res.Method = d.ID
			res.Warnings = warnings
			c.emit(ProgressComplete)
			c.log.WithFields(log.Fields{
				"request_id": req.ID,
				"provider":   d.ID,
				"attempts":   len(attempts),
				"latency_ms": att.EndedAt.Sub(att.StartedAt).Milliseconds(),
			}).Info("request served")
			return res, attempts, nil
		}

		// Cancellation is terminal, not a trigger for fallback.
		if ctx.Err() != nil && !errors.Is(aerr, context.DeadlineExceeded) {
			return nil, attempts, ctx.Err()
		}

		kind, msg := classify(aerr)
		if kind == ErrKindTimeout {
			att.Status = AttemptFailedTimeout
		} else {
			att.Status = AttemptFailedError
		}
		att.ErrorKind = kind
		att.Message = msg
		attempts = append(attempts, att)
		trace = append(trace, TraceEntry{Provider: d.ID, Kind: kind, Message: msg})
		warnings = append(warnings, fmt.Sprintf("fell back from provider %s: %s", d.ID, kind))
		c.board.RecordFailure(d.ID)

		if (kind == ErrKindAuth || kind == ErrKindBadRequest) && d.CredentialRef != "" {
			if badCreds == nil {
				badCreds = make(map[string]bool)
			}
			badCreds[d.CredentialRef] = true
		}

		c.log.WithFields(log.Fields{
			"request_id": req.ID,
			"provider":   d.ID,
			"kind":       string(kind),
			"error":      msg,
		}).Warn("provider attempt failed")
	}

	return nil, attempts, &ExhaustedError{
		Capability: req.Capability,
		Model:      req.Model,
		Trace:      trace,
	}
}

// attempt invokes one provider under its per-attempt deadline.
func (c *Controller) attempt(ctx context.Context, d ProviderDescriptor, req Request) (*Result, error) {
	timeout := d.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch d.Kind {
	case InvokeStream:
		return c.collectStream(actx, d, req)
	default:
		c.emit(ProgressThinking)
		payload, err := d.Completer.Complete(actx, req)
		if err != nil {
			return nil, err
		}
		return assemble(req, payload), nil
	}
}

// collectStream drains a streaming provider into a full result. An error
// mid-stream discards any partial content: the caller never receives a
// half-formed answer silently spliced with a fallback's answer.
func (c *Controller) collectStream(ctx context.Context, d ProviderDescriptor, req Request) (*Result, error) {
	rc, err := d.Streamer.OpenStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	c.emit(ProgressStreaming)

	norm := stream.NewNormalizer(rc, stream.WithLogger(c.log))
	var sb strings.Builder
	var usage *Usage
	for {
		tok, err := norm.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		switch tok.Kind {
		case stream.TokenText:
			sb.WriteString(tok.Text)
		case stream.TokenUsage:
			usage = &Usage{
				Input:  tok.Usage.Input,
				Output: tok.Usage.Output,
				Total:  tok.Usage.Total,
			}
		case stream.TokenDone:
			// Normalizer returns io.EOF on the next call.
		}
	}
	return assemble(req, Payload{Content: sb.String(), Usage: usage}), nil
}

// orderByHealth stable-sorts descriptors by ascending consecutive-failure
// count; ties preserve the declared order.
func (c *Controller) orderByHealth(descs []ProviderDescriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		return c.board.Failures(descs[i].ID) < c.board.Failures(descs[j].ID)
	})
}

func (c *Controller) emit(p Progress) {
	if c.progress == nil {
		return
	}
	select {
	case c.progress <- p:
	default:
	}
}
