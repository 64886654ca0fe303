// Package gateway routes a generation request to one of several
// heterogeneous backend providers and normalizes their responses into a
// single canonical result, falling back between providers on failure.
package gateway

import (
	"strings"
	"time"
)

// Capability is the kind of generation a Request asks for.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilitySpeech Capability = "speech"
)

// Turn is a single conversation turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the generation parameters forwarded to providers.
type Params struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxUnits    int     `json:"max_units,omitempty"`
	Voice       string  `json:"voice,omitempty"`
}

// Request is one caller request. It is immutable once handed to the
// controller and owns no state that outlives the Result.
type Request struct {
	ID              string
	Capability      Capability
	Model           string
	Turns           []Turn
	Params          Params
	ContextPreamble string
	// AllowReorder permits health-biased reordering of the provider
	// chain. The declared order is used verbatim otherwise.
	AllowReorder bool
}

// Prompt flattens the preamble and turns into a single prompt string for
// providers that take free text rather than structured messages.
func (r Request) Prompt() string {
	var b strings.Builder
	if r.ContextPreamble != "" {
		b.WriteString(r.ContextPreamble)
		b.WriteString("\n\n")
	}
	for i, t := range r.Turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role != "" && t.Role != "user" {
			b.WriteString(t.Role)
			b.WriteString(": ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

// Messages returns the structured turn list with the context preamble, if
// any, injected ahead of the conversation as a system turn.
func (r Request) Messages() []Turn {
	if r.ContextPreamble == "" {
		return r.Turns
	}
	msgs := make([]Turn, 0, len(r.Turns)+1)
	msgs = append(msgs, Turn{Role: "system", Content: r.ContextPreamble})
	return append(msgs, r.Turns...)
}

// SourceText is the text to synthesize for a speech request.
func (r Request) SourceText() string {
	var b strings.Builder
	for i, t := range r.Turns {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

func (r Request) inputChars() int {
	n := len(r.ContextPreamble)
	for _, t := range r.Turns {
		n += len(t.Content)
	}
	return n
}

// Usage is the unit accounting attached to a Result. Estimated is true
// when the provider did not report counts and they were derived from
// content length instead.
type Usage struct {
	Input     int  `json:"input"`
	Output    int  `json:"output"`
	Total     int  `json:"total"`
	Estimated bool `json:"estimated,omitempty"`
}

// Result is the canonical response returned to the caller. Method always
// names the provider that actually produced the content, never the
// originally preferred one.
type Result struct {
	Content  string
	Audio    []byte
	Usage    Usage
	Method   string
	Warnings []string
}

// AttemptStatus is the terminal state of one provider invocation.
type AttemptStatus string

const (
	AttemptSucceeded     AttemptStatus = "succeeded"
	AttemptFailedTimeout AttemptStatus = "failed-timeout"
	AttemptFailedError   AttemptStatus = "failed-error"
	// AttemptSkipped marks a provider bypassed because it shares the
	// credential of an earlier auth failure.
	AttemptSkipped AttemptStatus = "skipped"
)

// Attempt records one provider invocation within a request's fallback
// sequence, for diagnostics and journaling.
type Attempt struct {
	Provider  string
	Status    AttemptStatus
	ErrorKind ErrorKind
	Message   string
	StartedAt time.Time
	EndedAt   time.Time
}
