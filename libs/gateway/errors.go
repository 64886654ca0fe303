package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorKind is a stable, provider-agnostic failure classification.
type ErrorKind string

const (
	ErrKindAuth           ErrorKind = "auth"
	ErrKindRateLimit      ErrorKind = "rate_limit"
	ErrKindBadRequest     ErrorKind = "bad_request"
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindProtocolParse  ErrorKind = "protocol_parse"
	ErrKindUnavailable    ErrorKind = "unavailable"
	ErrKindSubprocessExit ErrorKind = "subprocess_exit"
)

// ErrNoProviderConfigured is returned by the descriptor table when no
// provider is registered for the requested capability and model.
var ErrNoProviderConfigured = errors.New("gateway: no provider configured")

// Error is the typed failure a provider adapter reports to the
// controller. Only the exhaustion error ever reaches the caller; every
// other kind is an internal signal to advance the fallback chain.
type Error struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts a typed gateway error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorFromStatus maps a non-2xx provider HTTP response to a typed error.
// The body reader is drained so the transport connection can be reused.
func ErrorFromStatus(provider string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	kind := ErrKindUnavailable
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ErrKindAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ErrKindRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = ErrKindBadRequest
	}
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
	}
}

// classify reduces an attempt error to its taxonomy kind and message.
func classify(err error) (ErrorKind, string) {
	if e, ok := AsError(err); ok {
		return e.Kind, e.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout, "attempt exceeded its deadline"
	}
	return ErrKindUnavailable, err.Error()
}

// TraceEntry is one provider's failure reason within an exhausted chain.
type TraceEntry struct {
	Provider string    `json:"provider"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Skipped  bool      `json:"skipped,omitempty"`
}

// ExhaustedError is the terminal failure returned once every provider in
// the chain has been attempted. It carries the ordered per-provider
// failure reasons for diagnostics.
type ExhaustedError struct {
	Capability Capability
	Model      string
	Trace      []TraceEntry
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed for %s/%s (%d attempted)",
		e.Capability, e.Model, len(e.Trace))
}

// AsExhausted extracts an ExhaustedError from an error chain.
func AsExhausted(err error) (*ExhaustedError, bool) {
	var e *ExhaustedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
