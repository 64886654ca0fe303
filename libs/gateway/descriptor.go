package gateway

import (
	"context"
	"io"
	"sync"
	"time"
)

// InvocationKind tags how a provider is invoked.
type InvocationKind string

const (
	InvokeStream   InvocationKind = "network-stream"
	InvokeBlocking InvocationKind = "network-blocking"
	InvokeProcess  InvocationKind = "subprocess"
)

// Streamer opens a raw newline-framed event stream for the request. The
// returned reader is ctx-bound: canceling the context aborts the read.
type Streamer interface {
	OpenStream(ctx context.Context, req Request) (io.ReadCloser, error)
}

// Payload is a blocking provider's normalized output. Usage is nil when
// the provider does not report accounting.
type Payload struct {
	Content string
	Audio   []byte
	Usage   *Usage
}

// Completer performs a single awaited invocation.
type Completer interface {
	Complete(ctx context.Context, req Request) (Payload, error)
}

// ProviderDescriptor binds a provider id to its invocation kind and the
// adapter that builds the provider-specific payload from a Request.
type ProviderDescriptor struct {
	ID         string
	Kind       InvocationKind
	Capability Capability
	// Models restricts the descriptor to specific model identifiers;
	// empty means any model.
	Models []string
	// CredentialRef names the credential this provider authenticates
	// with. After an auth failure, providers sharing the same non-empty
	// ref are skipped for the remainder of the request.
	CredentialRef  string
	AttemptTimeout time.Duration

	Streamer  Streamer  // set when Kind == InvokeStream
	Completer Completer // set otherwise
}

func (d ProviderDescriptor) servesModel(model string) bool {
	if len(d.Models) == 0 {
		return true
	}
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Table is the provider descriptor catalog. Resolve returns snapshot
// copies, so registering or removing descriptors at runtime never affects
// an attempt already in flight.
type Table struct {
	mu      sync.RWMutex
	entries map[Capability][]ProviderDescriptor
}

// NewTable returns an empty descriptor table.
func NewTable() *Table {
	return &Table{entries: make(map[Capability][]ProviderDescriptor)}
}

// Register appends descriptors in caller-declared priority order.
func (t *Table) Register(descs ...ProviderDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range descs {
		t.entries[d.Capability] = append(t.entries[d.Capability], d)
	}
}

// Remove deletes a descriptor by capability and id.
func (t *Table) Remove(capability Capability, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.entries[capability]
	for i, d := range list {
		if d.ID == id {
			t.entries[capability] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Resolve returns the ordered candidate list for a capability and model
// as a snapshot copy, or ErrNoProviderConfigured when empty.
func (t *Table) Resolve(capability Capability, model string) ([]ProviderDescriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ProviderDescriptor
	for _, d := range t.entries[capability] {
		if d.servesModel(model) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoProviderConfigured
	}
	return out, nil
}
