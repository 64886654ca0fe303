package gateway

import (
	"sync"
	"sync/atomic"
	"time"
)

// Board tracks per-provider health across requests: a consecutive-failure
// counter and a last-success timestamp. It is a weak-consistency signal
// used only to bias provider ordering; it is never required for
// correctness, and concurrent requests may observe briefly stale values.
type Board struct {
	m sync.Map // provider id -> *healthEntry
}

type healthEntry struct {
	failures    atomic.Int64
	lastSuccess atomic.Int64 // unix nanoseconds, 0 = never
}

// ProviderHealth is a read-only snapshot of one provider's health.
type ProviderHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
}

// NewBoard returns an empty health board.
func NewBoard() *Board { return &Board{} }

func (b *Board) entry(id string) *healthEntry {
	if e, ok := b.m.Load(id); ok {
		return e.(*healthEntry)
	}
	e, _ := b.m.LoadOrStore(id, &healthEntry{})
	return e.(*healthEntry)
}

// RecordSuccess resets the provider's failure counter and stamps now as
// its last success.
func (b *Board) RecordSuccess(id string) {
	e := b.entry(id)
	e.failures.Store(0)
	e.lastSuccess.Store(time.Now().UnixNano())
}

// RecordFailure increments the provider's consecutive-failure counter.
func (b *Board) RecordFailure(id string) {
	b.entry(id).failures.Add(1)
}

// Failures returns the provider's consecutive-failure count.
func (b *Board) Failures(id string) int {
	if e, ok := b.m.Load(id); ok {
		return int(e.(*healthEntry).failures.Load())
	}
	return 0
}

// LastSuccess returns the provider's last success time; the zero time
// means the provider has never succeeded in this process.
func (b *Board) LastSuccess(id string) time.Time {
	if e, ok := b.m.Load(id); ok {
		if ns := e.(*healthEntry).lastSuccess.Load(); ns > 0 {
			return time.Unix(0, ns)
		}
	}
	return time.Time{}
}

// Snapshot copies the board for reporting endpoints.
func (b *Board) Snapshot() map[string]ProviderHealth {
	out := make(map[string]ProviderHealth)
	b.m.Range(func(k, v any) bool {
		e := v.(*healthEntry)
		h := ProviderHealth{ConsecutiveFailures: int(e.failures.Load())}
		if ns := e.lastSuccess.Load(); ns > 0 {
			h.LastSuccess = time.Unix(0, ns)
		}
		out[k.(string)] = h
		return true
	})
	return out
}
