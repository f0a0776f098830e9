// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/brandai/internal/provider"
)

// MockAdapter is a configurable test double for provider.Adapter and
// provider.Prober. Set the Func fields to control behavior; an unset
// StreamFunc streams nothing and an unset ProbeFunc succeeds.
// All methods are safe for concurrent use.
type MockAdapter struct {
	StreamFunc func(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error)
	ProbeFunc  func(ctx context.Context, credential string) error

	mu          sync.Mutex
	StreamCalls int
	ProbeCalls  int
	LastRequest provider.Request
}

// Stream delegates to StreamFunc and records the request.
func (m *MockAdapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.LastRequest = req
	m.mu.Unlock()
	if m.StreamFunc == nil {
		return Chunks(), nil
	}
	return m.StreamFunc(ctx, req)
}

// Probe delegates to ProbeFunc and tracks call count.
func (m *MockAdapter) Probe(ctx context.Context, credential string) error {
	m.mu.Lock()
	m.ProbeCalls++
	m.mu.Unlock()
	if m.ProbeFunc == nil {
		return nil
	}
	return m.ProbeFunc(ctx, credential)
}

// Calls returns the stream and probe call counts.
func (m *MockAdapter) Calls() (stream, probe int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StreamCalls, m.ProbeCalls
}

// Request returns the last request passed to Stream.
func (m *MockAdapter) Request() provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// Chunks returns a closed, pre-filled channel delivering one chunk per
// delta.
func Chunks(deltas ...string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, len(deltas))
	for _, d := range deltas {
		ch <- provider.StreamChunk{Delta: d}
	}
	close(ch)
	return ch
}

// ChunksThenError is like Chunks but ends with a chunk carrying err.
func ChunksThenError(err error, deltas ...string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, len(deltas)+1)
	for _, d := range deltas {
		ch <- provider.StreamChunk{Delta: d}
	}
	ch <- provider.StreamChunk{Err: err}
	close(ch)
	return ch
}

// Interface guards.
var (
	_ provider.Adapter = (*MockAdapter)(nil)
	_ provider.Prober  = (*MockAdapter)(nil)
)
