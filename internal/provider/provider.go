// Package provider defines the normalized streaming contract every backend
// adapter implements, the registry mapping provider IDs to adapters, the
// error taxonomy shared by adapters, and probe-driven health tracking.
package provider

import "context"

// Adapter turns one provider's wire format into an ordered sequence of
// text deltas.
type Adapter interface {
	// Stream issues the request and returns a channel of deltas in delivery
	// order. Errors establishing the stream (including non-2xx statuses)
	// are returned directly. A failure after the stream started is
	// delivered as the last chunk's Err. The channel is closed when the
	// stream ends or ctx is cancelled.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// Prober is implemented by adapters that support a lightweight
// reachability and credential check.
type Prober interface {
	// Probe returns nil when the provider's status endpoint answers with
	// a 2xx response for the given credential.
	Probe(ctx context.Context, credential string) error
}
