package chat

import (
	"context"
	"sync"

	"github.com/flemzord/brandai/internal/provider"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentProbes bounds TestAll fan-out.
const maxConcurrentProbes = 4

// TestConnection reports whether provider id is reachable with credential.
// Unknown providers, adapters without a probe, any error, any non-2xx
// answer and any panic all yield false. It never fails otherwise.
func (r *Router) TestConnection(ctx context.Context, id provider.ID, credential string) (ok bool) {
	entry, found := r.registry.Lookup(id)
	if !found {
		r.logger.Debug("connection test for unknown provider", "provider", id)
		return false
	}
	prober, isProber := entry.Adapter.(provider.Prober)
	if !isProber {
		return false
	}
	if credential == "" {
		credential = entry.Credential
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("connection test panicked", "provider", id, "panic", p)
			ok = false
		}
		r.metrics.observeProbe(id, ok)
		if r.health != nil {
			r.health.Record(id, ok)
		}
	}()

	if err := prober.Probe(ctx, credential); err != nil {
		r.logger.Debug("connection test failed", "provider", id, "error", err)
		return false
	}
	return true
}

// TestAll tests every registered provider concurrently. credentials maps
// provider IDs to credentials; missing entries use the configured one.
func (r *Router) TestAll(ctx context.Context, credentials map[provider.ID]string) map[provider.ID]bool {
	return r.testMany(ctx, r.registry.IDs(), credentials)
}

// TestDue tests only the providers whose health board entry is due for a
// probe. Without a health board it behaves like TestAll.
func (r *Router) TestDue(ctx context.Context, credentials map[provider.ID]string) map[provider.ID]bool {
	ids := r.registry.IDs()
	if r.health != nil {
		due := ids[:0]
		for _, id := range ids {
			if r.health.ShouldProbe(id) {
				due = append(due, id)
			}
		}
		ids = due
	}
	return r.testMany(ctx, ids, credentials)
}

func (r *Router) testMany(ctx context.Context, ids []provider.ID, credentials map[provider.ID]string) map[provider.ID]bool {
	results := make(map[provider.ID]bool, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(maxConcurrentProbes)
	for _, id := range ids {
		g.Go(func() error {
			ok := r.TestConnection(ctx, id, credentials[id])
			mu.Lock()
			results[id] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
