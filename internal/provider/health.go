package provider

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

// HealthState is the availability of a provider as seen by the probes.
type HealthState int

const (
	StateUnknown  HealthState = iota // never probed
	StateHealthy                     // last probe succeeded
	StateCooldown                    // failing, backing off between probes
	StateDead                        // MaxFailures consecutive failures
)

// String returns a human-readable label for the health state.
func (s HealthState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateHealthy:
		return "healthy"
	case StateCooldown:
		return "cooldown"
	case StateDead:
		return "dead"
	default:
		return "invalid"
	}
}

// MarshalText encodes the state as its label.
func (s HealthState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a label produced by MarshalText.
func (s *HealthState) UnmarshalText(text []byte) error {
	for _, st := range []HealthState{StateUnknown, StateHealthy, StateCooldown, StateDead} {
		if string(text) == st.String() {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("provider: unknown health state %q", text)
}

// HealthConfig controls probe backoff.
type HealthConfig struct {
	// InitialBackoff is the delay before re-probing after the first
	// failure. Default: 30s.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff. Dead providers are
	// re-probed at this interval. Default: 10m.
	MaxBackoff time.Duration

	// MaxFailures is the number of consecutive failures before the
	// provider is reported dead. Default: 5.
	MaxFailures int
}

// defaults fills zero-value fields with sensible defaults.
func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
}

// HealthStatus is a point-in-time view of one provider.
type HealthStatus struct {
	Provider  ID          `json:"provider"`
	State     HealthState `json:"state"`
	Failures  int         `json:"failures"`
	LastProbe time.Time   `json:"last_probe,omitzero"`
	NextProbe time.Time   `json:"next_probe,omitzero"`
}

type healthEntry struct {
	state     HealthState
	failures  int
	backoff   time.Duration
	lastProbe time.Time
	nextProbe time.Time
}

// HealthBoard records connection test outcomes per provider and decides
// when a provider is due for its next probe. It is safe for concurrent use.
type HealthBoard struct {
	cfg HealthConfig

	// OnChange is called outside the lock whenever a provider changes
	// state. It keeps the board decoupled from logging and metrics.
	OnChange func(id ID, from, to HealthState)

	mu      sync.Mutex
	entries map[ID]*healthEntry

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewHealthBoard creates an empty board.
func NewHealthBoard(cfg HealthConfig) *HealthBoard {
	cfg.defaults()
	return &HealthBoard{
		cfg:     cfg,
		entries: make(map[ID]*healthEntry),
		now:     time.Now,
	}
}

func (b *HealthBoard) entry(id ID) *healthEntry {
	e, ok := b.entries[id]
	if !ok {
		e = &healthEntry{}
		b.entries[id] = e
	}
	return e
}

// Record stores the outcome of one probe of id.
func (b *HealthBoard) Record(id ID, ok bool) {
	b.mu.Lock()
	e := b.entry(id)
	prev := e.state
	now := b.now()
	e.lastProbe = now

	if ok {
		e.state = StateHealthy
		e.failures = 0
		e.backoff = 0
		e.nextProbe = time.Time{}
	} else {
		e.failures++
		if e.backoff == 0 {
			e.backoff = b.cfg.InitialBackoff
		} else {
			e.backoff *= 2
		}
		if e.failures >= b.cfg.MaxFailures {
			e.state = StateDead
			e.backoff = b.cfg.MaxBackoff
		} else {
			e.state = StateCooldown
		}
		e.backoff = min(e.backoff, b.cfg.MaxBackoff)
		e.nextProbe = now.Add(e.backoff)
	}
	next := e.state
	b.mu.Unlock()

	if prev != next && b.OnChange != nil {
		b.OnChange(id, prev, next)
	}
}

// ShouldProbe reports whether id is due for a probe. Healthy and unknown
// providers always are; failing ones once their backoff has elapsed.
func (b *HealthBoard) ShouldProbe(id ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return true
	}
	switch e.state {
	case StateCooldown, StateDead:
		return !b.now().Before(e.nextProbe)
	default:
		return true
	}
}

// Status returns the current view of id.
func (b *HealthBoard) Status(id ID) HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked(id)
}

func (b *HealthBoard) statusLocked(id ID) HealthStatus {
	e, ok := b.entries[id]
	if !ok {
		return HealthStatus{Provider: id}
	}
	return HealthStatus{
		Provider:  id,
		State:     e.state,
		Failures:  e.failures,
		LastProbe: e.lastProbe,
		NextProbe: e.nextProbe,
	}
}

// Report returns the status of every provider seen so far, sorted by ID.
func (b *HealthBoard) Report() []HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]HealthStatus, 0, len(b.entries))
	for id := range b.entries {
		out = append(out, b.statusLocked(id))
	}
	slices.SortFunc(out, func(a, b HealthStatus) int {
		return cmp.Compare(a.Provider, b.Provider)
	})
	return out
}

// Degraded reports whether any provider is in cooldown or dead.
func (b *HealthBoard) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.state == StateCooldown || e.state == StateDead {
			return true
		}
	}
	return false
}
