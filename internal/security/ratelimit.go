package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds configurable per-client limits.
type RateLimitConfig struct {
	ChatPerMin  int `yaml:"chat_per_min"`
	MediaPerMin int `yaml:"media_per_min"`
	TestsPerMin int `yaml:"tests_per_min"`
	AuthPerMin  int `yaml:"auth_per_min"`
	// MaxClients bounds the number of tracked client keys. Idle keys are
	// evicted first once the bound is reached.
	MaxClients int `yaml:"max_clients"`
}

// Rate limit kinds.
const (
	KindChat  = "chat"
	KindMedia = "media"
	KindTest  = "connection_test"
	KindAuth  = "auth"
)

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		ChatPerMin:  60,
		MediaPerMin: 10,
		TestsPerMin: 20,
		AuthPerMin:  120,
		MaxClients:  1024,
	}
}

// RateLimiter implements sliding window rate limiting per (kind, client).
// Each window tracks timestamps of recent events.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]int
	window  time.Duration
	max     int
	clients map[string]*window
	now     func() time.Time
}

type window struct {
	events []time.Time
	last   time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.ChatPerMin <= 0 {
		cfg.ChatPerMin = defaults.ChatPerMin
	}
	if cfg.MediaPerMin <= 0 {
		cfg.MediaPerMin = defaults.MediaPerMin
	}
	if cfg.TestsPerMin <= 0 {
		cfg.TestsPerMin = defaults.TestsPerMin
	}
	if cfg.AuthPerMin <= 0 {
		cfg.AuthPerMin = defaults.AuthPerMin
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaults.MaxClients
	}

	return &RateLimiter{
		limits: map[string]int{
			KindChat:  cfg.ChatPerMin,
			KindMedia: cfg.MediaPerMin,
			KindTest:  cfg.TestsPerMin,
			KindAuth:  cfg.AuthPerMin,
		},
		window:  time.Minute,
		max:     cfg.MaxClients,
		clients: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records one event of kind for client and reports ErrRateLimited
// when the client's window is full. Unknown kinds are never limited.
func (rl *RateLimiter) Allow(kind, client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, ok := rl.limits[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	key := kind + "|" + client
	w, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= rl.max {
			rl.evictIdle(now)
		}
		w = &window{}
		rl.clients[key] = w
	}
	w.last = now
	w.evict(now.Add(-rl.window))

	if len(w.events) >= limit {
		return ErrRateLimited
	}
	w.events = append(w.events, now)
	return nil
}

// Len returns the number of tracked client windows.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// evictIdle drops windows with no events inside the current window, and
// the least recently used one if that frees nothing.
func (rl *RateLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-rl.window)
	var oldestKey string
	var oldest time.Time
	for k, w := range rl.clients {
		if w.last.Before(cutoff) {
			delete(rl.clients, k)
			continue
		}
		if oldestKey == "" || w.last.Before(oldest) {
			oldestKey, oldest = k, w.last
		}
	}
	if len(rl.clients) >= rl.max && oldestKey != "" {
		delete(rl.clients, oldestKey)
	}
}

// evict removes events older than cutoff (events are chronologically ordered).
func (w *window) evict(cutoff time.Time) {
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
}
