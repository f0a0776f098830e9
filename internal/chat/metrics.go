package chat

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/brandai/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for sends and probes.
type Metrics struct {
	requests *prometheus.CounterVec
	deltas   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	probes   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brandai",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat sends by provider and outcome.",
		}, []string{"provider", "outcome"}),
		deltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brandai",
			Subsystem: "chat",
			Name:      "deltas_total",
			Help:      "Text deltas received by provider.",
		}, []string{"provider"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brandai",
			Subsystem: "chat",
			Name:      "send_duration_seconds",
			Help:      "Time from dispatch to end of stream.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		probes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "brandai",
			Subsystem: "provider",
			Name:      "up",
			Help:      "Result of the last connection test (1 reachable, 0 not).",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.requests, m.deltas, m.latency, m.probes)
	return m
}

func (m *Metrics) observeSend(id provider.ID, outcome string, deltas int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(id), outcome).Inc()
	if deltas > 0 {
		m.deltas.WithLabelValues(string(id)).Add(float64(deltas))
	}
	if elapsed > 0 {
		m.latency.WithLabelValues(string(id)).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeProbe(id provider.ID, ok bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	m.probes.WithLabelValues(string(id)).Set(v)
}

// outcome maps a send error to a low-cardinality label.
func outcome(err error) string {
	var cfgErr *provider.ConfigurationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, provider.ErrRateLimit):
		return "rate_limited"
	case errors.Is(err, provider.ErrAuth):
		return "auth"
	case errors.Is(err, provider.ErrProviderDown):
		return "unavailable"
	default:
		return "error"
	}
}
