package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/brandai/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"` // "ok" or "degraded"
	Providers []provider.HealthStatus `json:"providers"`
}

// handleHealth returns 200 unless a probed provider is down, then 503.
// Providers never probed are not listed.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Providers: []provider.HealthStatus{}}

		if board := g.router.Health(); board != nil {
			resp.Providers = board.Report()
			if board.Degraded() {
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

// StatusResponse is the JSON response for GET /api/admin/status.
type StatusResponse struct {
	Uptime        float64                 `json:"uptime_seconds"`
	Providers     []provider.Descriptor   `json:"providers"`
	Health        []provider.HealthStatus `json:"health"`
	Store         bool                    `json:"store"`
	URLOverrides  bool                    `json:"media_url_overrides"`
	RateLimitKeys int                     `json:"rate_limit_keys"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:        time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Providers:     g.router.Providers(),
			Health:        []provider.HealthStatus{},
			Store:         g.store != nil,
			URLOverrides:  g.urls.IsConfigured(),
			RateLimitKeys: g.limiter.Len(),
		}
		if board := g.router.Health(); board != nil {
			resp.Health = board.Report()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
