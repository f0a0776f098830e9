package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, g.metrics.middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))

	// Chat API. Open on loopback unless auth is configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
		}
		r.Get("/ws/chat", g.handleChatWS())
		r.Route("/api", func(r chi.Router) {
			r.Get("/providers", g.handleListProviders())
			r.Post("/providers/{id}/test", g.handleTestProvider())
			r.Post("/chat", g.handleChat())
			r.Post("/media/image", g.handleImage())
			r.Post("/media/video", g.handleVideo())
		})
	})

	// Admin endpoints. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
			r.Route("/api/admin", func(r chi.Router) {
				r.Get("/status", g.handleStatus())
				r.Get("/modules", g.handleListModules())
				r.Get("/config", g.handleGetConfig())
			})
		})
	}

	return r
}
