// Package gateway exposes the chat router over HTTP: streaming chat as
// Server-Sent Events and WebSocket, connection tests, media jobs, health,
// Prometheus metrics and a small admin surface. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/media"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *httpMetrics
	gatherer  prometheus.Gatherer
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	auditFile io.Closer
	urls      *security.URLFilter
	media     *media.Bridge
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	router *chat.Router
	store  memory.Store
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	reg := prometheus.NewRegistry()
	if svc, ok := ctx.Service(MetricsRegistryService); ok {
		if shared, ok := svc.(*prometheus.Registry); ok {
			reg = shared
		}
	}
	g.gatherer = reg
	g.metrics = newHTTPMetrics(reg)

	g.limiter = security.NewRateLimiter(g.config.RateLimit)
	g.urls = security.NewURLFilter(security.URLFilterConfig{
		AllowDomains: g.config.Media.AllowDomains,
		DenyDomains:  g.config.Media.DenyDomains,
	})

	var redactor *security.Redactor
	if svc, ok := ctx.Service(security.RedactorService); ok {
		redactor, _ = svc.(*security.Redactor)
	}
	auditCfg := security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(e security.AuditEvent) {
			g.logger.Info("audit", "type", e.Type, "provider", e.Provider,
				"remote_addr", e.RemoteAddr, "detail", e.Detail)
		},
	}
	if g.config.AuditLog != "" {
		path := g.config.AuditLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.DataDir, path)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: opening audit log: %w", err)
		}
		auditCfg.Writer = f
		g.auditFile = f
	}
	g.audit = security.NewAuditLogger(auditCfg)

	g.media = media.NewBridge(
		media.WithComfyBaseURL(g.config.Media.ComfyBaseURL),
		media.WithLogger(g.logger),
	)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolveServices(); err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds the router (required) and the store (optional;
// without it conversation_id is rejected).
func (g *Gateway) resolveServices() error {
	svc, ok := g.appCtx.Service(chat.RouterService)
	if !ok {
		return errors.New("gateway: chat router service not registered")
	}
	router, ok := svc.(*chat.Router)
	if !ok {
		return fmt.Errorf("gateway: service %q has type %T", chat.RouterService, svc)
	}
	g.router = router

	if svc, ok := g.appCtx.Service(memory.StoreService); ok {
		if store, ok := svc.(memory.Store); ok {
			g.store = store
		}
	}
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	var errs []error
	if g.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
		defer cancel()

		g.logger.Info("gateway shutting down")
		errs = append(errs, g.server.Shutdown(shutdownCtx))
	}
	if g.auditFile != nil {
		errs = append(errs, g.auditFile.Close())
	}
	return errors.Join(errs...)
}
