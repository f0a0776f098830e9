// Package app provides the shared runtime behind the brandai commands:
// configuration loading, the security foundation, module lifecycle and
// the chat router that ties providers and memory together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/config"
	ctxengine "github.com/flemzord/brandai/internal/context"
	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/gateway"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/internal/security"
	"github.com/flemzord/brandai/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	configDirName  = "brandai"
	configFileName = "brandai.yaml"

	shutdownTimeout = 10 * time.Second
)

// RunParams configures a runtime.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Namespaces restricts the loaded modules to these namespaces, e.g.
	// "provider" and "memory" for one-shot commands. Empty loads all.
	Namespaces []string
}

// Runtime is a provisioned application ready to start.
type Runtime struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *slog.Logger
	Redactor    *security.Redactor
	Credentials *security.CredentialStore
	Metrics     *prometheus.Registry
	Providers   *provider.Registry
	Store       memory.Store
	Router      *chat.Router

	app       *core.App
	started   bool
	telemetry *telemetry.Provider
}

// Build loads the configuration and provisions every configured module,
// then wires the chat router on top of the provider registry and store.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	innerHandler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: params.LogLevel})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      params.Version,
	}, logger)
	if err != nil {
		return nil, err
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(gateway.MetricsRegistryService, metrics)
	appCtx.RegisterService(gateway.ConfigPathService, cfgPath)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(filterNamespaces(config.Resolve(cfg), params.Namespaces)); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	registry := provider.SharedRegistry(appCtx)
	for _, id := range registry.IDs() {
		entry, _ := registry.Lookup(id)
		credStore.Set(config.ProviderModuleID(string(id)), entry.Credential)
	}
	redactor.SyncCredentials(credStore)

	var store memory.Store
	if svc, ok := appCtx.Service(memory.StoreService); ok {
		s, isStore := svc.(memory.Store)
		if !isStore {
			application.Release()
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("service %q has type %T, want memory.Store", memory.StoreService, svc)
		}
		store = s
	} else {
		logger.Warn("no memory module configured, using a volatile in-memory store")
		store = memory.NewInMemoryStore()
	}

	health := provider.NewHealthBoard(provider.HealthConfig{})
	health.OnChange = func(id provider.ID, from, to provider.HealthState) {
		logger.Info("provider health changed", "provider", id, "from", from, "to", to)
	}

	router := chat.NewRouter(registry,
		chat.WithLogger(logger),
		chat.WithPreamble(ctxengine.NewAssembler(store, ctxengine.Config{}, logger)),
		chat.WithHealthBoard(health),
		chat.WithMetrics(chat.NewMetrics(metrics)),
		chat.WithTracer(tp.Tracer("github.com/flemzord/brandai/internal/chat")),
		chat.WithDefaultProvider(provider.ID(cfg.Chat.Provider)),
		chat.WithDefaultBrand(defaultBrand(cfg.Chat.BrandID, store)),
	)
	appCtx.RegisterService(chat.RouterService, router)

	logger.Info("runtime ready",
		"providers", len(registry.IDs()),
		"credentials", credStore.Len(),
		"tracing", tp.Exporting(),
	)

	return &Runtime{
		Config:      cfg,
		ConfigPath:  cfgPath,
		Logger:      logger,
		Redactor:    redactor,
		Credentials: credStore,
		Metrics:     metrics,
		Providers:   registry,
		Store:       store,
		Router:      router,
		app:         application,
		telemetry:   tp,
	}, nil
}

// Start starts the loaded modules.
func (rt *Runtime) Start() error {
	if err := rt.app.Start(); err != nil {
		return err
	}
	rt.started = true
	return nil
}

// Modules returns the loaded module IDs in load order.
func (rt *Runtime) Modules() []string {
	mods := rt.app.Modules()
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = string(m.ModuleInfo().ID)
	}
	return ids
}

// Close stops the modules, or releases them when Start was never
// called, and flushes pending spans.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.started {
		rt.app.Stop()
	} else {
		rt.app.Release()
	}
	return rt.telemetry.Shutdown(ctx)
}

// Run builds the runtime, starts all modules, and blocks until ctx is
// done or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, rt.Close(closeCtx))
	}
	rt.Logger.Info("brandai started", "version", params.Version, "commit", params.Commit)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	rt.Logger.Info("shutdown signal received")

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		return err
	}
	rt.Logger.Info("shutdown complete")
	return nil
}

// defaultBrand resolves the brand used when a send names none: the
// configured one, else the store's current brand.
func defaultBrand(configured string, store memory.Store) func(context.Context) string {
	return func(ctx context.Context) string {
		if configured != "" {
			return configured
		}
		b, err := memory.CurrentBrand(ctx, store)
		if err != nil {
			return ""
		}
		return b.ID
	}
}

func filterNamespaces(ids, namespaces []string) []string {
	if len(namespaces) == 0 {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(namespaces, core.ModuleID(id).Namespace()) {
			out = append(out, id)
		}
	}
	return out
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/brandai/brandai.yaml → ~/.config/brandai/brandai.yaml → ./brandai.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, configDirName, configFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", configDirName, configFileName))
	}

	candidates = append(candidates, configFileName)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where `brandai init` writes a new configuration.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, configDirName, configFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, ".config", configDirName, configFileName)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/brandai if set, otherwise ~/.local/share/brandai.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, configDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", configDirName)
}
