package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// services is the process-wide service registry. It is shared by every
// AppContext derived from the same root.
type services struct {
	mu sync.RWMutex
	m  map[string]any
}

// AppContext carries shared resources available to modules during
// provisioning and at runtime.
type AppContext struct {
	// Logger is scoped to the current module when obtained via ForModule.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	root          *slog.Logger
	moduleConfigs map[string]yaml.Node
	svc           *services
}

// NewAppContext creates a root AppContext.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:  logger,
		DataDir: dataDir,
		root:    logger,
		svc:     &services{m: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the context carrying the raw YAML
// sections keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a context whose logger is tagged with the module ID.
// Services and module configs are shared with the parent.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// RegisterService publishes a value under name for other modules.
// A later registration under the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.svc.mu.Lock()
	defer ctx.svc.mu.Unlock()
	ctx.svc.m[name] = svc
}

// Service looks up a previously registered service.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.svc.mu.RLock()
	defer ctx.svc.mu.RUnlock()
	v, ok := ctx.svc.m[name]
	return v, ok
}

// HasConfig reports whether a YAML section exists for the module.
func (ctx *AppContext) HasConfig(id string) bool {
	_, ok := ctx.moduleConfigs[id]
	return ok
}

// LoadModule instantiates a registered module and runs
//
//	New() → Configure() → Provision() → Validate()
//
// on it, skipping the steps the module does not implement.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}
