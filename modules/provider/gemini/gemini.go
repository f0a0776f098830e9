// Package gemini implements the provider.gemini module: the
// streamGenerateContent protocol, server-sent events without a
// terminating sentinel, with the conversation reshaped into contents and
// a separate system instruction.
package gemini

import (
	"log/slog"
	"net/http"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/provider"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ provider.Adapter  = (*Provider)(nil)
	_ provider.Prober   = (*Provider)(nil)
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
)

// Provider speaks the Gemini streaming protocol.
type Provider struct {
	config       Config
	logger       *slog.Logger
	client       *http.Client
	streamClient *http.Client
}

// New returns a ready-to-use adapter for cfg. Zero fields take defaults.
func New(cfg Config, logger *slog.Logger) *Provider {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		config:       cfg,
		logger:       logger,
		client:       &http.Client{Timeout: cfg.parsedTimeout()},
		streamClient: &http.Client{},
	}
}

// Descriptor describes this provider for the registry.
func (p *Provider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		ID:           provider.Gemini,
		Name:         "Google Gemini",
		Endpoint:     p.config.Endpoint,
		DefaultModel: p.config.Model,
		ProbeURL:     p.config.ProbeURL,
	}
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	*p = *New(p.config, ctx.Logger)
	return provider.SharedRegistry(ctx).Register(provider.Entry{
		Descriptor: p.Descriptor(),
		Adapter:    p,
		Credential: p.config.APIKey,
	})
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}
