// Package openai implements the provider.openai module: the Chat
// Completions streaming protocol, server-sent events terminated by a
// [DONE] sentinel.
package openai

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/provider"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Adapter  = (*Provider)(nil)
	_ provider.Prober   = (*Provider)(nil)
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
)

// Provider speaks the OpenAI Chat Completions streaming protocol.
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
	p := &Provider{config: cfg, logger: logger}
	p.initClients()
	return p
}

// Descriptor describes this provider for the registry.
func (p *Provider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		ID:           provider.OpenAI,
		Name:         "OpenAI",
		Endpoint:     p.config.Endpoint,
		DefaultModel: p.config.Model,
		ProbeURL:     p.config.ProbeURL,
	}
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.initClients()

	return provider.SharedRegistry(ctx).Register(provider.Entry{
		Descriptor: p.Descriptor(),
		Adapter:    p,
		Credential: p.config.APIKey,
	})
}

// initClients builds separate clients for probes and streams.
// http.Client.Timeout is a hard deadline for the entire response body,
// which would kill long-lived SSE streams. The streaming client uses no
// timeout; cancellation is handled via context.
func (p *Provider) initClients() {
	p.client = &http.Client{Timeout: p.config.parsedTimeout()}
	p.streamClient = &http.Client{}
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.config.Endpoint == "" {
		return errors.New("provider.openai: endpoint is required")
	}
	if p.config.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	return p.config.validateTimeout()
}
