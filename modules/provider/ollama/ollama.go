// Package ollama implements the provider.ollama module: the /api/chat
// protocol, one JSON object per line, ending when the daemon closes the
// response.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
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

// Provider speaks the Ollama chat protocol.
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
		ID:           provider.Ollama,
		Name:         "Ollama (Local)",
		Endpoint:     p.config.Endpoint,
		DefaultModel: p.config.Model,
		ProbeURL:     p.config.ProbeURL,
	}
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.ollama",
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

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Stream   bool               `json:"stream"`
}

type chatChunk struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Stream posts the conversation and decodes the NDJSON response into
// deltas.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = p.config.Endpoint
	}
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	body, err := provider.PostJSON(ctx, p.streamClient, provider.Ollama, endpoint, authHeader(req.Credential), chatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("ollama stream opened", "model", model)
	return provider.DecodeStream(ctx, provider.Ollama, body, decodeLine, p.logger), nil
}

// Probe lists local models. The daemon needs no credential, but one is
// forwarded when given.
func (p *Provider) Probe(ctx context.Context, credential string) error {
	return provider.Get(ctx, p.client, provider.Ollama, p.config.ProbeURL, authHeader(credential))
}

func authHeader(credential string) http.Header {
	if credential == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+credential)
	return h
}

// decodeLine implements provider.LineDecoder. Every line is a complete
// JSON record; the final record has done set and no text.
func decodeLine(line string) (string, bool, error) {
	var chunk chatChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return "", false, fmt.Errorf("ollama: decode record: %w", err)
	}
	if chunk.Message == nil || chunk.Message.Content == "" {
		return "", false, nil
	}
	return chunk.Message.Content, true, nil
}
