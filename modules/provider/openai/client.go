package openai

import (
	"context"
	"net/http"

	"github.com/flemzord/brandai/internal/provider"
)

// Stream posts the conversation with stream enabled and decodes the
// event stream into deltas. Initial connection errors are returned
// directly. Mid-stream errors are delivered via StreamChunk.Err.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = p.config.Endpoint
	}
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	body, err := provider.PostJSON(ctx, p.streamClient, provider.OpenAI, endpoint, bearer(req.Credential), chatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("openai stream opened", "model", model)
	return provider.DecodeStream(ctx, provider.OpenAI, body, decodeLine, p.logger), nil
}

// Probe lists models with the given credential. A 2xx answer means the
// endpoint is reachable and the key is accepted.
func (p *Provider) Probe(ctx context.Context, credential string) error {
	return provider.Get(ctx, p.client, provider.OpenAI, p.config.ProbeURL, bearer(credential))
}

func bearer(credential string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+credential)
	return h
}
