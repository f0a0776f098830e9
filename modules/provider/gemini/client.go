package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/flemzord/brandai/internal/provider"
)

// Stream posts the reshaped conversation and decodes the event stream
// into deltas. The credential travels as the key query parameter.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = p.config.Endpoint
	}
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	target, err := streamURL(endpoint, model, req.Credential)
	if err != nil {
		return nil, err
	}

	body, err := provider.PostJSON(ctx, p.streamClient, provider.Gemini, target, nil, toGenerateRequest(req.Messages))
	if err != nil {
		return nil, err
	}

	p.logger.Debug("gemini stream opened", "model", model)
	return provider.DecodeStream(ctx, provider.Gemini, body, decodeLine, p.logger), nil
}

// Probe lists models with the given key.
func (p *Provider) Probe(ctx context.Context, credential string) error {
	target, err := withQuery(p.config.ProbeURL, url.Values{"key": {credential}})
	if err != nil {
		return err
	}
	return provider.Get(ctx, p.client, provider.Gemini, target, nil)
}

// streamURL expands the endpoint template and appends alt=sse and the key.
// An endpoint without the model placeholder is treated as the models
// collection URL, as in .../v1beta/models.
func streamURL(endpoint, model, key string) (string, error) {
	if strings.Contains(endpoint, provider.ModelPlaceholder) {
		endpoint = strings.ReplaceAll(endpoint, provider.ModelPlaceholder, url.PathEscape(model))
	} else {
		endpoint = strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(model) + ":streamGenerateContent"
	}
	return withQuery(endpoint, url.Values{"alt": {"sse"}, "key": {key}})
}

func withQuery(raw string, extra url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("gemini: invalid endpoint: %w", err)
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
