// Package chat is the send orchestrator: it resolves a provider, assembles
// the outgoing conversation, dispatches it to the provider's adapter and
// accumulates the streamed deltas into the final text. It also hosts the
// connection tester.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ctxengine "github.com/flemzord/brandai/internal/context"
	"github.com/flemzord/brandai/internal/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/brandai/internal/chat"

// RouterService is the AppContext service name of the shared *Router.
const RouterService = "chat.router"

// PreambleBuilder produces the system preamble for a brand.
type PreambleBuilder interface {
	SystemPreamble(ctx context.Context, brandID string) (string, error)
}

// SendRequest is one conversation turn to dispatch.
type SendRequest struct {
	Provider provider.ID
	// Credential is passed to the backend verbatim. When empty, the
	// credential configured for the provider, if any, is used.
	Credential string
	// Model defaults to the provider's default model.
	Model string
	// Messages is the conversation, oldest first. It must be non-empty
	// and must not contain system turns.
	Messages []provider.Message
	// SystemPrompt, when non-empty, is sent as a single leading system turn.
	SystemPrompt string
	// BrandID selects the brand whose context becomes the preamble when
	// SystemPrompt is empty and the router has a PreambleBuilder.
	BrandID string
	// OnChunk, if set, is called synchronously for every delta in delivery
	// order with the delta and the text accumulated so far.
	OnChunk func(delta, full string)
}

// Router dispatches sends and connection tests to registered adapters.
// It holds no per-send state; concurrent calls are independent.
type Router struct {
	registry  *provider.Registry
	preamble  PreambleBuilder
	health    *provider.HealthBoard
	metrics   *Metrics
	tracer    trace.Tracer
	estimator ctxengine.TokenEstimator
	logger    *slog.Logger
	now       func() time.Time

	defaultProvider provider.ID
	defaultBrand    func(context.Context) string
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used by the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithPreamble attaches the builder used for brand preambles.
func WithPreamble(b PreambleBuilder) Option {
	return func(r *Router) { r.preamble = b }
}

// WithHealthBoard records connection test outcomes on b.
func WithHealthBoard(b *provider.HealthBoard) Option {
	return func(r *Router) { r.health = b }
}

// WithMetrics records sends and probes on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTracer overrides the tracer. The global tracer provider is used
// otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithTokenEstimator replaces the character-ratio estimator used for the
// prompt size reported on spans and logs.
func WithTokenEstimator(e ctxengine.TokenEstimator) Option {
	return func(r *Router) { r.estimator = e }
}

// WithDefaultProvider routes sends that name no provider to id.
func WithDefaultProvider(id provider.ID) Option {
	return func(r *Router) { r.defaultProvider = id }
}

// WithDefaultBrand resolves the brand for sends that carry neither a
// brand nor a system prompt. fn returning "" means no brand.
func WithDefaultBrand(fn func(context.Context) string) Option {
	return func(r *Router) { r.defaultBrand = fn }
}

// NewRouter creates a router over reg.
func NewRouter(reg *provider.Registry, opts ...Option) *Router {
	r := &Router{
		registry:  reg,
		logger:    slog.New(slog.DiscardHandler),
		estimator: ctxengine.NewCharEstimator(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Providers returns the registered provider descriptors sorted by ID.
func (r *Router) Providers() []provider.Descriptor {
	return r.registry.Descriptors()
}

// Health returns the health board, or nil when none is attached.
func (r *Router) Health() *provider.HealthBoard {
	return r.health
}

// Send dispatches req and returns the final accumulated text, equal to the
// last full value passed to OnChunk. An unknown provider fails with a
// *provider.ConfigurationError before any network activity. Adapter
// errors are returned unchanged, together with whatever text arrived
// before the failure; there is no retry and no fallback provider.
func (r *Router) Send(ctx context.Context, req SendRequest) (string, error) {
	req = r.applyDefaults(ctx, req)
	entry, ok := r.registry.Lookup(req.Provider)
	if !ok {
		err := &provider.ConfigurationError{Provider: req.Provider}
		r.metrics.observeSend(req.Provider, outcome(err), 0, 0)
		return "", err
	}
	if err := validateMessages(req.Messages); err != nil {
		r.metrics.observeSend(req.Provider, outcome(err), 0, 0)
		return "", err
	}

	model := req.Model
	if model == "" {
		model = entry.DefaultModel
	}
	credential := req.Credential
	if credential == "" {
		credential = entry.Credential
	}

	ctx, span := r.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("provider", string(req.Provider)),
		attribute.String("model", model),
	))
	defer span.End()

	preamble := r.resolvePreamble(ctx, req)
	msgs := make([]provider.Message, 0, len(req.Messages)+1)
	if preamble != "" {
		msgs = append(msgs, provider.Message{Role: provider.RoleSystem, Content: preamble})
	}
	msgs = append(msgs, req.Messages...)
	promptTokens := ctxengine.EstimateMessages(r.estimator, msgs)
	span.SetAttributes(
		attribute.Int("messages", len(msgs)),
		attribute.Int("prompt_tokens_estimate", promptTokens),
	)

	r.logger.Debug("chat send",
		"provider", req.Provider,
		"model", model,
		"messages", len(msgs),
		"preamble_chars", len(preamble),
		"prompt_tokens_estimate", promptTokens,
	)

	start := r.now()
	text, deltas, err := r.stream(ctx, entry.Adapter, provider.Request{
		Endpoint:   entry.Endpoint,
		Credential: credential,
		Model:      model,
		Messages:   msgs,
	}, req.OnChunk)
	elapsed := r.now().Sub(start)

	r.metrics.observeSend(req.Provider, outcome(err), deltas, elapsed)
	span.SetAttributes(attribute.Int("deltas", deltas))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("chat send failed", "provider", req.Provider, "model", model, "error", err)
		return text, err
	}

	r.logger.Info("chat send completed",
		"provider", req.Provider,
		"model", model,
		"deltas", deltas,
		"chars", len(text),
		"duration", elapsed,
	)
	return text, nil
}

// stream consumes the adapter's channel. It is the only writer of the
// accumulator and calls onChunk in delivery order.
func (r *Router) stream(ctx context.Context, a provider.Adapter, req provider.Request, onChunk func(delta, full string)) (string, int, error) {
	ch, err := a.Stream(ctx, req)
	if err != nil {
		return "", 0, err
	}

	var acc provider.Accumulator
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		if chunk.Delta == "" {
			continue
		}
		full := acc.Append(chunk.Delta)
		if onChunk != nil {
			onChunk(chunk.Delta, full)
		}
	}
	if streamErr == nil {
		streamErr = ctx.Err()
	}
	return acc.String(), acc.Deltas(), streamErr
}

func (r *Router) applyDefaults(ctx context.Context, req SendRequest) SendRequest {
	if req.Provider == "" {
		req.Provider = r.defaultProvider
	}
	if req.BrandID == "" && req.SystemPrompt == "" && r.defaultBrand != nil {
		req.BrandID = r.defaultBrand(ctx)
	}
	return req
}

// resolvePreamble returns the explicit system prompt, or builds one from
// the brand. Context is advisory: a build failure is logged and the send
// proceeds without a preamble.
func (r *Router) resolvePreamble(ctx context.Context, req SendRequest) string {
	if req.SystemPrompt != "" || req.BrandID == "" || r.preamble == nil {
		return req.SystemPrompt
	}
	p, err := r.preamble.SystemPreamble(ctx, req.BrandID)
	if err != nil {
		r.logger.Warn("brand context unavailable, sending without preamble",
			"brand_id", req.BrandID, "error", err)
		return ""
	}
	return p
}

func validateMessages(msgs []provider.Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	for i, m := range msgs {
		if m.Role == provider.RoleSystem {
			return fmt.Errorf("%w: message %d has role system; use SystemPrompt", ErrInvalidRequest, i)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
