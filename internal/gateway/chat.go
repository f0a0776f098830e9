package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/media"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/internal/security"
	"github.com/go-chi/chi/v5"
)

var errNoStore = errors.New("gateway: conversation storage is not configured")

// chatRequest is the body of POST /api/chat and of each /ws/chat frame.
type chatRequest struct {
	Provider       provider.ID        `json:"provider"`
	Credential     string             `json:"credential,omitempty"`
	Model          string             `json:"model,omitempty"`
	Messages       []provider.Message `json:"messages"`
	SystemPrompt   string             `json:"system_prompt,omitempty"`
	BrandID        string             `json:"brand_id,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
}

// streamEvent is one SSE data payload or WebSocket frame.
type streamEvent struct {
	Delta string `json:"delta,omitempty"`
	Text  string `json:"text"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// runChat dispatches one chat request, through the stored conversation
// when one is named, and audits the outcome.
func (g *Gateway) runChat(ctx context.Context, r *http.Request, body chatRequest, onChunk func(delta, full string)) (string, error) {
	req := chat.SendRequest{
		Provider:     body.Provider,
		Credential:   body.Credential,
		Model:        body.Model,
		Messages:     body.Messages,
		SystemPrompt: body.SystemPrompt,
		BrandID:      body.BrandID,
		OnChunk:      onChunk,
	}

	g.metrics.streams.Inc()
	defer g.metrics.streams.Dec()

	var text string
	var err error
	switch {
	case body.ConversationID == "":
		text, err = g.router.Send(ctx, req)
	case g.store == nil:
		err = errNoStore
	default:
		text, err = g.router.Converse(ctx, g.store, body.ConversationID, req)
	}

	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	g.audit.Log(security.AuditEvent{
		Type:           security.EventChat,
		Provider:       string(body.Provider),
		BrandID:        body.BrandID,
		ConversationID: body.ConversationID,
		RemoteAddr:     clientKey(r),
		Detail:         detail,
	})
	return text, err
}

// sseStream writes Server-Sent Events. Headers are sent with the first
// event so that errors raised before any delta can still be answered
// with a plain status code.
type sseStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEStream(w http.ResponseWriter) *sseStream {
	return &sseStream{w: w, rc: http.NewResponseController(w)}
}

func (s *sseStream) send(ev streamEvent) error {
	if !s.started {
		s.started = true
		// Streams outlive the server's write timeout.
		_ = s.rc.SetWriteDeadline(time.Time{})
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// handleChat streams a chat reply as Server-Sent Events.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.allow(w, r, security.KindChat) {
			return
		}
		var body chatRequest
		if err := security.DecodeJSON(r.Body, g.config.MaxBodyBytes, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		stream := newSSEStream(w)
		text, err := g.runChat(r.Context(), r, body, func(delta, full string) {
			_ = stream.send(streamEvent{Delta: delta, Text: full})
		})
		if err != nil {
			if !stream.started {
				writeError(w, statusFor(err), err)
				return
			}
			_ = stream.send(streamEvent{Done: true, Text: text, Error: err.Error()})
			return
		}
		_ = stream.send(streamEvent{Done: true, Text: text})
	}
}

// providerJSON is one entry of GET /api/providers.
type providerJSON struct {
	provider.Descriptor
	Health *provider.HealthStatus `json:"health,omitempty"`
}

func (g *Gateway) handleListProviders() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		board := g.router.Health()
		descs := g.router.Providers()
		out := make([]providerJSON, 0, len(descs))
		for _, d := range descs {
			p := providerJSON{Descriptor: d}
			if board != nil {
				st := board.Status(d.ID)
				p.Health = &st
			}
			out = append(out, p)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type testRequest struct {
	Credential string `json:"credential"`
}

// handleTestProvider runs a connection test. The body is optional.
func (g *Gateway) handleTestProvider() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.allow(w, r, security.KindTest) {
			return
		}
		var body testRequest
		if r.ContentLength != 0 {
			if err := security.DecodeJSON(r.Body, g.config.MaxBodyBytes, &body); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		id := provider.ID(chi.URLParam(r, "id"))
		ok := g.router.TestConnection(r.Context(), id, body.Credential)
		g.audit.Log(security.AuditEvent{
			Type:       security.EventConnectionTest,
			Provider:   string(id),
			RemoteAddr: clientKey(r),
			Detail:     fmt.Sprintf("ok=%t", ok),
		})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
	}
}

// allow applies the per-client rate limit for kind and answers 429 when
// it is exceeded.
func (g *Gateway) allow(w http.ResponseWriter, r *http.Request, kind string) bool {
	if err := g.limiter.Allow(kind, clientKey(r)); err != nil {
		g.audit.Log(security.AuditEvent{
			Type:       security.EventRateLimit,
			RemoteAddr: clientKey(r),
			Detail:     kind,
		})
		writeError(w, http.StatusTooManyRequests, err)
		return false
	}
	return true
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	var (
		transport *provider.TransportError
		backend   *media.BackendError
	)
	switch {
	case errors.Is(err, provider.ErrUnknownProvider),
		errors.Is(err, chat.ErrInvalidRequest),
		errors.Is(err, media.ErrPromptRequired),
		errors.Is(err, media.ErrUnsupportedBackend):
		return http.StatusBadRequest
	case errors.Is(err, security.ErrURLBlocked):
		return http.StatusForbidden
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	case errors.As(err, &transport), errors.As(err, &backend):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var cfgErr *provider.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
