package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/internal/provider/providertest"
	"github.com/flemzord/brandai/internal/security"
	"gopkg.in/yaml.v3"
)

type testEnv struct {
	gw     *Gateway
	mock   *providertest.MockAdapter
	board  *provider.HealthBoard
	store  *memory.InMemoryStore
	audits *auditRecorder
	srv    *httptest.Server
}

type auditRecorder struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

func (a *auditRecorder) record(e security.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

// types returns the recorded event types in order.
func (a *auditRecorder) types() []security.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]security.EventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

// newTestEnv provisions a gateway around a router with one mock Ollama
// adapter and an in-memory store, and serves it on a test server.
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mock := &providertest.MockAdapter{}
	reg := provider.NewRegistry()
	if err := reg.Register(provider.Entry{
		Descriptor: provider.Descriptor{
			ID:           provider.Ollama,
			Name:         "Ollama (Local)",
			Endpoint:     "http://ollama.test/api/chat",
			DefaultModel: "llama3",
		},
		Adapter: mock,
	}); err != nil {
		t.Fatal(err)
	}
	board := provider.NewHealthBoard(provider.HealthConfig{})

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	g := &Gateway{config: cfg}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	audits := &auditRecorder{}
	g.audit = security.NewAuditLogger(security.AuditLoggerConfig{OnEvent: audits.record})
	store := memory.NewInMemoryStore()
	g.router = chat.NewRouter(reg, chat.WithHealthBoard(board))
	g.store = store

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)

	return &testEnv{gw: g, mock: mock, board: board, store: store, audits: audits, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return v
}

// readEvents parses every "data:" line of an SSE body.
func readEvents(t *testing.T, r io.Reader) []streamEvent {
	t.Helper()
	var out []streamEvent
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil {
		t.Fatal(err)
	}
	return node.Content[0]
}

func userMessages(text string) []provider.Message {
	return []provider.Message{{Role: provider.RoleUser, Content: text}}
}
