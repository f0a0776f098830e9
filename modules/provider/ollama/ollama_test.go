package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/google/go-cmp/cmp"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(Config{
		Endpoint: srv.URL + "/api/chat",
		ProbeURL: srv.URL + "/api/tags",
	}, nil)
	p.client = srv.Client()
	p.streamClient = srv.Client()
	return p
}

func writeNDJSON(t *testing.T, w http.ResponseWriter, pieces []string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	for _, piece := range pieces {
		if _, err := w.Write([]byte(piece)); err != nil {
			t.Errorf("failed to write piece: %v", err)
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func record(text string, done bool) string {
	b, _ := json.Marshal(map[string]any{
		"model":   "llama3",
		"message": map[string]string{"role": "assistant", "content": text},
		"done":    done,
	})
	return string(b) + "\n"
}

func drain(ch <-chan provider.StreamChunk) ([]string, error) {
	var deltas []string
	var err error
	for chunk := range ch {
		if chunk.Err != nil {
			err = chunk.Err
			continue
		}
		deltas = append(deltas, chunk.Delta)
	}
	return deltas, err
}

func TestStream_ABC(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("no authorization header expected without a credential")
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid body: %v", err)
			return
		}
		if !req.Stream || req.Model != DefaultModel || len(req.Messages) != 1 {
			t.Errorf("request = %+v", req)
		}
		writeNDJSON(t, w, []string{record("A", false), record("B", false), record("C", false), record("", true)})
	})

	p := newTestProvider(t, handler)
	ch, err := p.Stream(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "letters"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var acc provider.Accumulator
	var seen []string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		seen = append(seen, acc.Append(chunk.Delta))
	}
	if diff := cmp.Diff([]string{"A", "AB", "ABC"}, seen); diff != "" {
		t.Errorf("cumulative mismatch (-want +got):\n%s", diff)
	}
}

func TestStream_SplitAndMalformedRecords(t *testing.T) {
	full := record("one", false) + "{not json}\n" + "\n" + record(" two", false) + record(" three", false)
	cut1, cut2 := len(record("one", false))-5, len(full)-9

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeNDJSON(t, w, []string{full[:cut1], full[cut1:cut2], full[cut2:]})
	})

	p := newTestProvider(t, handler)
	ch, err := p.Stream(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "count"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := drain(ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if diff := cmp.Diff([]string{"one", " two", " three"}, got); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestStream_BearerWhenCredentialSet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer proxy-token" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		writeNDJSON(t, w, []string{record("ok", true)})
	})

	p := newTestProvider(t, handler)
	ch, err := p.Stream(context.Background(), provider.Request{
		Credential: "proxy-token",
		Messages:   []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := drain(ch); len(got) != 1 || got[0] != "ok" {
		t.Errorf("deltas = %v", got)
	}
}

func TestStream_ModelNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	})

	p := newTestProvider(t, handler)
	_, err := p.Stream(context.Background(), provider.Request{
		Model:    "nope",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})
	var te *provider.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 TransportError", err)
	}
	if !strings.Contains(te.Message, "not found") || provider.IsRetryable(err) {
		t.Errorf("TransportError = %+v", te)
	}
}

func TestStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/chat"
	srv.Close()

	p := New(Config{Endpoint: endpoint}, nil)
	_, err := p.Stream(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("err = %v, want ErrProviderDown", err)
	}
}

func TestProbe(t *testing.T) {
	up := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	if err := up.Probe(context.Background(), ""); err != nil {
		t.Errorf("Probe = %v", err)
	}

	down := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if err := down.Probe(context.Background(), ""); !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("Probe = %v, want ErrProviderDown", err)
	}
}

func TestDecodeLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    string
		wantOK  bool
		wantErr bool
	}{
		{"content", `{"message":{"role":"assistant","content":"Hi"},"done":false}`, "Hi", true, false},
		{"done record", `{"message":{"role":"assistant","content":""},"done":true,"total_duration":1}`, "", false, false},
		{"no message", `{"done":true}`, "", false, false},
		{"sse framed", `data: {"message":{"content":"x"}}`, "", false, true},
		{"truncated", `{"message":{"content":"x"`, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok, err := decodeLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("decodeLine = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestModule(t *testing.T) {
	p := &Provider{}
	if p.ModuleInfo().ID != "provider.ollama" {
		t.Errorf("ID = %s", p.ModuleInfo().ID)
	}
	app := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	if err := p.Provision(app); err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	e, ok := provider.SharedRegistry(app).Lookup(provider.Ollama)
	if !ok || e.Name != "Ollama (Local)" || e.ProbeURL != DefaultProbeURL {
		t.Errorf("entry = %+v, %v", e, ok)
	}
}
