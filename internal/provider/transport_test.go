package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPostJSON_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing content-type header")
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing authorization header")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"model":"m"}` {
			t.Errorf("body = %s", body)
		}
		_, _ = w.Write([]byte("streamed"))
	}))
	t.Cleanup(srv.Close)

	h := http.Header{}
	h.Set("Authorization", "Bearer sk-test")
	body, err := PostJSON(context.Background(), srv.Client(), OpenAI, srv.URL, h, map[string]string{"model": "m"})
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	defer func() { _ = body.Close() }()
	got, _ := io.ReadAll(body)
	if string(got) != "streamed" {
		t.Errorf("body = %q", got)
	}
}

func TestPostJSON_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		want    error
	}{
		{"openai shape", 401, `{"error":{"message":"Incorrect API key"}}`, "Incorrect API key", ErrAuth},
		{"ollama shape", 503, `{"error":"model is loading"}`, "model is loading", ErrProviderDown},
		{"plain text", 429, "slow down\n", "slow down", ErrRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := PostJSON(context.Background(), srv.Client(), Gemini, srv.URL, nil, struct{}{})
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want *TransportError", err)
			}
			if te.StatusCode != tt.status || te.Message != tt.wantMsg || te.Provider != Gemini {
				t.Errorf("TransportError = %+v", te)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v) = false", tt.want)
			}
		})
	}
}

func TestPostJSON_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := PostJSON(context.Background(), http.DefaultClient, Ollama, url, nil, struct{}{})
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 0 || te.Err == nil {
		t.Fatalf("err = %v, want network TransportError", err)
	}
}

func TestPostJSON_ContextErrorPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PostJSON(ctx, srv.Client(), OpenAI, srv.URL, nil, struct{}{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		t.Error("context cancellation should not be wrapped in TransportError")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	if err := Get(context.Background(), srv.Client(), Ollama, srv.URL+"/ok", nil); err != nil {
		t.Errorf("Get(/ok) = %v", err)
	}
	if err := Get(context.Background(), srv.Client(), Ollama, srv.URL+"/missing", nil); err == nil {
		t.Error("Get(/missing) should fail")
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://x.test/v1/models?key=AIzaSecret", "https://x.test/v1/models?key=REDACTED"},
		{"https://x.test/m:stream?alt=sse&key=AIzaSecret", "https://x.test/m:stream?alt=sse&key=REDACTED"},
		{"http://localhost:11434/api/tags", "http://localhost:11434/api/tags"},
		{"https://x.test/?alt=sse", "https://x.test/?alt=sse"},
	}
	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostJSON_NetworkErrorHidesKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := PostJSON(context.Background(), http.DefaultClient, Gemini, base+"/m?alt=sse&key=AIzaSecret", nil, struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "AIzaSecret") {
		t.Errorf("error leaks credential: %v", err)
	}
}
