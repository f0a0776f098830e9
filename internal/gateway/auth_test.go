package gateway

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/flemzord/brandai/internal/security"
)

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuth_ProtectsAPIWhenConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{Auth: AuthConfig{BearerToken: "s3cret-token"}})

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong bearer", bearer("nope"), http.StatusUnauthorized},
		{"valid bearer", bearer("s3cret-token"), http.StatusOK},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodGet, "/api/providers", "", tt.header)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}

	if resp := env.do(t, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("/health should stay public, got %d", resp.StatusCode)
	}
	if !slices.Contains(env.audits.types(), security.EventAuthFailure) {
		t.Error("auth failure was not audited")
	}
}

func TestAuth_Basic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{Auth: AuthConfig{BasicUser: "admin", BasicPass: "pw"}})
	good := http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:pw"))}}
	bad := http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:no"))}}

	if resp := env.do(t, http.MethodGet, "/api/admin/status", "", good); resp.StatusCode != http.StatusOK {
		t.Errorf("good basic: status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/admin/status", "", bad); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad basic: status = %d", resp.StatusCode)
	}
}

func TestAuth_AttemptsAreRateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{
		Auth:      AuthConfig{BearerToken: "tok"},
		RateLimit: security.RateLimitConfig{AuthPerMin: 2},
	})
	for range 2 {
		_ = env.do(t, http.MethodGet, "/api/providers", "", bearer("wrong"))
	}
	if resp := env.do(t, http.MethodGet, "/api/providers", "", bearer("tok")); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestAdmin_NotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{})
	if resp := env.do(t, http.MethodGet, "/api/admin/status", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAdmin_ConfigIsRedacted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{Auth: AuthConfig{BearerToken: "tok"}})
	path := filepath.Join(t.TempDir(), "brandai.yaml")
	raw := `version: "1"
modules:
  provider.openai:
    api_key: sk-abcdefghijklmnopqrstuvwxyz
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	env.gw.appCtx.RegisterService(ConfigPathService, path)

	resp := env.do(t, http.MethodGet, "/api/admin/config", "", bearer("tok"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	doc := decodeBody[map[string]any](t, resp.Body)
	openai := doc["modules"].(map[string]any)["provider.openai"].(map[string]any)
	if openai["api_key"] != security.RedactPlaceholder {
		t.Errorf("api_key = %v", openai["api_key"])
	}
	if openai["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", openai["model"])
	}

	resp = env.do(t, http.MethodGet, "/api/admin/modules", "", bearer("tok"))
	if mods := decodeBody[[]moduleJSON](t, resp.Body); !slices.ContainsFunc(mods, func(m moduleJSON) bool { return m.ID == "gateway.http" }) {
		t.Errorf("modules = %+v", mods)
	}
}
