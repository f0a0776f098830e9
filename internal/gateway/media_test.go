package gateway

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/flemzord/brandai/internal/media"
	"github.com/flemzord/brandai/internal/provider"
)

func TestMedia_PollinationsImage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodPost, "/api/media/image",
		`{"prompt":"red fox logo","width":512,"height":512,"seed":7}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	res := decodeBody[media.Result](t, resp.Body)
	if res.Backend != media.Pollinations {
		t.Errorf("backend = %q", res.Backend)
	}
	if !strings.HasPrefix(res.ImageURL, "https://image.pollinations.ai/prompt/red%20fox%20logo?") {
		t.Errorf("image_url = %q", res.ImageURL)
	}
}

func TestMedia_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty prompt", "/api/media/image", `{"prompt":""}`, http.StatusBadRequest},
		{"video on pollinations", "/api/media/video", `{"prompt":"x","provider":"pollinations"}`, http.StatusBadRequest},
		{"override not allowed", "/api/media/image", `{"prompt":"x","provider":"comfyui","comfy_base_url":"http://169.254.169.254"}`, http.StatusForbidden},
		{"override bad scheme", "/api/media/video", `{"prompt":"x","comfy_base_url":"file:///etc"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, Config{Media: MediaConfig{AllowDomains: []string{"gpu.local"}}})
			resp := env.do(t, http.MethodPost, tt.path, tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStatusFor_BackendFailuresAreBadGateway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"comfyui status", &media.BackendError{Backend: media.ComfyUI, StatusCode: 500}, http.StatusBadGateway},
		{"comfyui unreachable", &media.BackendError{Backend: media.ComfyUI, Err: errors.New("refused")}, http.StatusBadGateway},
		{"provider transport", provider.NewStatusError(provider.Ollama, 503, nil), http.StatusBadGateway},
		{"missing prompt", media.ErrPromptRequired, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%s: statusFor = %d, want %d", tt.name, got, tt.want)
		}
	}
}
