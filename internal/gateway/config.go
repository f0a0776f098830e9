package gateway

import (
	"time"

	"github.com/flemzord/brandai/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string                   `yaml:"bind"`
	Auth            AuthConfig               `yaml:"auth"`
	ReadTimeout     time.Duration            `yaml:"read_timeout"`
	WriteTimeout    time.Duration            `yaml:"write_timeout"`
	ShutdownTimeout time.Duration            `yaml:"shutdown_timeout"`
	MaxBodyBytes    int                      `yaml:"max_body_bytes"`
	RateLimit       security.RateLimitConfig `yaml:"rate_limit"`
	Media           MediaConfig              `yaml:"media"`
	// AuditLog is a JSONL file for audit events, relative to the data
	// directory. Empty sends audit events to the logger only.
	AuditLog string `yaml:"audit_log"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = security.DefaultMaxMessageSize
	}
}

// AuthConfig configures authentication for the API and admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// MediaConfig configures the media bridge behind /api/media.
type MediaConfig struct {
	// ComfyBaseURL is the ComfyUI server used when a job names none.
	ComfyBaseURL string `yaml:"comfy_base_url"`
	// AllowDomains lists hosts a request may name in comfy_base_url.
	// Empty rejects every per-request override.
	AllowDomains []string `yaml:"allow_domains"`
	DenyDomains  []string `yaml:"deny_domains"`
}
