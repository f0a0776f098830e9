package gemini

import (
	"fmt"
	"time"
)

// Default endpoints and model. The endpoint is a template: the model
// identifier replaces provider.ModelPlaceholder.
const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/{model}:streamGenerateContent"
	DefaultProbeURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel    = "gemini-2.0-flash"
)

// Config holds the configuration for the Gemini provider module.
type Config struct {
	// APIKey is used for requests that carry no credential of their own.
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	ProbeURL string `yaml:"probe_url"`
	Timeout  string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ProbeURL == "" {
		c.ProbeURL = DefaultProbeURL
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("provider.gemini: endpoint is required")
	}
	if c.Model == "" {
		return fmt.Errorf("provider.gemini: model is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.gemini: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
