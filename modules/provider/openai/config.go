package openai

import (
	"fmt"
	"time"
)

// Default endpoints and model.
const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultProbeURL = "https://api.openai.com/v1/models"
	DefaultModel    = "gpt-4o-mini"
)

// Config holds the configuration for the OpenAI provider module.
type Config struct {
	// APIKey is used for requests that carry no credential of their own.
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	ProbeURL string `yaml:"probe_url"`
	// Timeout bounds connection tests. Streams are bounded by their context only.
	Timeout string `yaml:"timeout"`
}

// defaults fills zero-valued fields with sensible defaults.
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

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// validateTimeout checks that the timeout string is a valid Go duration.
func (c *Config) validateTimeout() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
