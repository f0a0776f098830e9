package ollama

import (
	"fmt"
	"time"
)

// Default endpoints and model for a local Ollama daemon.
const (
	DefaultEndpoint = "http://localhost:11434/api/chat"
	DefaultProbeURL = "http://localhost:11434/api/tags"
	DefaultModel    = "deepseek-v3.1:671b-cloud"
)

// Config holds the configuration for the Ollama provider module.
type Config struct {
	// APIKey is optional; it is sent as a bearer token when set, for
	// daemons behind an authenticating proxy.
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
		c.Timeout = "5s"
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("provider.ollama: endpoint is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.ollama: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
