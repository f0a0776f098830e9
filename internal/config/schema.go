// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for brandai.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.openai").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Chat holds defaults for sends that do not name a provider or brand.
	Chat ChatConfig `yaml:"chat"`

	// Telemetry configures trace export. Omitted means spans are dropped.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ChatConfig holds default routing for CLI and gateway sends.
type ChatConfig struct {
	// Provider is the default provider id (openai, gemini, ollama).
	Provider string `yaml:"provider"`

	// BrandID selects the brand whose context is injected when the caller
	// does not pick one. Empty falls back to the store's current brand.
	BrandID string `yaml:"brand_id"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP traces URL, e.g.
	// "http://localhost:4318/v1/traces".
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// ServiceName overrides the reported service.name. Defaults to "brandai".
	ServiceName string `yaml:"service_name"`
}

// ProviderModuleID returns the module ID that implements a provider id.
func ProviderModuleID(provider string) string {
	return "provider." + provider
}
