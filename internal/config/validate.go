package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/flemzord/brandai/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that the chat and
// telemetry sections point at something usable.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateChat(cfg)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)

	return errors.Join(errs...)
}

func validateChat(cfg *Config) []error {
	if cfg.Chat.Provider == "" {
		return nil
	}
	id := ProviderModuleID(cfg.Chat.Provider)
	if _, ok := cfg.Modules[id]; !ok {
		return []error{fmt.Errorf("config: chat.provider %q has no %q module entry", cfg.Chat.Provider, id)}
	}
	return nil
}

func validateTelemetry(t TelemetryConfig) []error {
	if t.OTLPEndpoint == "" {
		return nil
	}
	u, err := url.Parse(t.OTLPEndpoint)
	if err != nil {
		return []error{fmt.Errorf("config: telemetry.otlp_endpoint: %w", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("config: telemetry.otlp_endpoint: unsupported scheme %q", u.Scheme)}
	}
	return nil
}
