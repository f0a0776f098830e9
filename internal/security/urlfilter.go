package security

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrURLBlocked is returned when a URL is denied by the filter.
var ErrURLBlocked = errors.New("URL blocked by filter")

// URLFilterConfig holds the configuration for outbound URL filtering.
// It guards caller-supplied backend URLs such as a ComfyUI override.
type URLFilterConfig struct {
	// AllowDomains is the list of allowed domains. If empty, ALL domains
	// are blocked. Allowing "example.com" also allows "api.example.com".
	AllowDomains []string `yaml:"allow_domains"`

	// DenyDomains takes precedence over AllowDomains.
	DenyDomains []string `yaml:"deny_domains"`
}

// URLFilter implements default-deny URL filtering with allow/deny domain lists.
type URLFilter struct {
	allow []string
	deny  []string
}

// NewURLFilter creates a URL filter from the given config.
func NewURLFilter(cfg URLFilterConfig) *URLFilter {
	return &URLFilter{
		allow: normalizeDomains(cfg.AllowDomains),
		deny:  normalizeDomains(cfg.DenyDomains),
	}
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Check returns nil if rawURL is an http(s) URL whose host is allowed.
func (f *URLFilter) Check(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %w", ErrURLBlocked, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrURLBlocked, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrURLBlocked)
	}

	for _, d := range f.deny {
		if matchDomain(host, d) {
			return fmt.Errorf("%w: %s (denied)", ErrURLBlocked, host)
		}
	}
	if len(f.allow) == 0 {
		return fmt.Errorf("%w: %s (no domains allowed)", ErrURLBlocked, host)
	}
	for _, a := range f.allow {
		if matchDomain(host, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (not in allow list)", ErrURLBlocked, host)
}

// IsConfigured returns true if any allow or deny domains are configured.
func (f *URLFilter) IsConfigured() bool {
	return len(f.allow) > 0 || len(f.deny) > 0
}

// matchDomain reports whether host equals domain or is a subdomain of it.
func matchDomain(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
