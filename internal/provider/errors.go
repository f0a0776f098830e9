package provider

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Sentinel errors for provider operations.
var (
	// ErrUnknownProvider indicates a provider ID with no registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrAuth indicates the provider rejected the credential.
	ErrAuth = errors.New("provider rejected credential")

	// ErrProviderDown indicates the provider is temporarily unavailable
	// or unreachable.
	ErrProviderDown = errors.New("provider unavailable")
)

// ConfigurationError reports a request that cannot be dispatched. It is
// always returned before any network activity.
type ConfigurationError struct {
	Provider ID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("provider %q: %s", e.Provider, ErrUnknownProvider)
	}
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Reason)
}

// Is matches ErrUnknownProvider when no other reason was recorded.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnknownProvider && e.Reason == ""
}

// TransportError reports a non-success HTTP status or a network failure.
// StatusCode is zero for network failures, in which case Err holds the
// underlying error.
type TransportError struct {
	Provider   ID
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: transport error", e.Provider)
	}
}

// Unwrap exposes both the underlying error and the sentinel classifying
// the failure.
func (e *TransportError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	return errs
}

func (e *TransportError) sentinel() error {
	switch {
	case e.StatusCode == 0:
		return ErrProviderDown
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimit
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrAuth
	case e.StatusCode >= 500:
		return ErrProviderDown
	default:
		return nil
	}
}

// NewStatusError builds a TransportError from a non-success response.
func NewStatusError(id ID, status int, body []byte) *TransportError {
	msg := string(body)
	if len(msg) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	return &TransportError{Provider: id, StatusCode: status, Message: msg}
}

// NewNetworkError wraps a connection-level failure.
func NewNetworkError(id ID, err error) *TransportError {
	return &TransportError{Provider: id, Err: err}
}

const maxErrorMessage = 512

// IsRetryable reports whether the error is transient and the request
// could be retried, possibly after a delay. Nothing in this module
// retries on its own.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
