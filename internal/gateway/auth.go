package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/brandai/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison. Every attempt
// counts against the client's auth rate limit; failures are audited.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil {
				if err := limiter.Allow(security.KindAuth, clientKey(r)); err != nil {
					emitAuthEvent(audit, security.EventRateLimit, r, "auth attempts")
					writeError(w, http.StatusTooManyRequests, err)
					return
				}
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				emitAuthEvent(audit, security.EventAuthFailure, r, "missing authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(after, cfg.BearerToken) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			emitAuthEvent(audit, security.EventAuthFailure, r, "invalid credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func emitAuthEvent(audit *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	audit.Log(security.AuditEvent{
		Type:       eventType,
		RemoteAddr: clientKey(r),
		Detail:     detail,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

// clientKey identifies the caller for rate limiting and audit.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
