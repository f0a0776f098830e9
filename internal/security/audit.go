package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Audit event types.
const (
	EventChat           EventType = "chat"
	EventConnectionTest EventType = "connection_test"
	EventMedia          EventType = "media"
	EventAuthFailure    EventType = "auth_failure"
	EventRateLimit      EventType = "rate_limit"
	EventConfigChange   EventType = "config_change"
)

// AuditEvent is a single audit log entry.
type AuditEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	Type           EventType         `json:"type"`
	Provider       string            `json:"provider,omitempty"`
	BrandID        string            `json:"brand_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	RemoteAddr     string            `json:"remote_addr,omitempty"`
	Detail         string            `json:"detail,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent.
	Writer io.Writer

	// Redactor, if non-nil, is applied to Detail and Metadata values before writing.
	Redactor *Redactor

	// OnEvent, if non-nil, is called for every event.
	OnEvent func(AuditEvent)

	// Now overrides time.Now. Defaults to time.Now.
	Now func() time.Time
}

// AuditLogger writes structured audit events as JSONL with optional redaction.
type AuditLogger struct {
	writer   io.Writer
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
	mu       sync.Mutex
}

// NewAuditLogger creates an audit logger with the given configuration.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
	}
}

// Log stamps and writes an audit event. The caller's Metadata map is
// never mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	event.Metadata = maps.Clone(event.Metadata)

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}
