// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Audit event types.
const (
	EventUserAction         = "USER_ACTION"
	EventNavigation         = "NAVIGATION"
	EventAuthSuccess        = "AUTH_SUCCESS"
	EventAuthFailure        = "AUTH_FAILURE"
	EventAuthLockout        = "AUTH_LOCKOUT"
	EventAuthUnlock         = "AUTH_UNLOCK"
	EventSessionStart       = "SESSION_START"
	EventSessionEnd         = "SESSION_END"
	EventSessionTimeout     = "SESSION_TIMEOUT"
	EventKeyRemoved         = "KEY_REMOVED"
	EventKeyReturned        = "KEY_RETURNED"
	EventEmergencyAccess    = "EMERGENCY_ACCESS"
	EventEmergencyLockout   = "EMERGENCY_LOCKOUT"
	EventConfigAccess       = "CONFIG_ACCESS"
	EventIntegrityViolation = "INTEGRITY_VIOLATION"
)

// Severity grades an event for log level selection.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// =============================================================================
// AUDIT EVENT
// =============================================================================

// AuditEvent is a single audit record.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Severity  Severity          `json:"severity"`
	SessionID string            `json:"session_id,omitempty"`
	User      string            `json:"user,omitempty"`
	Screen    string            `json:"screen,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single pipe-separated line.
func (e *AuditEvent) ToLogLine() string {
	status := "SUCCESS"
	if !e.Success {
		status = "FAILURE"
		if e.Error != "" {
			status = "ERROR: " + e.Error
		}
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.Metadata[k])
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s | %s | %s",
		e.Timestamp.Format("2006-01-02 15:04:05"),
		e.EventType,
		e.Severity,
		e.SessionID,
		e.User,
		e.Screen,
		strings.Join(pairs, " "),
		status,
	)
}

// ToJSON formats the event as JSON.
func (e *AuditEvent) ToJSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor replaces sensitive data in audit text.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"PIN", regexp.MustCompile(`(?i)\b(pin|passcode)\s*[=:]\s*\S+`), "$1=[REDACTED]"},
	{"TOTP", regexp.MustCompile(`(?i)\b(totp|otp|code)\s*[=:]\s*\d{6}\b`), "$1=[REDACTED]"},
	{"Secret", regexp.MustCompile(`(?i)\b(secret|password)\s*[=:]\s*\S+`), "$1=[REDACTED]"},
}

// secretKeys are metadata keys whose values are never written.
var secretKeys = map[string]bool{
	"pin":    true,
	"secret": true,
	"totp":   true,
}

func defaultRedactors() []Redactor {
	out := make([]Redactor, 0, len(secretPatterns))
	for _, sp := range secretPatterns {
		out = append(out, NewPatternRedactor(sp.name, sp.pattern, sp.replace))
	}
	return out
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// Sink receives every audit event after redaction.
type Sink interface {
	Append(ctx context.Context, ev AuditEvent) error
}

// AuditFailureCallback is called synchronously when a sink fails.
type AuditFailureCallback func(err error)

// AuditLogger redacts events, writes them to the structured log and fans
// them out to sinks. A nil *AuditLogger discards everything.
type AuditLogger struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	sinks     []Sink
	redactors []Redactor
	now       func() time.Time
	enabled   bool

	failureCount int
	lastFailure  error
	onFailure    AuditFailureCallback
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithAuditLog sets the structured logger events are written to.
func WithAuditLog(l zerolog.Logger) AuditOption {
	return func(a *AuditLogger) {
		a.logger = l.With().Str("component", "audit").Logger()
	}
}

// WithAuditSink adds a sink.
func WithAuditSink(s Sink) AuditOption {
	return func(a *AuditLogger) {
		if s != nil {
			a.sinks = append(a.sinks, s)
		}
	}
}

// WithAuditClock replaces time.Now.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(a *AuditLogger) {
		if now != nil {
			a.now = now
		}
	}
}

// WithFailureCallback is invoked when a sink rejects an event.
func WithFailureCallback(cb AuditFailureCallback) AuditOption {
	return func(a *AuditLogger) {
		a.onFailure = cb
	}
}

// NewAuditLogger creates an enabled logger with the default redactors.
func NewAuditLogger(opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		logger:    zerolog.Nop(),
		redactors: defaultRedactors(),
		now:       time.Now,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Log records ev. ID, timestamp and severity are filled in when empty.
func (l *AuditLogger) Log(ev AuditEvent) error {
	return l.LogContext(context.Background(), ev)
}

// LogContext is Log with a caller context passed to sinks.
func (l *AuditLogger) LogContext(ctx context.Context, ev AuditEvent) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
	if len(ev.Metadata) > 0 {
		clean := make(map[string]string, len(ev.Metadata))
		for k, v := range ev.Metadata {
			if secretKeys[strings.ToLower(k)] {
				clean[k] = "[REDACTED]"
				continue
			}
			clean[k] = l.redactLocked(v)
		}
		ev.Metadata = clean
	}
	ev.Error = l.redactLocked(ev.Error)
	sinks := l.sinks
	l.mu.Unlock()

	l.write(ev)

	var failed error
	for _, s := range sinks {
		if err := s.Append(ctx, ev); err != nil {
			failed = fmt.Errorf("audit sink: %w", err)
			break
		}
	}

	l.mu.Lock()
	if failed == nil {
		l.failureCount = 0
		l.mu.Unlock()
		return nil
	}
	l.failureCount++
	l.lastFailure = failed
	cb := l.onFailure
	l.mu.Unlock()

	l.logger.Error().Err(failed).Str("event_type", ev.EventType).Msg("audit sink failed")
	if cb != nil {
		cb(failed)
	}
	return failed
}

func (l *AuditLogger) write(ev AuditEvent) {
	var e *zerolog.Event
	switch ev.Severity {
	case SeverityCritical:
		e = l.logger.Error()
	case SeverityWarning:
		e = l.logger.Warn()
	default:
		e = l.logger.Info()
	}
	e = e.Str("audit_id", ev.ID).
		Str("event_type", ev.EventType).
		Str("security_level", string(ev.Severity)).
		Bool("success", ev.Success)
	if ev.SessionID != "" {
		e = e.Str("session_id", ev.SessionID)
	}
	if ev.User != "" {
		e = e.Str("user", ev.User)
	}
	if ev.Screen != "" {
		e = e.Str("screen", ev.Screen)
	}
	if ev.Error != "" {
		e = e.Str("error", ev.Error)
	}
	for k, v := range ev.Metadata {
		e = e.Str(k, v)
	}
	e.Msg(ev.ToLogLine())
}

// LogEvent records a generic event.
func (l *AuditLogger) LogEvent(eventType, sessionID string, success bool, metadata map[string]string) error {
	return l.Log(AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		Success:   success,
		Metadata:  metadata,
	})
}

// LogUserAction records an action taken on a screen.
func (l *AuditLogger) LogUserAction(sessionID, user, screen, action string, details map[string]string) error {
	md := make(map[string]string, len(details)+1)
	for k, v := range details {
		md[k] = v
	}
	md["action"] = action
	return l.Log(AuditEvent{
		EventType: EventUserAction,
		SessionID: sessionID,
		User:      user,
		Screen:    screen,
		Success:   true,
		Metadata:  md,
	})
}

// LogCritical records a high-severity security event.
func (l *AuditLogger) LogCritical(eventType, sessionID string, success bool, metadata map[string]string) error {
	return l.Log(AuditEvent{
		EventType: eventType,
		Severity:  SeverityCritical,
		SessionID: sessionID,
		Success:   success,
		Metadata:  metadata,
	})
}

// Redact applies every redactor to input.
func (l *AuditLogger) Redact(input string) string {
	if l == nil {
		return input
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.redactLocked(input)
}

func (l *AuditLogger) redactLocked(input string) string {
	if input == "" {
		return input
	}
	for _, r := range l.redactors {
		input = r.Redact(input)
	}
	return input
}

// AddRedactor appends a custom redactor.
func (l *AuditLogger) AddRedactor(r Redactor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redactors = append(l.redactors, r)
}

// SetEnabled turns audit logging on or off.
func (l *AuditLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// FailureCount returns consecutive sink failures.
func (l *AuditLogger) FailureCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failureCount
}

// LastFailure returns the most recent sink error.
func (l *AuditLogger) LastFailure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFailure
}
