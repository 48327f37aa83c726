// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxAttempts is the number of consecutive failures before lockout.
	DefaultMaxAttempts = 3

	// DefaultLockoutDuration is how long a lockout lasts.
	DefaultLockoutDuration = 15 * time.Minute
)

// =============================================================================
// ATTEMPT RECORD
// =============================================================================

// AttemptRecord tracks consecutive failures for one identifier.
type AttemptRecord struct {
	Count        int       `json:"count"`
	FirstAttempt time.Time `json:"first_attempt,omitempty"`
	LastAttempt  time.Time `json:"last_attempt"`
	Locked       bool      `json:"locked"`
	LockedUntil  time.Time `json:"locked_until,omitempty"`
	LockoutCount int       `json:"lockout_count,omitempty"`
}

func (a *AttemptRecord) expiredAt(now time.Time) bool {
	return a.Locked && !now.Before(a.LockedUntil)
}

// =============================================================================
// LOCKOUT MANAGER
// =============================================================================

// LockoutManager locks an identifier after repeated failures. State lives
// only in memory and is lost on restart.
type LockoutManager struct {
	mu              sync.Mutex
	attempts        map[string]*AttemptRecord
	maxAttempts     int
	lockoutDuration time.Duration
	auditLogger     *AuditLogger
	now             func() time.Time
}

// LockoutManagerOption configures a LockoutManager.
type LockoutManagerOption func(*LockoutManager)

// WithMaxAttempts sets the failure limit.
func WithMaxAttempts(n int) LockoutManagerOption {
	return func(l *LockoutManager) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithLockoutDuration sets the lockout duration.
func WithLockoutDuration(d time.Duration) LockoutManagerOption {
	return func(l *LockoutManager) {
		if d > 0 {
			l.lockoutDuration = d
		}
	}
}

// WithAuditLogger sets the audit logger for lockout events.
func WithAuditLogger(a *AuditLogger) LockoutManagerOption {
	return func(l *LockoutManager) {
		l.auditLogger = a
	}
}

// WithLockoutClock replaces time.Now.
func WithLockoutClock(now func() time.Time) LockoutManagerOption {
	return func(l *LockoutManager) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLockoutManager creates a LockoutManager.
func NewLockoutManager(opts ...LockoutManagerOption) *LockoutManager {
	l := &LockoutManager{
		attempts:        make(map[string]*AttemptRecord),
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// =============================================================================
// CORE OPERATIONS
// =============================================================================

// RecordFailure counts a failed attempt and returns the updated record.
// The record is Locked once the limit is reached. While locked it returns
// ErrLocked without counting.
func (l *LockoutManager) RecordFailure(identifier string) (AttemptRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := l.recordLocked(identifier, now)
	if rec.Locked {
		l.logEvent(EventAuthFailure, identifier, map[string]string{
			"reason":         "locked",
			"time_remaining": rec.LockedUntil.Sub(now).Round(time.Second).String(),
		})
		return *rec, ErrLocked
	}

	if rec.FirstAttempt.IsZero() {
		rec.FirstAttempt = now
	}
	rec.Count++
	rec.LastAttempt = now
	l.logEvent(EventAuthFailure, identifier, map[string]string{
		"attempt_count": fmt.Sprintf("%d/%d", rec.Count, l.maxAttempts),
	})

	if rec.Count >= l.maxAttempts {
		rec.Locked = true
		rec.LockedUntil = now.Add(l.lockoutDuration)
		rec.LockoutCount++
		l.logEvent(EventAuthLockout, identifier, map[string]string{
			"duration":       l.lockoutDuration.String(),
			"until":          rec.LockedUntil.Format(time.RFC3339),
			"lockout_number": strconv.Itoa(rec.LockoutCount),
		})
	}
	return *rec, nil
}

// RecordSuccess clears the failure counter. It returns ErrLocked if the
// identifier is locked; a correct secret does not lift a lockout.
func (l *LockoutManager) RecordSuccess(identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.recordLocked(identifier, l.now())
	if rec.Locked {
		return ErrLocked
	}
	rec.Count = 0
	rec.FirstAttempt = time.Time{}
	rec.LastAttempt = l.now()
	return nil
}

// recordLocked returns the record for identifier, clearing an expired lock.
func (l *LockoutManager) recordLocked(identifier string, now time.Time) *AttemptRecord {
	rec, ok := l.attempts[identifier]
	if !ok {
		rec = &AttemptRecord{}
		l.attempts[identifier] = rec
	}
	if rec.expiredAt(now) {
		l.clearLocked(rec)
		l.logEvent(EventAuthUnlock, identifier, map[string]string{"method": "expired"})
	}
	return rec
}

func (l *LockoutManager) clearLocked(rec *AttemptRecord) {
	rec.Locked = false
	rec.LockedUntil = time.Time{}
	rec.Count = 0
	rec.FirstAttempt = time.Time{}
}

// IsLocked reports whether identifier is currently locked out.
func (l *LockoutManager) IsLocked(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.attempts[identifier]
	return ok && rec.Locked && !rec.expiredAt(l.now())
}

// Remaining returns attempts left before lockout. Zero while locked.
func (l *LockoutManager) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.attempts[identifier]
	if !ok {
		return l.maxAttempts
	}
	if rec.Locked && !rec.expiredAt(l.now()) {
		return 0
	}
	if rec.Locked {
		return l.maxAttempts
	}
	return l.maxAttempts - rec.Count
}

// TimeRemaining returns how long identifier stays locked.
func (l *LockoutManager) TimeRemaining(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.attempts[identifier]
	if !ok || !rec.Locked {
		return 0
	}
	if d := rec.LockedUntil.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Unlock lifts a lockout manually.
func (l *LockoutManager) Unlock(identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[identifier]
	if !ok {
		return fmt.Errorf("identifier not found: %s", maskIdentifier(identifier))
	}
	if !rec.Locked {
		return fmt.Errorf("identifier not locked: %s", maskIdentifier(identifier))
	}
	l.clearLocked(rec)
	l.logEvent(EventAuthUnlock, identifier, map[string]string{"method": "manual"})
	return nil
}

// Reset forgets identifier entirely.
func (l *LockoutManager) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, identifier)
}

// Status returns a copy of the record for identifier.
func (l *LockoutManager) Status(identifier string) (AttemptRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.attempts[identifier]
	if !ok {
		return AttemptRecord{}, false
	}
	return *rec, true
}

// Sweep clears expired lockouts and returns the identifiers released. It is
// polled from the UI tick.
func (l *LockoutManager) Sweep() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var released []string
	for id, rec := range l.attempts {
		if rec.expiredAt(now) {
			l.clearLocked(rec)
			l.logEvent(EventAuthUnlock, id, map[string]string{"method": "expired"})
			released = append(released, id)
		}
	}
	sort.Strings(released)
	return released
}

// LockedIdentifiers returns identifiers currently locked, sorted.
func (l *LockoutManager) LockedIdentifiers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var out []string
	for id, rec := range l.attempts {
		if rec.Locked && !rec.expiredAt(now) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// MaxAttempts returns the failure limit.
func (l *LockoutManager) MaxAttempts() int {
	return l.maxAttempts
}

// LockoutDuration returns the lockout duration.
func (l *LockoutManager) LockoutDuration() time.Duration {
	return l.lockoutDuration
}

func (l *LockoutManager) logEvent(eventType, identifier string, metadata map[string]string) {
	if l.auditLogger == nil {
		return
	}
	md := map[string]string{"identifier": maskIdentifier(identifier)}
	for k, v := range metadata {
		md[k] = v
	}
	sev := SeverityInfo
	if eventType == EventAuthLockout {
		sev = SeverityWarning
	}
	_ = l.auditLogger.Log(AuditEvent{
		EventType: eventType,
		Severity:  sev,
		Success:   eventType == EventAuthUnlock,
		Metadata:  md,
	})
}

// maskIdentifier hashes an identifier for logging.
func maskIdentifier(id string) string {
	hash := sha256.Sum256([]byte(id))
	return "hash:" + hex.EncodeToString(hash[:])[:12]
}
