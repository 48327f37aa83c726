// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the session lifetime measured from login.
	DefaultTimeout = 30 * time.Minute

	// DefaultWarningAfter is when the inactivity warning is raised.
	DefaultWarningAfter = 25 * time.Minute

	// DefaultActivityCodeMin and DefaultActivityCodeMax bound activity codes.
	DefaultActivityCodeMin = 3
	DefaultActivityCodeMax = 8

	// sessionIDLayout is appended to the user name to form the session ID.
	sessionIDLayout = "20060102_150405"
)

// =============================================================================
// STATE
// =============================================================================

// State is the single source of truth for who is logged in and what they did.
// All multi-field mutations happen under one mutex so a reader never observes
// an active session without an ID.
type State struct {
	mu sync.RWMutex

	now       func() time.Time
	inventory Inventory

	timeout      time.Duration
	warningAfter time.Duration
	codeMin      int
	codeMax      int

	identity     Identity
	method       AuthMethod
	loginTime    time.Time
	active       bool
	sessionID    string
	activityCode string
	keys         []KeyRecord
	removed      []KeyEvent
	returned     []KeyEvent
	warned       bool

	failedAttempts int
}

// Option configures a State.
type Option func(*State)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInventory sets the role lookup used at session start.
func WithInventory(inv Inventory) Option {
	return func(s *State) {
		if inv != nil {
			s.inventory = inv
		}
	}
}

// WithTimeout sets the session lifetime.
func WithTimeout(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithWarningAfter sets when the expiry warning fires. Zero disables it.
func WithWarningAfter(d time.Duration) Option {
	return func(s *State) {
		if d >= 0 {
			s.warningAfter = d
		}
	}
}

// WithActivityCodeLength sets the accepted activity code length range.
func WithActivityCodeLength(minLen, maxLen int) Option {
	return func(s *State) {
		if minLen > 0 && maxLen >= minLen {
			s.codeMin = minLen
			s.codeMax = maxLen
		}
	}
}

// NewState returns a State in the no-session state.
func NewState(opts ...Option) *State {
	s := &State{
		now:          time.Now,
		inventory:    DefaultCabinet(),
		timeout:      DefaultTimeout,
		warningAfter: DefaultWarningAfter,
		codeMin:      DefaultActivityCodeMin,
		codeMax:      DefaultActivityCodeMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// resetLocked returns every session field to the initial state.
func (s *State) resetLocked() {
	s.identity = Identity{}
	s.method = MethodUnknown
	s.loginTime = time.Time{}
	s.active = false
	s.sessionID = ""
	s.activityCode = ""
	s.keys = nil
	s.removed = nil
	s.returned = nil
	s.warned = false
	s.failedAttempts = 0
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// StartSession opens a session for id. It fails with ErrSessionActive if a
// session is already open; the caller must end it first.
func (s *State) StartSession(id Identity, method AuthMethod) error {
	if id.User == "" {
		return fmt.Errorf("start session: empty user")
	}
	if !id.Role.Valid() {
		id.Role = RoleStandard
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("start session for %q: %w (current %s)", id.User, ErrSessionActive, s.sessionID)
	}

	now := s.now()
	s.identity = id
	s.method = ParseAuthMethod(string(method))
	s.loginTime = now
	s.sessionID = id.User + "_" + now.Format(sessionIDLayout)
	s.activityCode = ""
	s.keys = s.inventory.KeysFor(id.Role)
	s.removed = nil
	s.returned = nil
	s.warned = false
	s.failedAttempts = 0
	s.active = true
	return nil
}

// EndSession closes the session and returns its summary. The State is reset
// before returning; the summary is the only surviving copy.
func (s *State) EndSession() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Summary{}, ErrNoSession
	}

	end := s.now()
	summary := Summary{
		SessionID:      s.sessionID,
		User:           s.identity.User,
		Role:           s.identity.Role,
		Method:         s.method,
		LoginTime:      s.loginTime,
		EndTime:        end,
		Duration:       end.Sub(s.loginTime),
		ActivityCode:   s.activityCode,
		KeysRemoved:    len(s.removed),
		KeysReturned:   len(s.returned),
		RemovedKeys:    append([]KeyEvent(nil), s.removed...),
		ReturnedKeys:   append([]KeyEvent(nil), s.returned...),
		FailedAttempts: s.failedAttempts,
	}

	s.resetLocked()
	return summary, nil
}

// =============================================================================
// KEY CHECKOUT
// =============================================================================

// RemoveKey marks the key in slot as removed. It returns false when there is
// no session, the slot is not accessible, or the key is already out.
func (s *State) RemoveKey(slot int) bool {
	return s.transition(slot, KeyAvailable, KeyRemoved, &s.removed)
}

// ReturnKey is the inverse of RemoveKey and requires the key to be out.
func (s *State) ReturnKey(slot int) bool {
	return s.transition(slot, KeyRemoved, KeyAvailable, &s.returned)
}

func (s *State) transition(slot int, from, to KeyStatus, trail *[]KeyEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	for i := range s.keys {
		k := &s.keys[i]
		if k.Slot != slot || k.Status != from {
			continue
		}
		k.Status = to
		*trail = append(*trail, KeyEvent{
			Name:      k.Name,
			Slot:      slot,
			Timestamp: s.now(),
			SessionID: s.sessionID,
		})
		return true
	}
	return false
}

// KeyStatusFor returns the status of slot in the current session.
func (s *State) KeyStatusFor(slot int) (KeyStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Slot == slot {
			return k.Status, true
		}
	}
	return "", false
}

// =============================================================================
// ACTIVITY CODE
// =============================================================================

// SetActivityCode records the validated activity code for the open session.
func (s *State) SetActivityCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrNoSession
	}
	if err := s.validateCodeLocked(code); err != nil {
		return err
	}
	s.activityCode = code
	return nil
}

// ValidateActivityCode checks code against the configured bounds.
func (s *State) ValidateActivityCode(code string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateCodeLocked(code)
}

func (s *State) validateCodeLocked(code string) error {
	if len(code) < s.codeMin || len(code) > s.codeMax {
		return fmt.Errorf("%w: length %d outside %d-%d", ErrInvalidActivityCode, len(code), s.codeMin, s.codeMax)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit %q", ErrInvalidActivityCode, r)
		}
	}
	return nil
}

// ActivityCodeBounds returns the accepted length range.
func (s *State) ActivityCodeBounds() (minLen, maxLen int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codeMin, s.codeMax
}

// =============================================================================
// FAILED ATTEMPTS
// =============================================================================

// RecordFailedAttempt increments the consecutive failure counter and returns it.
func (s *State) RecordFailedAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedAttempts++
	return s.failedAttempts
}

// ResetFailedAttempts clears the failure counter.
func (s *State) ResetFailedAttempts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedAttempts = 0
}

// FailedAttempts returns the consecutive failure counter.
func (s *State) FailedAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failedAttempts
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Active reports whether a session is open.
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// CurrentUser returns the logged-in user, if any.
func (s *State) CurrentUser() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.User, s.active
}

// Identity returns the authenticated identity.
func (s *State) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Method returns the authentication method of the open session.
func (s *State) Method() AuthMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.method
}

// SessionID returns the session ID, empty when no session is open.
func (s *State) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// LoginTime returns when the session started.
func (s *State) LoginTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginTime
}

// ActivityCode returns the recorded activity code.
func (s *State) ActivityCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activityCode
}

// AccessibleKeys returns a copy of the session inventory.
func (s *State) AccessibleKeys() []KeyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KeyRecord(nil), s.keys...)
}

// RemovedKeys returns a copy of the removal trail.
func (s *State) RemovedKeys() []KeyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KeyEvent(nil), s.removed...)
}

// ReturnedKeys returns a copy of the return trail.
func (s *State) ReturnedKeys() []KeyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KeyEvent(nil), s.returned...)
}

// Duration returns how long the session has been open.
func (s *State) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return 0
	}
	return s.now().Sub(s.loginTime)
}

// IsExpired is true when no session is open or the timeout has elapsed.
func (s *State) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return true
	}
	return s.now().Sub(s.loginTime) > s.timeout
}

// SetTimeouts updates the lifetime and warning threshold, e.g. after a
// configuration reload.
func (s *State) SetTimeouts(timeout, warningAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout > 0 {
		s.timeout = timeout
	}
	if warningAfter >= 0 {
		s.warningAfter = warningAfter
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status is a consistent read-only view of the State.
type Status struct {
	Active         bool
	User           string
	Role           Role
	Method         AuthMethod
	SessionID      string
	LoginTime      time.Time
	Duration       time.Duration
	Remaining      time.Duration
	ActivityCode   string
	Keys           []KeyRecord
	KeysRemoved    int
	KeysReturned   int
	FailedAttempts int
}

// Status returns a snapshot taken under a single lock.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Active:         s.active,
		User:           s.identity.User,
		Role:           s.identity.Role,
		Method:         s.method,
		SessionID:      s.sessionID,
		LoginTime:      s.loginTime,
		ActivityCode:   s.activityCode,
		Keys:           append([]KeyRecord(nil), s.keys...),
		KeysRemoved:    len(s.removed),
		KeysReturned:   len(s.returned),
		FailedAttempts: s.failedAttempts,
	}
	if s.active {
		st.Duration = s.now().Sub(s.loginTime)
		st.Remaining = s.timeout - st.Duration
		if st.Remaining < 0 {
			st.Remaining = 0
		}
	}
	return st
}
