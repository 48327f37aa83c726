// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSessionActive is returned by StartSession while another session is open.
	ErrSessionActive = errors.New("session already active")

	// ErrNoSession is returned by operations that require an open session.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidActivityCode is returned when an activity code is not 3-8 digits
	// (or whatever bounds the State was configured with).
	ErrInvalidActivityCode = errors.New("invalid activity code")
)

// =============================================================================
// AUTH METHOD
// =============================================================================

// AuthMethod is how the user presented their credential.
type AuthMethod string

const (
	MethodCard      AuthMethod = "card"
	MethodBiometric AuthMethod = "biometric"
	MethodUnknown   AuthMethod = "unknown"
)

// ParseAuthMethod maps free-form input onto a known method.
func ParseAuthMethod(s string) AuthMethod {
	switch AuthMethod(s) {
	case MethodCard, MethodBiometric:
		return AuthMethod(s)
	default:
		return MethodUnknown
	}
}

// =============================================================================
// ROLES
// =============================================================================

// Role is the authorization role attached to an authenticated identity.
// Roles come from the credential verifier; they are never parsed out of a
// display name.
type Role string

const (
	RoleStandard   Role = "standard"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
)

// Privileged reports whether the role opens the full cabinet.
func (r Role) Privileged() bool {
	switch r {
	case RoleSupervisor, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r.Privileged()
}

// Identity is an authenticated user.
type Identity struct {
	User string
	Role Role
}

// =============================================================================
// KEYS
// =============================================================================

// KeyStatus is the binary availability of a cabinet slot.
type KeyStatus string

const (
	KeyAvailable KeyStatus = "available"
	KeyRemoved   KeyStatus = "removed"
)

// KeyRecord is a slot-addressed key the current user may open.
type KeyRecord struct {
	Name   string    `json:"name"`
	Slot   int       `json:"slot"`
	Status KeyStatus `json:"status"`
}

// KeyEvent is an audit entry for a removal or a return.
type KeyEvent struct {
	Name      string    `json:"name"`
	Slot      int       `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is the immutable snapshot produced by EndSession.
type Summary struct {
	SessionID      string        `json:"session_id"`
	User           string        `json:"user"`
	Role           Role          `json:"role"`
	Method         AuthMethod    `json:"auth_method"`
	LoginTime      time.Time     `json:"login_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	ActivityCode   string        `json:"activity_code,omitempty"`
	KeysRemoved    int           `json:"keys_removed"`
	KeysReturned   int           `json:"keys_returned"`
	RemovedKeys    []KeyEvent    `json:"removed_keys"`
	ReturnedKeys   []KeyEvent    `json:"returned_keys"`
	FailedAttempts int           `json:"failed_attempts"`
}

// Outstanding returns the slots removed during the session and not returned.
func (s Summary) Outstanding() []int {
	balance := make(map[int]int)
	var order []int
	for _, ev := range s.RemovedKeys {
		if _, seen := balance[ev.Slot]; !seen {
			order = append(order, ev.Slot)
		}
		balance[ev.Slot]++
	}
	for _, ev := range s.ReturnedKeys {
		balance[ev.Slot]--
	}
	var out []int
	for _, slot := range order {
		if balance[slot] > 0 {
			out = append(out, slot)
		}
	}
	return out
}
