// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredential is returned for a wrong PIN or unknown user.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrLocked is returned while an identifier is locked out.
	ErrLocked = errors.New("locked out")

	// ErrThrottled is returned when attempts arrive faster than allowed.
	ErrThrottled = errors.New("too many attempts, slow down")

	// ErrTOTPRequired is returned when a one-time code is missing or wrong.
	ErrTOTPRequired = errors.New("valid one-time code required")
)

// =============================================================================
// PIN HASHING
// =============================================================================

const (
	// PINHashIterations is the PBKDF2 work factor for PIN hashes. PINs are
	// short, so the hash only keeps them out of memory dumps and logs.
	PINHashIterations = 4096

	pinHashSize = 32
	saltSize    = 16
)

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func hashPIN(pin string, salt []byte) []byte {
	return pbkdf2.Key([]byte(pin), salt, PINHashIterations, pinHashSize, sha256.New)
}

// PINMatcher compares candidates against one stored PIN in constant time.
type PINMatcher struct {
	salt []byte
	hash []byte
}

// NewPINMatcher hashes pin. An empty pin yields a matcher that never matches.
func NewPINMatcher(pin string) (*PINMatcher, error) {
	if pin == "" {
		return &PINMatcher{}, nil
	}
	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	return &PINMatcher{salt: salt, hash: hashPIN(pin, salt)}, nil
}

// Match reports whether candidate equals the stored PIN.
func (m *PINMatcher) Match(candidate string) bool {
	if m == nil || m.hash == nil {
		return false
	}
	return subtle.ConstantTimeCompare(hashPIN(candidate, m.salt), m.hash) == 1
}

// =============================================================================
// VERIFIER
// =============================================================================

// Verifier checks a secret for a claimed user and resolves the identity,
// including its role.
type Verifier interface {
	Verify(user, secret string) (session.Identity, error)
}

// Credential is a configured user with an explicit role and PIN.
type Credential struct {
	User string
	Role session.Role
	PIN  string
}

// StaticVerifier verifies against configured credentials. Users without an
// entry may still authenticate with the shared default PIN as standard users.
type StaticVerifier struct {
	fallback *PINMatcher
	users    map[string]staticUser
}

type staticUser struct {
	role session.Role
	pin  *PINMatcher
}

// NewStaticVerifier builds a verifier. An empty defaultPIN disables the
// shared fallback.
func NewStaticVerifier(defaultPIN string, users []Credential) (*StaticVerifier, error) {
	fallback, err := NewPINMatcher(defaultPIN)
	if err != nil {
		return nil, err
	}
	v := &StaticVerifier{
		fallback: fallback,
		users:    make(map[string]staticUser, len(users)),
	}
	for _, c := range users {
		if c.User == "" {
			return nil, fmt.Errorf("credential with empty user")
		}
		if _, dup := v.users[c.User]; dup {
			return nil, fmt.Errorf("duplicate credential for %q", c.User)
		}
		role := c.Role
		if !role.Valid() {
			return nil, fmt.Errorf("credential %q: unknown role %q", c.User, c.Role)
		}
		m, err := NewPINMatcher(c.PIN)
		if err != nil {
			return nil, err
		}
		v.users[c.User] = staticUser{role: role, pin: m}
	}
	return v, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(user, secret string) (session.Identity, error) {
	if user == "" {
		return session.Identity{}, ErrInvalidCredential
	}
	if u, ok := v.users[user]; ok {
		if u.pin.Match(secret) {
			return session.Identity{User: user, Role: u.role}, nil
		}
		return session.Identity{}, ErrInvalidCredential
	}
	if v.fallback.Match(secret) {
		return session.Identity{User: user, Role: session.RoleStandard}, nil
	}
	return session.Identity{}, ErrInvalidCredential
}
