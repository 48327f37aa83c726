// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPGate is the optional second factor for configuration access.
type TOTPGate struct {
	secret string
	now    func() time.Time
}

// NewTOTPGate returns a gate for secret. An empty secret disables the gate.
func NewTOTPGate(secret string) *TOTPGate {
	return &TOTPGate{secret: secret, now: time.Now}
}

// WithClock replaces time.Now. It returns g for chaining.
func (g *TOTPGate) WithClock(now func() time.Time) *TOTPGate {
	if now != nil {
		g.now = now
	}
	return g
}

// Required reports whether a code must be supplied.
func (g *TOTPGate) Required() bool {
	return g != nil && g.secret != ""
}

// Validate checks code. It returns nil when the gate is disabled.
func (g *TOTPGate) Validate(code string) error {
	if !g.Required() {
		return nil
	}
	if code == "" {
		return ErrTOTPRequired
	}
	ok, err := totp.ValidateCustom(code, g.secret, g.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPRequired, err)
	}
	if !ok {
		return ErrTOTPRequired
	}
	return nil
}

// GenerateTOTPKey creates a new secret for account, for provisioning an
// authenticator app.
func GenerateTOTPKey(issuer, account string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return key, nil
}
