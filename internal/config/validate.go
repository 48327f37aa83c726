// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Security
	// ==========================================================================

	if c.Security.PINLength < 4 || c.Security.PINLength > 12 {
		add("security.pin_length", "must be 4-12, got %d", c.Security.PINLength)
	}
	if c.Security.MaxPINAttempts < 1 || c.Security.MaxPINAttempts > 10 {
		add("security.max_pin_attempts", "must be 1-10, got %d", c.Security.MaxPINAttempts)
	}
	pins := map[string]string{
		"security.default_pin":   c.Security.DefaultPIN,
		"security.admin_pin":     c.Security.AdminPIN,
		"security.emergency_pin": c.Security.EmergencyPIN,
	}
	for _, field := range []string{"security.default_pin", "security.admin_pin", "security.emergency_pin"} {
		pin := pins[field]
		if pin == "" && field != "security.default_pin" {
			add(field, "must be set")
			continue
		}
		if pin != "" && !c.validPIN(pin) {
			add(field, "must be exactly %d digits", c.Security.PINLength)
		}
	}
	if c.Security.AdminPIN != "" && c.Security.AdminPIN == c.Security.EmergencyPIN {
		add("security.emergency_pin", "must differ from admin_pin")
	}
	if c.Security.EmergencyLockoutMinutes < 1 || c.Security.EmergencyLockoutMinutes > 60 {
		add("security.emergency_lockout_minutes", "must be 1-60, got %d", c.Security.EmergencyLockoutMinutes)
	}
	if c.Security.AttemptRatePerSec <= 0 {
		add("security.attempt_rate_per_sec", "must be positive")
	}
	if c.Security.AttemptBurst < 1 {
		add("security.attempt_burst", "must be at least 1")
	}
	seen := make(map[string]bool)
	for i, u := range c.Security.Users {
		field := fmt.Sprintf("security.users[%d]", i)
		if u.Name == "" {
			add(field+".name", "must be set")
		}
		if seen[u.Name] {
			add(field+".name", "duplicate user %q", u.Name)
		}
		seen[u.Name] = true
		if !session.Role(u.Role).Valid() {
			add(field+".role", "unknown role %q", u.Role)
		}
		if !c.validPIN(u.PIN) {
			add(field+".pin", "must be exactly %d digits", c.Security.PINLength)
		}
	}

	// ==========================================================================
	// Session and timing
	// ==========================================================================

	if c.Session.TimeoutMinutes < 1 || c.Session.TimeoutMinutes > 240 {
		add("session.timeout_minutes", "must be 1-240, got %d", c.Session.TimeoutMinutes)
	}
	if c.Session.InactivityWarningMinutes < 0 || c.Session.InactivityWarningMinutes >= c.Session.TimeoutMinutes {
		add("session.inactivity_warning_minutes", "must be 0 or less than timeout_minutes, got %d", c.Session.InactivityWarningMinutes)
	}
	timings := []struct {
		field string
		v     float64
	}{
		{"timing.scan_seconds", c.Timing.ScanSeconds},
		{"timing.biometric_extra_seconds", c.Timing.BiometricExtraSeconds},
		{"timing.scan_settle_seconds", c.Timing.ScanSettleSeconds},
		{"timing.auto_dismiss_seconds", c.Timing.AutoDismissSeconds},
		{"timing.emergency_grant_return_seconds", c.Timing.EmergencyGrantReturnSeconds},
		{"timing.lockout_return_seconds", c.Timing.LockoutReturnSeconds},
		{"timing.cancel_return_seconds", c.Timing.CancelReturnSeconds},
	}
	for _, tm := range timings {
		if tm.v < 0 || tm.v > 600 {
			add(tm.field, "must be 0-600 seconds, got %g", tm.v)
		}
	}
	if c.Timing.TickIntervalMS < 50 || c.Timing.TickIntervalMS > 10000 {
		add("timing.tick_interval_ms", "must be 50-10000, got %d", c.Timing.TickIntervalMS)
	}

	// ==========================================================================
	// Input and navigation
	// ==========================================================================

	if c.Input.ActivityCodeMin < 1 {
		add("input.activity_code_min", "must be at least 1, got %d", c.Input.ActivityCodeMin)
	}
	if c.Input.ActivityCodeMax < c.Input.ActivityCodeMin || c.Input.ActivityCodeMax > 16 {
		add("input.activity_code_max", "must be between activity_code_min and 16, got %d", c.Input.ActivityCodeMax)
	}
	if c.Navigation.HistoryLimit < 1 || c.Navigation.HistoryLimit > 1000 {
		add("navigation.history_limit", "must be 1-1000, got %d", c.Navigation.HistoryLimit)
	}
	switch c.Navigation.UnlistedPolicy {
	case "open", "closed":
	default:
		add("navigation.unlisted_policy", "must be open or closed, got %q", c.Navigation.UnlistedPolicy)
	}

	// ==========================================================================
	// Cabinet
	// ==========================================================================

	if _, err := c.BuildCabinet(); err != nil {
		add("cabinet", "%v", err)
	}

	// ==========================================================================
	// Logging, journal, UI
	// ==========================================================================

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		add("logging.format", "must be console or json, got %q", c.Logging.Format)
	}
	if c.Journal.MaxEntries < 1 || c.Journal.MaxEntries > 100000 {
		add("journal.max_entries", "must be 1-100000, got %d", c.Journal.MaxEntries)
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "must be auto, dark or light, got %q", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validPIN(pin string) bool {
	if len(pin) != c.Security.PINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
