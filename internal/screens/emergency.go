// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/session"
)

// LockoutEmergency is the lockout identifier for the emergency override.
const LockoutEmergency = "emergency_access"

// EmergencyPhase is the state of the emergency screen.
type EmergencyPhase int

const (
	EmergencyEntry EmergencyPhase = iota
	EmergencyGranted
	EmergencyLocked
	EmergencyCancelled
)

// EmergencyScreen is the audited override path. Every attempt is logged at
// critical severity; repeated failures lock the override and force the
// kiosk home.
type EmergencyScreen struct {
	Base
	pad     *Keypad
	matcher *security.PINMatcher
	phase   EmergencyPhase
}

// NewEmergencyScreen returns the emergency_access screen. The emergency
// PIN is fixed at construction.
func NewEmergencyScreen(d *Deps) (*EmergencyScreen, error) {
	cfg := d.cfg()
	m, err := security.NewPINMatcher(cfg.Security.EmergencyPIN)
	if err != nil {
		return nil, fmt.Errorf("emergency pin: %w", err)
	}
	return &EmergencyScreen{
		Base:    newBase(navigation.ScreenEmergencyAccess, d),
		pad:     NewKeypad(cfg.Security.PINLength, true),
		matcher: m,
	}, nil
}

// Phase returns the screen state.
func (s *EmergencyScreen) Phase() EmergencyPhase { return s.phase }

// OnEnter resets the keypad and warns when the override is locked.
func (s *EmergencyScreen) OnEnter() error {
	s.pad.Clear()
	s.phase = EmergencyEntry
	if err := s.Base.OnEnter(); err != nil {
		return err
	}
	s.logEmergency("screen_accessed", nil)
	if s.deps.Lockout.IsLocked(LockoutEmergency) {
		s.phase = EmergencyLocked
	}
	return nil
}

// OnExit wipes the keypad.
func (s *EmergencyScreen) OnExit() error {
	s.pad.Clear()
	s.logEmergency("screen_exited", nil)
	return s.Base.OnExit()
}

// Cleanup wipes the keypad.
func (s *EmergencyScreen) Cleanup() {
	s.pad.Clear()
	s.Base.Cleanup()
}

// Handle implements Screen.
func (s *EmergencyScreen) Handle(in Input) {
	if in == InputBack {
		s.logEmergency("back_pressed", nil)
		s.goHome()
		return
	}
	if s.phase == EmergencyLocked && in == InputEnter {
		s.goHome()
		return
	}
	if s.phase != EmergencyEntry {
		return
	}

	switch in {
	case InputClear:
		s.pad.Clear()
	case InputEnter:
		if !s.pad.Full() {
			s.notify(NoticeWarning, "Incomplete PIN",
				fmt.Sprintf("Please enter the %d-digit emergency PIN.", s.pad.Max()), 2*time.Second)
			return
		}
		s.attempt()
	case InputCancel:
		s.cancel()
	default:
		s.pad.Press(in)
	}
}

func (s *EmergencyScreen) attempt() {
	pin := s.pad.Value()
	s.pad.Clear()
	timing := s.deps.cfg().Timing

	if s.deps.Lockout.IsLocked(LockoutEmergency) {
		s.lockedOut(timing)
		return
	}

	s.logEmergency("unlock_attempt", map[string]string{
		"attempt_number": strconv.Itoa(s.attemptsUsed() + 1),
	})

	if s.matcher.Match(pin) {
		if err := s.deps.Lockout.RecordSuccess(LockoutEmergency); errors.Is(err, security.ErrLocked) {
			s.lockedOut(timing)
			return
		}
		s.grant(timing)
		return
	}

	rec, err := s.deps.Lockout.RecordFailure(LockoutEmergency)
	s.audit(security.AuditEvent{
		EventType: security.EventEmergencyAccess,
		Severity:  security.SeverityCritical,
		Error:     security.ErrInvalidCredential.Error(),
		Metadata:  map[string]string{"attempt_number": strconv.Itoa(rec.Count)},
	})
	if rec.Locked || errors.Is(err, security.ErrLocked) {
		s.lockout(rec, timing)
		return
	}

	remaining := s.deps.Lockout.Remaining(LockoutEmergency)
	s.notify(NoticeError, "Access Denied",
		fmt.Sprintf("Invalid emergency PIN. %d attempts remaining before lockout.", remaining), 3*time.Second)
}

func (s *EmergencyScreen) attemptsUsed() int {
	return s.deps.Lockout.MaxAttempts() - s.deps.Lockout.Remaining(LockoutEmergency)
}

func (s *EmergencyScreen) grant(timing config.TimingConfig) {
	s.phase = EmergencyGranted
	s.audit(security.AuditEvent{
		EventType: security.EventEmergencyAccess,
		Severity:  security.SeverityCritical,
		Success:   true,
		Metadata:  map[string]string{"access_level": "full_cabinet"},
	})
	s.log.Warn().Str("security_level", string(security.SeverityCritical)).Msg("emergency access granted")
	s.notify(NoticeSuccess, "Emergency Access Granted",
		"All cabinet slots unlocked. This access has been logged for review.", config.Seconds(timing.EmergencyGrantReturnSeconds))
	s.after(config.Seconds(timing.EmergencyGrantReturnSeconds), func() { s.goHome() })
}

func (s *EmergencyScreen) lockout(rec security.AttemptRecord, timing config.TimingConfig) {
	s.phase = EmergencyLocked
	s.audit(security.AuditEvent{
		EventType: security.EventEmergencyLockout,
		Severity:  security.SeverityCritical,
		Metadata: map[string]string{
			"failed_attempts": strconv.Itoa(rec.Count),
			"locked_until":    rec.LockedUntil.Format(time.RFC3339),
		},
	})
	s.log.Error().Str("security_level", string(security.SeverityCritical)).Msg("emergency access locked out")
	s.notify(NoticeError, "Security Lockout",
		"Too many failed emergency access attempts. Security has been notified.", config.Seconds(timing.LockoutReturnSeconds))
	s.after(config.Seconds(timing.LockoutReturnSeconds), func() { s.goHome() })
}

func (s *EmergencyScreen) lockedOut(timing config.TimingConfig) {
	s.phase = EmergencyLocked
	left := s.deps.Lockout.TimeRemaining(LockoutEmergency)
	s.logEmergency("attempt_while_locked", map[string]string{"time_remaining": left.Round(time.Second).String()})
	s.notify(NoticeError, "Emergency Access Locked",
		fmt.Sprintf("Try again in %s.", session.FormatDuration(left)), config.Seconds(timing.LockoutReturnSeconds))
	s.after(config.Seconds(timing.LockoutReturnSeconds), func() { s.goHome() })
}

func (s *EmergencyScreen) cancel() {
	s.phase = EmergencyCancelled
	s.logEmergency("cancelled", nil)
	timing := s.deps.cfg().Timing
	s.notify(NoticeInfo, "Emergency Access Cancelled", "Returning to main screen.", config.Seconds(timing.CancelReturnSeconds))
	s.after(config.Seconds(timing.CancelReturnSeconds), func() { s.goHome() })
}

// logEmergency records a screen action at warning severity; emergency
// activity is always reviewed.
func (s *EmergencyScreen) logEmergency(action string, details map[string]string) {
	md := map[string]string{"action": action}
	for k, v := range details {
		md[k] = v
	}
	s.audit(security.AuditEvent{
		EventType: security.EventUserAction,
		Severity:  security.SeverityWarning,
		Success:   true,
		Metadata:  md,
	})
}

// View implements Screen.
func (s *EmergencyScreen) View() View {
	v := View{
		Title:    "EMERGENCY ACCESS",
		Subtitle: "All emergency access attempts are subject to security review and audit.",
		Progress: -1,
		Alert:    true,
	}
	switch s.phase {
	case EmergencyEntry:
		v.Entry = s.pad.Display()
		v.EntryLabel = "Emergency PIN"
		v.Lines = []string{fmt.Sprintf("%d attempts remaining", s.deps.Lockout.Remaining(LockoutEmergency))}
		v.Actions = keypadActions(
			Action{Input: InputCancel, Label: "Cancel"},
			Action{Input: InputBack, Label: "Home"},
		)
	case EmergencyGranted:
		v.Lines = []string{"Access granted", "Returning to main screen..."}
		v.Busy = true
	case EmergencyLocked:
		v.Lines = []string{
			"Emergency access is locked",
			"Time remaining: " + session.FormatDuration(s.deps.Lockout.TimeRemaining(LockoutEmergency)),
		}
		v.Actions = []Action{{Input: InputBack, Label: "Home"}}
	case EmergencyCancelled:
		v.Lines = []string{"Cancelled", "Returning to main screen..."}
		v.Busy = true
	}
	return v
}
