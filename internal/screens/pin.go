// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/session"
)

// PINEntryScreen verifies the PIN for the claimed identity. The PIN is
// only checked on enter, never per keystroke.
type PINEntryScreen struct {
	Base
	pad *Keypad
}

// NewPINEntryScreen returns the pin_entry screen.
func NewPINEntryScreen(d *Deps) *PINEntryScreen {
	return &PINEntryScreen{
		Base: newBase(navigation.ScreenPINEntry, d),
		pad:  NewKeypad(d.cfg().Security.PINLength, true),
	}
}

// OnEnter clears the keypad.
func (s *PINEntryScreen) OnEnter() error {
	s.pad.SetMax(s.deps.cfg().Security.PINLength)
	s.pad.Clear()
	return s.Base.OnEnter()
}

// OnExit wipes the keypad.
func (s *PINEntryScreen) OnExit() error {
	s.pad.Clear()
	return s.Base.OnExit()
}

// Cleanup wipes the keypad.
func (s *PINEntryScreen) Cleanup() {
	s.pad.Clear()
	s.Base.Cleanup()
}

// Handle implements Screen.
func (s *PINEntryScreen) Handle(in Input) {
	switch in {
	case InputClear:
		s.pad.Clear()
		s.logUserAction("pin_entry_cleared", nil)
	case InputEnter:
		if !s.pad.Full() {
			s.notify(NoticeWarning, "Incomplete PIN",
				fmt.Sprintf("Please enter all %d digits.", s.pad.Max()), 2*time.Second)
			return
		}
		s.submit()
	case InputBack, InputCancel:
		s.logUserAction("pin_entry_back_pressed", nil)
		s.navigate(s.backTarget(), navigation.DirectionRight)
	default:
		if s.pad.Press(in) {
			s.logUserAction("pin_digit_entered", map[string]string{
				"digits_entered": strconv.Itoa(s.pad.Len()),
				"max_length":     strconv.Itoa(s.pad.Max()),
			})
		}
	}
}

// backTarget is the scan screen for the claimed method.
func (s *PINEntryScreen) backTarget() string {
	if _, method, _ := s.deps.Flow.Claimed(); method == session.MethodBiometric {
		return navigation.ScreenBiometricScan
	}
	return navigation.ScreenCardScan
}

func (s *PINEntryScreen) submit() {
	user, method, _ := s.deps.Flow.Claimed()
	pin := s.pad.Value()
	s.pad.Clear()

	id, err := s.deps.Verifier.Verify(user, pin)
	switch {
	case err == nil:
		s.onVerified(id, method)
	case errors.Is(err, security.ErrThrottled):
		s.audit(security.AuditEvent{
			EventType: security.EventAuthFailure,
			Severity:  security.SeverityWarning,
			User:      user,
			Error:     err.Error(),
			Metadata:  map[string]string{"method": string(method), "reason": "throttled"},
		})
		s.notify(NoticeWarning, "Please Wait", "Too many attempts. Try again in a moment.", 0)
	default:
		s.onRejected(user, method, err)
	}
}

func (s *PINEntryScreen) onVerified(id session.Identity, method session.AuthMethod) {
	s.logUserAction("pin_validation_success", nil)
	if err := s.deps.Manager.HandleAuthenticationSuccess(id, method); err != nil {
		s.log.Error().Err(err).Str("user", id.User).Msg("could not open session")
		s.audit(security.AuditEvent{
			EventType: security.EventAuthSuccess,
			Severity:  security.SeverityWarning,
			User:      id.User,
			Error:     err.Error(),
			Metadata:  map[string]string{"method": string(method), "outcome": "session_not_opened"},
		})
		s.notify(NoticeError, "Session Error", "Could not start a session. Please contact an administrator.", 0)
		return
	}

	st := s.deps.state()
	s.audit(security.AuditEvent{
		EventType: security.EventAuthSuccess,
		Success:   true,
		Metadata:  map[string]string{"method": string(method), "role": string(id.Role)},
	})
	s.audit(security.AuditEvent{
		EventType: security.EventSessionStart,
		Success:   true,
		Metadata: map[string]string{
			"method": string(method),
			"role":   string(id.Role),
			"keys":   strconv.Itoa(len(st.AccessibleKeys())),
		},
	})
	s.deps.Flow.Clear()
	s.notify(NoticeSuccess, "Authentication Successful",
		"PIN accepted. Proceeding to activity code entry...", 2*time.Second)
}

func (s *PINEntryScreen) onRejected(user string, method session.AuthMethod, cause error) {
	res, navErr := s.deps.Manager.HandleAuthenticationFailure()
	s.audit(security.AuditEvent{
		EventType: security.EventAuthFailure,
		User:      user,
		Error:     cause.Error(),
		Metadata: map[string]string{
			"method":         string(method),
			"attempt_number": strconv.Itoa(res.Attempts),
		},
	})
	if !res.Exhausted {
		s.notify(NoticeError, "Authentication Error",
			fmt.Sprintf("Invalid PIN. %d attempts remaining.", res.Remaining), 3*time.Second)
		return
	}

	s.audit(security.AuditEvent{
		EventType: security.EventAuthLockout,
		Severity:  security.SeverityWarning,
		User:      user,
		Metadata:  map[string]string{"method": string(method), "attempts": strconv.Itoa(res.Attempts)},
	})
	if navErr != nil {
		s.log.Error().Err(navErr).Msg("could not leave pin entry after exhausted attempts")
	}
	s.notify(NoticeError, "Access Denied",
		"Too many failed attempts. Returning to authentication selection.", 3*time.Second)
}

// View implements Screen.
func (s *PINEntryScreen) View() View {
	user, _, ok := s.deps.Flow.Claimed()
	if !ok {
		user = "unknown"
	}
	failed := s.deps.state().FailedAttempts()
	lines := []string{"User: " + user}
	if failed > 0 {
		lines = append(lines, fmt.Sprintf("%d of %d attempts used", failed, s.deps.Manager.MaxAttempts()))
	}
	return View{
		Title:      "Enter PIN",
		Subtitle:   fmt.Sprintf("Enter your %d-digit PIN", s.pad.Max()),
		Lines:      lines,
		Entry:      s.pad.Display(),
		EntryLabel: "PIN",
		Progress:   -1,
		Actions:    keypadActions(Action{Input: InputBack, Label: "Back"}),
	}
}
