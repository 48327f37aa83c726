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

// ActivityPhase is the step within the activity screen.
type ActivityPhase int

const (
	// PhaseCode collects the activity code.
	PhaseCode ActivityPhase = iota
	// PhaseCabinet has the cabinet open; slot digits toggle keys.
	PhaseCabinet
)

// ActivityCodeScreen collects the activity code, then lets the user take
// and return keys until they finish the session.
type ActivityCodeScreen struct {
	Base
	pad   *Keypad
	phase ActivityPhase
}

// NewActivityCodeScreen returns the activity_code screen.
func NewActivityCodeScreen(d *Deps) *ActivityCodeScreen {
	_, maxLen := d.state().ActivityCodeBounds()
	return &ActivityCodeScreen{
		Base: newBase(navigation.ScreenActivityCode, d),
		pad:  NewKeypad(maxLen, false),
	}
}

// Phase returns the current step.
func (s *ActivityCodeScreen) Phase() ActivityPhase { return s.phase }

// OnEnter starts at code entry.
func (s *ActivityCodeScreen) OnEnter() error {
	_, maxLen := s.deps.state().ActivityCodeBounds()
	s.pad.SetMax(maxLen)
	s.pad.Clear()
	s.phase = PhaseCode
	return s.Base.OnEnter()
}

// Cleanup clears the code buffer.
func (s *ActivityCodeScreen) Cleanup() {
	s.pad.Clear()
	s.Base.Cleanup()
}

// Handle implements Screen.
func (s *ActivityCodeScreen) Handle(in Input) {
	if s.phase == PhaseCabinet {
		s.handleCabinet(in)
		return
	}

	switch in {
	case InputClear:
		s.pad.Clear()
		s.logUserAction("activity_code_cleared", nil)
	case InputEnter:
		s.submitCode()
	case InputBack, InputCancel:
		s.cancel()
	default:
		if s.pad.Press(in) {
			s.logUserAction("activity_code_digit_entered", map[string]string{
				"code_length": strconv.Itoa(s.pad.Len()),
				"max_length":  strconv.Itoa(s.pad.Max()),
			})
		}
	}
}

func (s *ActivityCodeScreen) submitCode() {
	if s.pad.Len() == 0 {
		s.notify(NoticeWarning, "Missing Activity Code",
			"Please enter an activity code before proceeding.", 2*time.Second)
		return
	}
	code := s.pad.Value()
	if err := s.deps.state().SetActivityCode(code); err != nil {
		minLen, maxLen := s.deps.state().ActivityCodeBounds()
		body := fmt.Sprintf("Activity code must be %d to %d digits.", minLen, maxLen)
		if errors.Is(err, session.ErrNoSession) {
			body = "No session is open. Please sign in again."
		}
		s.notify(NoticeError, "Invalid Activity Code", body, 3*time.Second)
		return
	}

	s.logUserAction("activity_code_accepted", map[string]string{"code_length": strconv.Itoa(len(code))})
	s.pad.Clear()
	s.phase = PhaseCabinet
	s.notify(NoticeSuccess, "Activity Code Accepted", "Cabinet unlocked. Select a slot to take or return a key.", 2*time.Second)
}

// cancel abandons the session before a code was committed and returns to
// PIN entry. The claim is kept so the user only re-enters their PIN.
func (s *ActivityCodeScreen) cancel() {
	s.logUserAction("activity_code_back_pressed", nil)
	summary, err := s.deps.Manager.CancelActivitySession()
	if !s.navResult(navigation.ScreenPINEntry, err) || summary.SessionID == "" {
		return
	}
	s.deps.Flow.Claim(summary.User, summary.Method)
	s.audit(security.AuditEvent{
		EventType: security.EventSessionEnd,
		SessionID: summary.SessionID,
		User:      summary.User,
		Success:   true,
		Metadata: map[string]string{
			"reason":   "cancelled",
			"duration": summary.Duration.Round(time.Second).String(),
		},
	})
}

func (s *ActivityCodeScreen) handleCabinet(in Input) {
	switch in {
	case InputEnter:
		s.finish()
	case InputBack:
		s.phase = PhaseCode
	default:
		d, ok := in.Digit()
		if !ok {
			return
		}
		s.toggleSlot(int(d - '0'))
	}
}

func (s *ActivityCodeScreen) toggleSlot(slot int) {
	st := s.deps.state()
	status, ok := st.KeyStatusFor(slot)
	if !ok {
		s.notify(NoticeWarning, "Slot Unavailable",
			fmt.Sprintf("Slot %d is not assigned to you.", slot), 2*time.Second)
		return
	}

	var name string
	for _, k := range st.AccessibleKeys() {
		if k.Slot == slot {
			name = k.Name
		}
	}
	md := map[string]string{"slot": strconv.Itoa(slot), "key": name}

	switch status {
	case session.KeyAvailable:
		if st.RemoveKey(slot) {
			s.audit(security.AuditEvent{EventType: security.EventKeyRemoved, Success: true, Metadata: md})
			s.notify(NoticeInfo, "Key Removed", fmt.Sprintf("%s (slot %d) taken.", name, slot), 2*time.Second)
		}
	case session.KeyRemoved:
		if st.ReturnKey(slot) {
			s.audit(security.AuditEvent{EventType: security.EventKeyReturned, Success: true, Metadata: md})
			s.notify(NoticeInfo, "Key Returned", fmt.Sprintf("%s (slot %d) returned.", name, slot), 2*time.Second)
		}
	}
}

func (s *ActivityCodeScreen) finish() {
	summary, err := s.deps.Manager.CompleteActivitySession()
	if err != nil && summary.SessionID == "" {
		s.log.Warn().Err(err).Msg("finish without session")
		return
	}

	outstanding := summary.Outstanding()
	s.audit(security.AuditEvent{
		EventType: security.EventSessionEnd,
		SessionID: summary.SessionID,
		User:      summary.User,
		Success:   true,
		Metadata: map[string]string{
			"reason":        "completed",
			"activity_code": summary.ActivityCode,
			"keys_removed":  strconv.Itoa(summary.KeysRemoved),
			"keys_returned": strconv.Itoa(summary.KeysReturned),
			"outstanding":   strconv.Itoa(len(outstanding)),
			"duration":      summary.Duration.Round(time.Second).String(),
		},
	})

	body := fmt.Sprintf("Thank you, %s. %d taken, %d returned.", summary.User, summary.KeysRemoved, summary.KeysReturned)
	kind := NoticeSuccess
	if len(outstanding) > 0 {
		body += fmt.Sprintf(" %d key(s) still out.", len(outstanding))
		kind = NoticeWarning
	}
	s.notify(kind, "Session Complete", body, 0)
}

// View implements Screen.
func (s *ActivityCodeScreen) View() View {
	st := s.deps.state().Status()
	if s.phase == PhaseCode {
		minLen, maxLen := s.deps.state().ActivityCodeBounds()
		return View{
			Title:      "Activity Code",
			Subtitle:   fmt.Sprintf("Enter a %d-%d digit activity code", minLen, maxLen),
			Lines:      []string{"User: " + st.User},
			Entry:      s.pad.Display(),
			EntryLabel: "Code",
			Progress:   -1,
			Actions:    keypadActions(Action{Input: InputBack, Label: "Back"}),
		}
	}

	lines := make([]string, 0, len(st.Keys))
	for _, k := range st.Keys {
		mark := "IN "
		if k.Status == session.KeyRemoved {
			mark = "OUT"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s  %s", k.Slot, mark, k.Name))
	}
	return View{
		Title:    "Key Cabinet",
		Subtitle: fmt.Sprintf("%s · activity %s", st.User, st.ActivityCode),
		Lines:    lines,
		Progress: -1,
		Actions: []Action{
			{Input: "1", Label: "Slot digit: take/return"},
			{Input: InputEnter, Label: "Finish"},
			{Input: InputBack, Label: "Edit code"},
		},
	}
}
