// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// TIMEOUT CHECKING
// =============================================================================

// CheckResult is the outcome of a single timeout poll.
type CheckResult struct {
	// Warn is set once per session when the warning threshold is crossed.
	Warn bool
	// Expired is set on every poll after the timeout elapsed.
	Expired bool
	// Remaining is the time left before expiry.
	Remaining time.Duration
}

// Check polls the open session. It is a no-op without a session.
func (s *State) Check() CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return CheckResult{}
	}

	elapsed := s.now().Sub(s.loginTime)
	res := CheckResult{Remaining: s.timeout - elapsed}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if elapsed > s.timeout {
		res.Expired = true
		return res
	}
	if s.warningAfter > 0 && !s.warned && elapsed >= s.warningAfter {
		s.warned = true
		res.Warn = true
	}
	return res
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// DefaultTickInterval is the polling interval for timeout and lockout checks.
const DefaultTickInterval = time.Second

// TickMsg is sent on every poll interval.
type TickMsg struct {
	Time time.Time
}

// TickCmd schedules the next poll.
func TickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// FormatDuration returns a compact human-readable duration.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return strconv.Itoa(mins) + "m"
	}
	return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
}
