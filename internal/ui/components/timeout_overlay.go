// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// =============================================================================
// SESSION TIMEOUT OVERLAY
// =============================================================================

// TimeoutOverlay warns that the open session is about to expire. It is
// shown once the session passes its warning threshold and hidden by any
// key or when the session closes.
type TimeoutOverlay struct {
	visible   bool
	remaining time.Duration

	width  int
	height int
}

// NewTimeoutOverlay returns a hidden overlay.
func NewTimeoutOverlay() TimeoutOverlay {
	return TimeoutOverlay{}
}

// SetSize sets the overlay dimensions.
func (o *TimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with remaining time left.
func (o *TimeoutOverlay) Show(remaining time.Duration) {
	o.visible = true
	o.remaining = remaining
}

// Hide hides the overlay.
func (o *TimeoutOverlay) Hide() {
	o.visible = false
}

// UpdateTime updates the countdown.
func (o *TimeoutOverlay) UpdateTime(remaining time.Duration) {
	o.remaining = remaining
}

// IsVisible reports whether the overlay is showing.
func (o TimeoutOverlay) IsVisible() bool {
	return o.visible
}

// TimeRemaining returns the last countdown value.
func (o TimeoutOverlay) TimeRemaining() time.Duration {
	return o.remaining
}

// View renders the overlay centered, or "" when hidden.
func (o TimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}

	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}
	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	title := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).
		Render(styles.StatusIndicators.Warning + " Session Timeout Warning")
	countdown := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).
		Render(FormatCountdown(o.remaining))
	msg := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 4).
		Align(lipgloss.Center).
		Render("Session will end in " + countdown)
	hint := lipgloss.NewStyle().Foreground(styles.TextSecondary).Italic(true).
		Render("Finish your activity and press Enter to close the cabinet")

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", msg, "", hint)
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim))
}

// FormatCountdown formats d as M:SS.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
