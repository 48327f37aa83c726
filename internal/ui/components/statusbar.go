// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/keycabinet/internal/session"
	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// =============================================================================
// HEADER
// =============================================================================

// Header is the title bar: app name, site and clock.
type Header struct {
	App   string
	Site  string
	Clock string
	Width int
	theme *styles.Theme
}

// NewHeader returns a header drawn with theme.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{App: "Key Cabinet", Width: 80, theme: theme}
}

// SetTheme swaps the theme after a toggle.
func (h *Header) SetTheme(theme *styles.Theme) { h.theme = theme }

// View renders the header.
func (h *Header) View() string {
	left := h.theme.HeaderTitle.Render(h.App)
	if h.Site != "" {
		left += "  " + h.theme.HeaderSite.Render(h.Site)
	}
	right := h.theme.Clock.Render(h.Clock)
	return h.theme.Header.Width(max(h.Width-2, 20)).Render(spread(left, right, h.Width-8))
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar shows the screen, the session owner and the time left.
type StatusBar struct {
	Screen    string
	Status    session.Status
	Shortcuts string
	Width     int
	theme     *styles.Theme
}

// NewStatusBar returns a status bar drawn with theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// SetTheme swaps the theme after a toggle.
func (s *StatusBar) SetTheme(theme *styles.Theme) { s.theme = theme }

// View renders the status bar, dropping detail on narrow terminals.
func (s *StatusBar) View() string {
	var parts []string
	parts = append(parts, s.Screen)
	if s.Status.Active {
		parts = append(parts,
			s.theme.StatusUser.Render(s.Status.User)+" ("+string(s.Status.Role)+")",
			"left "+FormatCountdown(s.Status.Remaining))
		if s.Status.KeysRemoved > 0 {
			parts = append(parts, styles.StatusIndicators.Active+" keys out")
		}
	} else {
		parts = append(parts, s.theme.StatusIdle.Render("no session"))
	}
	left := strings.Join(parts, " | ")

	if s.Width < 60 || s.Shortcuts == "" {
		return s.theme.StatusBar.Width(max(s.Width, 20)).Render(left)
	}
	return s.theme.StatusBar.Width(s.Width).Render(spread(left, s.Shortcuts, s.Width-2))
}

// spread places left and right at either end of width cells.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

// PadRight pads s with spaces to width display cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
