// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by Resolve.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Resolve turns a configured mode into "dark" or "light". Auto asks the
// terminal for its background.
func Resolve(mode string) string {
	switch mode {
	case ModeDark, ModeLight:
		return mode
	}
	if termenv.HasDarkBackground() {
		return ModeDark
	}
	return ModeLight
}

// Theme holds the styles for one color mode.
type Theme struct {
	Mode         string
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderSite  lipgloss.Style
	Clock       lipgloss.Style

	// ==========================================================================
	// SCREEN BODY
	// ==========================================================================

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Line       lipgloss.Style
	Alert      lipgloss.Style
	EntryBox   lipgloss.Style
	EntryLabel lipgloss.Style
	Busy       lipgloss.Style

	// ==========================================================================
	// ACTIONS AND STATUS BAR
	// ==========================================================================

	ActionKey   lipgloss.Style
	ActionLabel lipgloss.Style
	StatusBar   lipgloss.Style
	StatusUser  lipgloss.Style
	StatusIdle  lipgloss.Style

	// ==========================================================================
	// NOTICES
	// ==========================================================================

	NoticeInfo    lipgloss.Style
	NoticeSuccess lipgloss.Style
	NoticeWarning lipgloss.Style
	NoticeError   lipgloss.Style
}

// NewTheme builds the styles for mode and switches lipgloss's adaptive
// colors to match. An unknown mode is resolved from the terminal.
func NewTheme(mode string) *Theme {
	mode = Resolve(mode)
	lipgloss.SetHasDarkBackground(mode == ModeDark)

	t := &Theme{Mode: mode, ColorProfile: termenv.ColorProfile()}
	t.initStyles()
	return t
}

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 2)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderSite = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Clock = lipgloss.NewStyle().Foreground(TextMuted)

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Purple).MarginTop(1)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).MarginBottom(1)
	t.Line = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Alert = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.EntryBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 3).
		MarginTop(1)
	t.EntryLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Busy = lipgloss.NewStyle().Foreground(Cyan)

	t.ActionKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ActionLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusUser = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.StatusIdle = lipgloss.NewStyle().Foreground(TextMuted)

	notice := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)
	t.NoticeInfo = notice.BorderForeground(Cyan)
	t.NoticeSuccess = notice.BorderForeground(Emerald)
	t.NoticeWarning = notice.BorderForeground(Amber)
	t.NoticeError = notice.BorderForeground(Rose)
}
