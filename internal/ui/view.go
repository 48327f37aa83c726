// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/keycabinet/internal/screens"
	"github.com/jeranaias/keycabinet/internal/ui/components"
	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// View renders the kiosk.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	cfg := m.app.Config()
	now := m.now()

	m.header.App = cfg.Kiosk.AppName
	m.header.Site = cfg.Kiosk.SiteName
	m.header.Clock = now.Format("15:04:05")
	m.header.Width = m.width

	m.status.Screen = m.app.CurrentScreen()
	m.status.Status = m.app.Status()
	m.status.Shortcuts = m.help.ShortHelpView(m.keys.ShortHelp())
	m.status.Width = m.width

	sections := []string{
		m.header.View(),
		m.renderBody(m.app.View()),
	}
	if notices := components.RenderNoticeStack(m.app.Notices(), now, m.width); notices != "" {
		sections = append(sections, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, notices))
	}
	sections = append(sections, m.status.View())
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}
	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderBody(v screens.View) string {
	th := m.theme
	width := max(m.width-4, 20)

	title := th.Title
	if v.Alert {
		title = th.Alert.MarginTop(1)
	}

	var b strings.Builder
	b.WriteString(title.Render(components.Truncate(v.Title, width)))
	b.WriteByte('\n')
	if v.Subtitle != "" {
		b.WriteString(th.Subtitle.Render(components.Truncate(v.Subtitle, width)))
		b.WriteByte('\n')
	}
	for _, line := range v.Lines {
		b.WriteString(th.Line.Render(components.Truncate(line, width)))
		b.WriteByte('\n')
	}
	if v.Entry != "" || v.EntryLabel != "" {
		entry := v.Entry
		if v.EntryLabel != "" {
			entry = th.EntryLabel.Render(v.EntryLabel) + "\n" + entry
		}
		b.WriteString(th.EntryBox.Render(entry))
		b.WriteByte('\n')
	}
	if v.Progress >= 0 {
		b.WriteString(m.scan.View(v.Progress))
		b.WriteByte('\n')
	}
	if v.Busy && m.spinner.IsActive() {
		b.WriteString(th.Busy.Render(m.spinner.View()))
		b.WriteByte('\n')
	}
	if v.Alert {
		b.WriteString(styles.RenderWarning("Security event: all activity is recorded"))
		b.WriteByte('\n')
	}
	if len(v.Actions) > 0 {
		b.WriteByte('\n')
		b.WriteString(m.renderActions(v.Actions))
	}
	return b.String()
}

func (m Model) renderActions(actions []screens.Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts,
			m.theme.ActionKey.Render("["+m.keys.Label(a.Input)+"]")+" "+m.theme.ActionLabel.Render(a.Label))
	}
	return strings.Join(parts, "  ")
}
