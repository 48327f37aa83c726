// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/keycabinet/internal/kiosk"
	"github.com/jeranaias/keycabinet/internal/screens"
	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// =============================================================================
// NOTICE RENDERING
// =============================================================================

// RenderNotice renders a single notice box no wider than width.
func RenderNotice(n kiosk.PostedNotice, now time.Time, width int) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 30 {
		maxWidth = 30
	}

	var color lipgloss.AdaptiveColor
	var icon string
	switch n.Kind {
	case screens.NoticeError:
		color, icon = styles.Rose, styles.StatusIndicators.Error
	case screens.NoticeWarning:
		color, icon = styles.Amber, styles.StatusIndicators.Warning
	case screens.NoticeSuccess:
		color, icon = styles.Emerald, styles.StatusIndicators.Success
	default:
		color, icon = styles.Cyan, styles.StatusIndicators.Info
	}

	inner := maxWidth - 6
	title := lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(Truncate(icon+" "+n.Title, inner))

	lines := []string{title}
	if n.Body != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(styles.TextPrimary).
			Render(wrapText(n.Body, inner)))
	}
	if left := n.ExpiresAt().Sub(now); left > 0 {
		secs := int(left.Round(time.Second).Seconds())
		lines = append(lines, lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true).
			Render("[n] dismiss  "+strconv.Itoa(secs)+"s"))
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(strings.Join(lines, "\n"))
}

// RenderNoticeStack renders notices newest first, right aligned.
func RenderNoticeStack(notices []kiosk.PostedNotice, now time.Time, width int) string {
	if len(notices) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(notices))
	for _, n := range notices {
		rendered = append(rendered, RenderNotice(n, now, width))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

// Truncate shortens s to at most width display cells, ending in "...".
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// wrapText word-wraps by display width.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0
	for _, w := range words {
		ww := runewidth.StringWidth(w)
		switch {
		case curWidth == 0:
			cur.WriteString(w)
			curWidth = ww
		case curWidth+1+ww <= width:
			cur.WriteByte(' ')
			cur.WriteString(w)
			curWidth += 1 + ww
		default:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(w)
			curWidth = ww
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return strings.Join(lines, "\n")
}
