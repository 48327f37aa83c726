// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/keycabinet/internal/screens"
	"github.com/jeranaias/keycabinet/internal/session"
	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)
	dimStyle    = lipgloss.NewStyle().Foreground(styles.TextMuted)
	promptStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
)

func (c *Console) style(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

func (c *Console) prompt() string {
	// liner measures the prompt itself, so it stays unstyled.
	return c.app.CurrentScreen() + "> "
}

func (c *Console) errorText(msg string) string {
	if c.color {
		return styles.RenderError(msg)
	}
	return styles.StatusIndicators.Error + " " + msg
}

// render prints the current screen and any notices.
func (c *Console) render() {
	v := c.app.View()
	var b strings.Builder

	title := v.Title
	if v.Alert {
		title = styles.StatusIndicators.Warning + " " + title
	}
	b.WriteString(c.style(titleStyle, title))
	b.WriteByte('\n')
	if v.Subtitle != "" {
		b.WriteString(c.style(dimStyle, v.Subtitle))
		b.WriteByte('\n')
	}
	for _, line := range v.Lines {
		b.WriteString("  " + line + "\n")
	}
	if v.EntryLabel != "" || v.Entry != "" {
		fmt.Fprintf(&b, "  %s %s\n", v.EntryLabel, v.Entry)
	}
	if v.Progress >= 0 {
		fmt.Fprintf(&b, "  progress %d%%\n", int(v.Progress*100))
	}
	if len(v.Actions) > 0 {
		parts := make([]string, 0, len(v.Actions))
		for _, a := range v.Actions {
			parts = append(parts, string(a.Input)+"="+a.Label)
		}
		b.WriteString(c.style(dimStyle, "  "+strings.Join(parts, "  ")))
		b.WriteByte('\n')
	}
	for _, n := range c.app.Notices() {
		b.WriteString(c.renderNotice(n.Notice))
		b.WriteByte('\n')
	}
	fmt.Fprint(c.out, b.String())
}

func (c *Console) renderNotice(n screens.Notice) string {
	text := n.Title
	if n.Body != "" {
		text += ": " + n.Body
	}
	if !c.color {
		marker := styles.StatusIndicators.Info
		switch n.Kind {
		case screens.NoticeSuccess:
			marker = styles.StatusIndicators.Success
		case screens.NoticeWarning:
			marker = styles.StatusIndicators.Warning
		case screens.NoticeError:
			marker = styles.StatusIndicators.Error
		}
		return marker + " " + text
	}
	switch n.Kind {
	case screens.NoticeSuccess:
		return styles.RenderSuccess(text)
	case screens.NoticeWarning:
		return styles.RenderWarning(text)
	case screens.NoticeError:
		return styles.RenderError(text)
	default:
		return styles.RenderInfo(text)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, c.style(titleStyle, "Inputs"))
	fmt.Fprintln(c.out, "  start card biometric scan emergency config theme")
	fmt.Fprintln(c.out, "  back cancel clear enter, digits 0-9 (runs like 12345 are split)")
	fmt.Fprintln(c.out, c.style(titleStyle, "Commands"))
	fmt.Fprintln(c.out, "  /wait [dur]    let time pass, e.g. /wait 5s")
	fmt.Fprintln(c.out, "  /status        session details")
	fmt.Fprintln(c.out, "  /history       recent navigation")
	fmt.Fprintln(c.out, "  /journal [n] [json]  recent audit events")
	fmt.Fprintln(c.out, "  /verify        check the audit journal seals")
	fmt.Fprintln(c.out, "  /dismiss       dismiss the newest notice")
	fmt.Fprintln(c.out, "  /quit          leave the console")
}

func (c *Console) printStatus() {
	st := c.app.Status()
	if !st.Active {
		fmt.Fprintln(c.out, "no session")
		return
	}
	fmt.Fprintf(c.out, "session   %s\n", st.SessionID)
	fmt.Fprintf(c.out, "user      %s (%s) via %s\n", st.User, st.Role, st.Method)
	fmt.Fprintf(c.out, "elapsed   %s, %s left\n", session.FormatDuration(st.Duration), session.FormatDuration(st.Remaining))
	if st.ActivityCode != "" {
		fmt.Fprintf(c.out, "activity  %s\n", st.ActivityCode)
	}
	fmt.Fprintf(c.out, "keys      %d removed, %d returned\n", st.KeysRemoved, st.KeysReturned)
}

func (c *Console) printHistory() {
	h := c.app.Manager().History()
	if len(h) == 0 {
		fmt.Fprintln(c.out, "no navigation yet")
		return
	}
	for _, ev := range h {
		fmt.Fprintf(c.out, "%s  %-16s -> %-16s %s\n", ev.Time.Format("15:04:05"), ev.From, ev.To, ev.Direction)
	}
}

func (c *Console) printJournal(args []string) error {
	j := c.app.Journal()
	if j == nil {
		return errors.New("journal disabled")
	}
	limit := 10
	asJSON := false
	for _, arg := range args {
		if arg == "json" {
			asJSON = true
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", arg)
		}
		limit = n
	}
	events, err := j.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	for i := len(events) - 1; i >= 0; i-- {
		line := events[i].ToLogLine()
		if asJSON {
			if line, err = events[i].ToJSON(); err != nil {
				return err
			}
		}
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func (c *Console) verifyJournal() error {
	j := c.app.Journal()
	if j == nil {
		return errors.New("journal disabled")
	}
	n, err := j.Verify(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %d events verified (key %s)\n", styles.StatusIndicators.Success, n, j.Fingerprint())
	return nil
}
