// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"fmt"

	"github.com/jeranaias/keycabinet/internal/navigation"
)

// IdleScreen is the home screen and the universal safe destination.
type IdleScreen struct {
	Base
}

// NewIdleScreen returns the main_idle screen.
func NewIdleScreen(d *Deps) *IdleScreen {
	return &IdleScreen{Base: newBase(navigation.ScreenMainIdle, d)}
}

// OnEnter drops any half-finished authentication claim.
func (s *IdleScreen) OnEnter() error {
	s.deps.Flow.Clear()
	return s.Base.OnEnter()
}

// Handle implements Screen.
func (s *IdleScreen) Handle(in Input) {
	switch in {
	case InputStart:
		s.logUserAction("start_pressed", nil)
		s.navResult(navigation.ScreenAuthSelection, s.deps.Manager.StartAuthenticationFlow())
	case InputEmergency:
		s.logUserAction("emergency_pressed", nil)
		s.navResult(navigation.ScreenEmergencyAccess, s.deps.Manager.HandleEmergencyAccess())
	case InputConfig:
		s.logUserAction("configuration_pressed", nil)
		s.navResult(navigation.ScreenConfiguration, s.deps.Manager.HandleConfigurationAccess())
	case InputTheme:
		theme := s.deps.Prefs.ToggleTheme()
		s.logUserAction("theme_toggled", map[string]string{"theme": theme})
		s.notify(NoticeInfo, "Theme Changed", fmt.Sprintf("Switched to %s theme.", theme), 0)
	}
}

// View implements Screen.
func (s *IdleScreen) View() View {
	cfg := s.deps.cfg()
	now := s.deps.now()

	lines := []string{
		now.Format("Monday, January 2, 2006"),
		now.Format("15:04:05"),
		"",
	}
	if st := s.deps.state().Status(); st.Active {
		lines = append(lines, fmt.Sprintf("Session open: %s", st.User))
	} else {
		lines = append(lines, "System ready")
	}

	return View{
		Title:    cfg.Kiosk.AppName,
		Subtitle: cfg.Kiosk.SiteName,
		Lines:    lines,
		Progress: -1,
		Actions: []Action{
			{Input: InputStart, Label: "Start"},
			{Input: InputEmergency, Label: "Emergency access"},
			{Input: InputConfig, Label: "Configuration"},
			{Input: InputTheme, Label: "Toggle theme"},
		},
	}
}
