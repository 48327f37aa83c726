// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/session"
)

// MethodInfo describes an authentication method offered on the selection
// screen.
type MethodInfo struct {
	Method      session.AuthMethod
	Title       string
	Description string
	Screen      string
}

// Methods lists the supported authentication methods in display order.
func Methods() []MethodInfo {
	return []MethodInfo{
		{
			Method:      session.MethodCard,
			Title:       "Card Access",
			Description: "Present your access card to the reader",
			Screen:      navigation.ScreenCardScan,
		},
		{
			Method:      session.MethodBiometric,
			Title:       "Biometric Access",
			Description: "Place your finger on the scanner",
			Screen:      navigation.ScreenBiometricScan,
		},
	}
}

// AuthSelectionScreen lets the user pick card or biometric.
type AuthSelectionScreen struct {
	Base
}

// NewAuthSelectionScreen returns the auth_selection screen.
func NewAuthSelectionScreen(d *Deps) *AuthSelectionScreen {
	return &AuthSelectionScreen{Base: newBase(navigation.ScreenAuthSelection, d)}
}

// Handle implements Screen.
func (s *AuthSelectionScreen) Handle(in Input) {
	switch in {
	case InputCard, InputBiometric:
		m := Methods()[0]
		if in == InputBiometric {
			m = Methods()[1]
		}
		s.logUserAction("auth_method_selected", map[string]string{"method": string(m.Method)})
		if s.navigate(m.Screen, navigation.DirectionLeft) {
			s.notify(NoticeInfo, m.Title+" Selected", m.Description+".", 0)
		}
	case InputBack, InputCancel:
		s.logUserAction("auth_selection_back_pressed", nil)
		s.goHome()
	}
}

// View implements Screen.
func (s *AuthSelectionScreen) View() View {
	var lines []string
	for _, m := range Methods() {
		lines = append(lines, m.Title+": "+m.Description)
	}
	return View{
		Title:    "Select Authentication Method",
		Subtitle: "Choose how you would like to identify yourself",
		Lines:    lines,
		Progress: -1,
		Actions: []Action{
			{Input: InputCard, Label: "Card"},
			{Input: InputBiometric, Label: "Biometric"},
			{Input: InputBack, Label: "Back"},
		},
	}
}
