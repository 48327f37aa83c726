// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/keycabinet/internal/screens"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap binds terminal keys to kiosk inputs. Digits are handled directly.
type KeyMap struct {
	Start     key.Binding
	Card      key.Binding
	Biometric key.Binding
	Scan      key.Binding
	Emergency key.Binding
	Config    key.Binding
	Theme     key.Binding
	Enter     key.Binding
	Back      key.Binding
	Cancel    key.Binding
	Clear     key.Binding
	Dismiss   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the kiosk bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Card: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "card"),
		),
		Biometric: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "biometric"),
		),
		Scan: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "scan"),
		),
		Emergency: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "emergency"),
		),
		Config: key.NewBinding(
			key.WithKeys("a", "f2"),
			key.WithHelp("a", "admin"),
		),
		Theme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ok"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cancel"),
		),
		Clear: key.NewBinding(
			key.WithKeys("backspace", "delete"),
			key.WithHelp("bksp", "clear"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "dismiss notice"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Back, k.Dismiss, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Card, k.Biometric, k.Scan},
		{k.Enter, k.Back, k.Cancel, k.Clear},
		{k.Emergency, k.Config, k.Theme},
		{k.Dismiss, k.Help, k.Quit},
	}
}

// =============================================================================
// KEY TRANSLATION
// =============================================================================

// Input translates a key press into a kiosk input.
func (k KeyMap) Input(msg tea.KeyMsg) (screens.Input, bool) {
	if s := msg.String(); len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return screens.Input(s), true
	}
	for _, b := range k.inputBindings() {
		if key.Matches(msg, b.binding) {
			return b.input, true
		}
	}
	return "", false
}

// Label returns the key shown for in on the action bar.
func (k KeyMap) Label(in screens.Input) string {
	if _, ok := in.Digit(); ok {
		return string(in)
	}
	for _, b := range k.inputBindings() {
		if b.input == in {
			return b.binding.Help().Key
		}
	}
	return string(in)
}

type inputBinding struct {
	binding key.Binding
	input   screens.Input
}

func (k KeyMap) inputBindings() []inputBinding {
	return []inputBinding{
		{k.Start, screens.InputStart},
		{k.Card, screens.InputCard},
		{k.Biometric, screens.InputBiometric},
		{k.Scan, screens.InputScan},
		{k.Emergency, screens.InputEmergency},
		{k.Config, screens.InputConfig},
		{k.Theme, screens.InputTheme},
		{k.Enter, screens.InputEnter},
		{k.Back, screens.InputBack},
		{k.Cancel, screens.InputCancel},
		{k.Clear, screens.InputClear},
	}
}
