// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Input is a discrete kiosk event: a keypad digit or a named button.
type Input string

// Named buttons.
const (
	InputStart     Input = "start"
	InputEmergency Input = "emergency"
	InputConfig    Input = "config"
	InputTheme     Input = "theme"
	InputCard      Input = "card"
	InputBiometric Input = "biometric"
	InputScan      Input = "scan"
	InputBack      Input = "back"
	InputCancel    Input = "cancel"
	InputClear     Input = "clear"
	InputEnter     Input = "enter"
)

var namedInputs = map[string]Input{
	"start":     InputStart,
	"emergency": InputEmergency,
	"config":    InputConfig,
	"theme":     InputTheme,
	"card":      InputCard,
	"biometric": InputBiometric,
	"scan":      InputScan,
	"back":      InputBack,
	"cancel":    InputCancel,
	"clear":     InputClear,
	"enter":     InputEnter,

	"ok":   InputEnter,
	"esc":  InputBack,
	"del":  InputClear,
	"bio":  InputBiometric,
	"conf": InputConfig,
}

// ParseInput maps typed or pasted text to an Input. Text is NFKC-normalised
// first so full-width digits from on-screen keyboards become ASCII.
func ParseInput(raw string) (Input, bool) {
	s := strings.ToLower(strings.TrimSpace(norm.NFKC.String(raw)))
	if s == "" {
		return "", false
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return Input(s), true
	}
	in, ok := namedInputs[s]
	return in, ok
}

// Digit returns the digit carried by in.
func (in Input) Digit() (byte, bool) {
	if len(in) == 1 && in[0] >= '0' && in[0] <= '9' {
		return in[0], true
	}
	return 0, false
}

// DigitInput returns the Input for digit d (0-9).
func DigitInput(d int) Input {
	return Input(string(rune('0' + d%10)))
}
