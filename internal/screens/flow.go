// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import "github.com/jeranaias/keycabinet/internal/session"

// Flow carries the identity claimed by a scan screen to PIN entry. The
// claim is not trusted until the PIN verifies.
type Flow struct {
	user   string
	method session.AuthMethod
}

// Claim records the scanned user and how they were scanned.
func (f *Flow) Claim(user string, method session.AuthMethod) {
	f.user = user
	f.method = method
}

// Claimed returns the pending claim.
func (f *Flow) Claimed() (user string, method session.AuthMethod, ok bool) {
	if f.user == "" {
		return "", session.MethodUnknown, false
	}
	return f.user, f.method, true
}

// Clear drops the claim.
func (f *Flow) Clear() {
	f.user = ""
	f.method = ""
}

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Preferences holds operator-adjustable presentation settings.
type Preferences struct {
	Theme string
}

// ToggleTheme flips between dark and light and returns the new theme.
func (p *Preferences) ToggleTheme() string {
	if p.Theme == ThemeLight {
		p.Theme = ThemeDark
	} else {
		p.Theme = ThemeLight
	}
	return p.Theme
}
