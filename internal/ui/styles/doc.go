// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the kiosk terminal.

# Colors (colors.go)

  - Cyan - brand, titles and key hints
  - Purple - the active screen
  - Emerald - success and available keys
  - Amber - warnings and removed keys
  - Rose - errors, lockouts and emergency access

Every color is a lipgloss AdaptiveColor. NewTheme calls
lipgloss.SetHasDarkBackground so the operator's theme toggle picks the
matching half of each pair regardless of what the terminal reports.

# Accessibility

Status is never shown by color alone. RenderSuccess, RenderError,
RenderWarning and RenderInfo prefix an ASCII marker from StatusIndicators.

# Usage

	th := styles.NewTheme(cfg.UI.Theme)
	fmt.Println(th.Title.Render("Key Cabinet"))
*/
package styles
