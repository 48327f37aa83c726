// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/progress"

	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// ScanBar draws scan progress. It renders statically from the fraction
// reported by the screen, so no animation messages are needed.
type ScanBar struct {
	bar progress.Model
}

// NewScanBar returns a gradient bar of width cells.
func NewScanBar(width int) ScanBar {
	p := progress.New(progress.WithGradient(styles.GradientStart, styles.GradientEnd))
	if width > 0 {
		p.Width = width
	}
	return ScanBar{bar: p}
}

// SetWidth resizes the bar.
func (b *ScanBar) SetWidth(width int) {
	if width > 0 {
		b.bar.Width = width
	}
}

// View renders fraction, clamped to [0, 1]. A negative fraction hides
// the bar.
func (b ScanBar) View(fraction float64) string {
	if fraction < 0 {
		return ""
	}
	if fraction > 1 {
		fraction = 1
	}
	return b.bar.ViewAs(fraction)
}
