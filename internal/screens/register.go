// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"fmt"

	"github.com/jeranaias/keycabinet/internal/navigation"
)

// Build constructs all eight screens in journey order.
func Build(d *Deps) ([]Screen, error) {
	if d == nil || d.Manager == nil {
		return nil, fmt.Errorf("screens: manager is required")
	}
	if d.Flow == nil {
		d.Flow = &Flow{}
	}
	if d.Prefs == nil {
		d.Prefs = &Preferences{Theme: ThemeDark}
	}

	emergency, err := NewEmergencyScreen(d)
	if err != nil {
		return nil, err
	}
	configuration, err := NewConfigurationScreen(d)
	if err != nil {
		return nil, err
	}

	return []Screen{
		NewIdleScreen(d),
		NewAuthSelectionScreen(d),
		NewCardScanScreen(d),
		NewBiometricScanScreen(d),
		NewPINEntryScreen(d),
		NewActivityCodeScreen(d),
		emergency,
		configuration,
	}, nil
}

// Install builds the screens, registers them and enters the idle screen.
func Install(d *Deps) ([]Screen, error) {
	all, err := Build(d)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if err := d.Manager.Register(s); err != nil {
			return nil, fmt.Errorf("register %s: %w", s.Name(), err)
		}
	}
	if err := d.Manager.Start(navigation.Home); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return all, nil
}
