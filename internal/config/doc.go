// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the kiosk configuration.
//
// # Configuration Precedence
//
// Values are resolved in this order, later entries winning:
//   - Built-in defaults (Default)
//   - ~/.keycabinet/config.toml, or the file named by KEYCABINET_CONFIG
//   - Environment variables (KEYCABINET_*)
//
// Zero values that would disable a feature are then restored by
// SetDefaults, and Validate reports every invalid field at once.
//
// # Hot Reload
//
// Watch reloads the file when it changes. Only presentation and timing
// values are applied to a running kiosk; credentials take effect on the
// next start.
//
// # Usage
//
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.SessionTimeout()
package config
