// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package screens implements the eight kiosk screens.
//
// Each screen is a small state machine driven by discrete Inputs (keypad
// digits, clear, enter, and named buttons). Screens never render; they
// expose a View that the terminal shell and the line console draw.
//
// # Screen Flow
//
//	main_idle -> auth_selection -> card_scan | biometric_scan -> pin_entry
//	          -> activity_code (code, then cabinet) -> main_idle
//	main_idle -> emergency_access -> main_idle
//	main_idle -> configuration -> main_idle
//
// # Timing
//
// Scan delays and timed returns are deferred callbacks on a Scheduler.
// TimerQueue fires them from the kiosk tick, so every callback runs on
// the same goroutine as input handling.
package screens
