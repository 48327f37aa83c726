// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea front end of the kiosk. It translates key
// presses into kiosk inputs, forwards the poll tick to the App, applies
// hot-reloaded configuration and renders the current screen with its
// notices, the status bar and the session timeout overlay.
package ui
