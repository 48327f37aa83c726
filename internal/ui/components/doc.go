// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable pieces of the kiosk terminal view.

  - Header and StatusBar (statusbar.go) frame every screen.
  - RenderNoticeStack (notice.go) draws the auto-dismissing notices.
  - TimeoutOverlay (timeout_overlay.go) warns before a session expires.
  - Spinner and ScanBar show card and biometric scans in progress.

Text is measured in display cells with go-runewidth so site names and user
names in wide scripts do not break the layout.
*/
package components
