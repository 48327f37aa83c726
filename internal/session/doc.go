// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the single active cabinet session.
//
// A State records who is logged in, how they authenticated, which key slots
// they may open, and the audit trail of keys removed and returned while the
// session is open. It is owned by the kiosk and injected into the navigation
// manager and the screens; there is no package-level instance.
//
// # Lifecycle
//
// A State has exactly two states:
//
//	NoSession --StartSession--> Active --EndSession--> NoSession
//
// StartSession refuses to overwrite an active session (ErrSessionActive).
// EndSession captures an immutable Summary and resets the State; callers that
// need post-session data must keep the returned Summary.
//
// # Key Types
//
//   - State: mutex-guarded session state with injectable clock
//   - Identity: authenticated user plus explicit Role
//   - KeyRecord / KeyEvent: cabinet slot and audit entry
//   - Summary: snapshot returned by EndSession
//   - Cabinet: role-based key inventory
//
// # Timeout
//
// Check reports the inactivity warning and expiry relative to the login time.
// The bubbletea shell polls it through TickCmd once per tick interval.
package session
