// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package navigation owns the active-screen pointer of the kiosk.
//
// A Manager validates every move against a Graph of allowed transitions,
// runs the exit and entry hooks of the screens involved as a two-phase
// commit, records a bounded history, and maintains a LIFO back stack. It
// also drives the session lifecycle: authentication success opens a
// session, completing the activity closes it.
//
// The idle screen (ScreenMainIdle) is reachable from everywhere and a move
// to it always commits, so the kiosk can never get stuck.
//
// A Manager is driven from a single goroutine, the UI event loop. Hooks
// must not call back into Navigate; deferred work goes through a scheduler.
package navigation
