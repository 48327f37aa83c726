// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security holds the kiosk's credential checks and audit trail.
//
//   - Verifier resolves a claimed user and PIN into a session.Identity with
//     an explicit role. StaticVerifier stores PBKDF2 hashes only.
//   - Throttle caps credential attempts per second.
//   - LockoutManager locks an identifier after repeated failures (AC-7).
//   - TOTPGate is the optional second factor for configuration access.
//   - AuditLogger redacts and records security events to the structured
//     log and to sinks such as the in-memory journal.
package security
