// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigation

// Screen is a named, mutually exclusive kiosk state.
//
// OnExit runs on the outgoing screen before the pointer moves; an error
// aborts the move. OnEnter runs on the incoming screen after the pointer
// moves; an error rolls the move back unless the target is the idle
// screen. Cleanup runs once when the Manager shuts down.
type Screen interface {
	Name() string
	OnEnter() error
	OnExit() error
	Cleanup()
}

// Direction is a presentation hint for transition animation. It has no
// effect on validation.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)
