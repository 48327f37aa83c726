// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNavigationRejected is returned when the graph does not permit a move.
	ErrNavigationRejected = errors.New("navigation rejected")

	// ErrUnknownScreen is returned for a target that was never registered.
	ErrUnknownScreen = errors.New("unknown screen")

	// ErrUnnamedScreen is returned by Register for a screen without a name.
	ErrUnnamedScreen = errors.New("screen has no name")

	// ErrNavigationInProgress is returned when a hook tries to navigate.
	ErrNavigationInProgress = errors.New("navigation already in progress")
)

// HookPhase identifies which lifecycle hook failed.
type HookPhase string

const (
	PhaseExit  HookPhase = "exit"
	PhaseEnter HookPhase = "enter"
)

// HookError reports a failing or panicking screen hook.
type HookError struct {
	Screen string
	Phase  HookPhase
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("screen %s: %s hook: %v", e.Screen, e.Phase, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// IntegrityError lists structural inconsistencies between the registry,
// the active pointer and the graph.
type IntegrityError struct {
	Issues []string
}

func (e *IntegrityError) Error() string {
	return "navigation integrity: " + strings.Join(e.Issues, "; ")
}
