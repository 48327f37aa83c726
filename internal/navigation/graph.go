// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigation

import (
	"fmt"
	"sort"
)

// Screen names of the kiosk.
const (
	ScreenMainIdle        = "main_idle"
	ScreenAuthSelection   = "auth_selection"
	ScreenCardScan        = "card_scan"
	ScreenBiometricScan   = "biometric_scan"
	ScreenPINEntry        = "pin_entry"
	ScreenActivityCode    = "activity_code"
	ScreenEmergencyAccess = "emergency_access"
	ScreenConfiguration   = "configuration"
)

// Home is the universal safety destination.
const Home = ScreenMainIdle

// =============================================================================
// UNLISTED POLICY
// =============================================================================

// UnlistedPolicy decides moves out of a screen that has no rule entry.
type UnlistedPolicy string

const (
	// PolicyOpen permits any destination from an unlisted screen.
	PolicyOpen UnlistedPolicy = "open"
	// PolicyClosed permits only Home from an unlisted screen.
	PolicyClosed UnlistedPolicy = "closed"
)

// ParsePolicy parses a configuration value. Empty means PolicyOpen.
func ParsePolicy(s string) (UnlistedPolicy, error) {
	switch UnlistedPolicy(s) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyClosed:
		return PolicyClosed, nil
	}
	return "", fmt.Errorf("unlisted policy %q: must be %q or %q", s, PolicyOpen, PolicyClosed)
}

// =============================================================================
// GRAPH
// =============================================================================

// Graph is the static adjacency of allowed screen-to-screen moves.
type Graph struct {
	rules  map[string][]string
	order  []string
	policy UnlistedPolicy
}

// DefaultRules returns the kiosk journey: idle, authentication, activity,
// and the two side branches from idle.
func DefaultRules() map[string][]string {
	return map[string][]string{
		ScreenMainIdle:        {ScreenAuthSelection, ScreenEmergencyAccess, ScreenConfiguration},
		ScreenAuthSelection:   {ScreenMainIdle, ScreenCardScan, ScreenBiometricScan},
		ScreenCardScan:        {ScreenAuthSelection, ScreenPINEntry},
		ScreenBiometricScan:   {ScreenAuthSelection, ScreenPINEntry},
		ScreenPINEntry:        {ScreenCardScan, ScreenBiometricScan, ScreenActivityCode},
		ScreenActivityCode:    {ScreenPINEntry, ScreenMainIdle},
		ScreenEmergencyAccess: {ScreenMainIdle},
		ScreenConfiguration:   {ScreenMainIdle},
	}
}

// ScreenNames lists the kiosk screens in journey order.
func ScreenNames() []string {
	return []string{
		ScreenMainIdle,
		ScreenAuthSelection,
		ScreenCardScan,
		ScreenBiometricScan,
		ScreenPINEntry,
		ScreenActivityCode,
		ScreenEmergencyAccess,
		ScreenConfiguration,
	}
}

// NewGraph copies rules so later changes to the map have no effect.
func NewGraph(rules map[string][]string, policy UnlistedPolicy) *Graph {
	if policy == "" {
		policy = PolicyOpen
	}
	g := &Graph{
		rules:  make(map[string][]string, len(rules)),
		policy: policy,
	}
	for from, dests := range rules {
		g.rules[from] = append([]string(nil), dests...)
		g.order = append(g.order, from)
	}
	sort.Strings(g.order)
	return g
}

// DefaultGraph is NewGraph(DefaultRules(), PolicyOpen).
func DefaultGraph() *Graph {
	return NewGraph(DefaultRules(), PolicyOpen)
}

// Allowed reports whether from -> to is permitted. Home is always allowed.
func (g *Graph) Allowed(from, to string) bool {
	if to == Home {
		return true
	}
	dests, listed := g.rules[from]
	if !listed {
		return g.policy == PolicyOpen
	}
	for _, d := range dests {
		if d == to {
			return true
		}
	}
	return false
}

// Destinations returns the explicit rule entry for from.
func (g *Graph) Destinations(from string) ([]string, bool) {
	dests, ok := g.rules[from]
	return append([]string(nil), dests...), ok
}

// Listed returns every screen that has a rule entry, sorted.
func (g *Graph) Listed() []string {
	return append([]string(nil), g.order...)
}

// Policy returns the unlisted-screen policy.
func (g *Graph) Policy() UnlistedPolicy {
	return g.policy
}
