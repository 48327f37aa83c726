// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultHistoryLimit bounds the navigation history and the back stack.
	DefaultHistoryLimit = 50

	// DefaultMaxAttempts is the consecutive authentication failure limit.
	DefaultMaxAttempts = 3
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is one committed navigation.
type Event struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Direction Direction `json:"direction"`
	Back      bool      `json:"back,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Observer is called after every committed navigation.
type Observer func(Event)

// AuthFailure describes the outcome of HandleAuthenticationFailure.
type AuthFailure struct {
	Attempts  int
	Remaining int
	// Exhausted is set when the limit was reached and the counter reset.
	Exhausted bool
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager is the sole authority over the active screen.
type Manager struct {
	state        *session.State
	graph        *Graph
	logger       zerolog.Logger
	now          func() time.Time
	historyLimit int
	maxAttempts  int
	observers    []Observer

	registry   map[string]Screen
	order      []string
	active     string
	history    []Event
	back       []string
	navigating bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithGraph replaces the default transition rules.
func WithGraph(g *Graph) Option {
	return func(m *Manager) {
		if g != nil {
			m.graph = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l.With().Str("component", "navigation").Logger()
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithHistoryLimit bounds history and back stack length.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithMaxAttempts sets the authentication failure limit.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithObserver registers a callback for committed navigations.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// NewManager creates a Manager over state. A nil state gets a fresh one.
func NewManager(state *session.State, opts ...Option) *Manager {
	if state == nil {
		state = session.NewState()
	}
	m := &Manager{
		state:        state,
		graph:        DefaultGraph(),
		logger:       zerolog.Nop(),
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		maxAttempts:  DefaultMaxAttempts,
		registry:     make(map[string]Screen),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// REGISTRY
// =============================================================================

// Register adds s under its name. Re-registering a name replaces the entry
// without touching the active pointer. The first registered screen becomes
// active without running hooks; use Start to enter a screen explicitly.
func (m *Manager) Register(s Screen) error {
	if s == nil || s.Name() == "" {
		m.logger.Warn().Str("type", fmt.Sprintf("%T", s)).Msg("screen has no name, not registered")
		return ErrUnnamedScreen
	}
	name := s.Name()
	if _, exists := m.registry[name]; !exists {
		m.order = append(m.order, name)
	}
	m.registry[name] = s
	if m.active == "" {
		m.active = name
	}
	m.logger.Debug().Str("screen", name).Msg("screen registered")
	return nil
}

// Start makes name the active screen and runs its entry hook. It is meant
// for startup and bypasses the graph.
func (m *Manager) Start(name string) error {
	s, ok := m.registry[name]
	if !ok {
		return fmt.Errorf("start %s: %w", name, ErrUnknownScreen)
	}
	m.active = name
	m.back = nil
	return callHook(name, PhaseEnter, s.OnEnter)
}

// Screen returns the registered screen called name.
func (m *Manager) Screen(name string) (Screen, bool) {
	s, ok := m.registry[name]
	return s, ok
}

// Registered returns screen names in registration order.
func (m *Manager) Registered() []string {
	return append([]string(nil), m.order...)
}

// CurrentScreenName returns the active screen name.
func (m *Manager) CurrentScreenName() string {
	return m.active
}

// CurrentScreen returns the active screen, or nil before registration.
func (m *Manager) CurrentScreen() Screen {
	return m.registry[m.active]
}

// State returns the session state the Manager drives.
func (m *Manager) State() *session.State {
	return m.state
}

// Graph returns the transition rules.
func (m *Manager) Graph() *Graph {
	return m.graph
}

// =============================================================================
// NAVIGATION
// =============================================================================

// Navigate moves to target. It returns ErrNavigationRejected when the graph
// forbids the move, ErrUnknownScreen for an unregistered target, and a
// *HookError when a hook fails. On any error the active screen, history and
// back stack are as they were, except for moves to Home, which always commit.
func (m *Manager) Navigate(target string, dir Direction) error {
	return m.navigate(target, dir, false)
}

func (m *Manager) navigate(target string, dir Direction, back bool) error {
	if m.navigating {
		return fmt.Errorf("navigate to %s: %w", target, ErrNavigationInProgress)
	}

	from := m.active
	to, ok := m.registry[target]
	if !ok {
		m.logger.Warn().Str("from", from).Str("to", target).Msg("navigation to unknown screen")
		return fmt.Errorf("navigate %s -> %s: %w", from, target, ErrUnknownScreen)
	}
	if !m.graph.Allowed(from, target) {
		m.logger.Info().Str("from", from).Str("to", target).Msg("navigation blocked")
		return fmt.Errorf("navigate %s -> %s: %w", from, target, ErrNavigationRejected)
	}

	m.navigating = true
	defer func() { m.navigating = false }()

	forced := target == Home
	fromScreen := m.registry[from]

	// Phase one: the outgoing screen may veto.
	if fromScreen != nil {
		if err := callHook(from, PhaseExit, fromScreen.OnExit); err != nil {
			if !forced {
				m.logger.Error().Err(err).Str("from", from).Str("to", target).Msg("exit hook failed, navigation aborted")
				return err
			}
			m.logger.Error().Err(err).Str("from", from).Msg("exit hook failed, forcing idle")
		}
	}

	// Phase two: commit the pointer, then enter.
	prevBack := append([]string(nil), m.back...)
	ev := Event{
		ID:        uuid.NewString(),
		From:      from,
		To:        target,
		Direction: dir,
		Back:      back,
		SessionID: m.state.SessionID(),
		Time:      m.now(),
	}
	m.active = target
	m.history = append(m.history, ev)
	m.updateBackStack(from, target, back)

	if err := callHook(target, PhaseEnter, to.OnEnter); err != nil {
		if !forced {
			m.active = from
			m.history = m.history[:len(m.history)-1]
			m.back = prevBack
			if fromScreen != nil {
				if rerr := callHook(from, PhaseEnter, fromScreen.OnEnter); rerr != nil {
					m.logger.Error().Err(rerr).Str("screen", from).Msg("re-entry after rollback failed")
				}
			}
			m.logger.Error().Err(err).Str("from", from).Str("to", target).Msg("entry hook failed, navigation rolled back")
			return err
		}
		m.logger.Error().Err(err).Msg("idle entry hook failed, keeping idle active")
	}

	if over := len(m.history) - m.historyLimit; over > 0 {
		m.history = append([]Event(nil), m.history[over:]...)
	}

	m.logger.Debug().Str("from", from).Str("to", target).Str("direction", string(dir)).Bool("back", back).Msg("navigation")
	for _, o := range m.observers {
		o(ev)
	}
	return nil
}

func (m *Manager) updateBackStack(from, target string, back bool) {
	switch {
	case target == Home:
		m.back = nil
	case back:
		if n := len(m.back); n > 0 && m.back[n-1] == target {
			m.back = m.back[:n-1]
		}
	case from != "":
		m.back = append(m.back, from)
		if over := len(m.back) - m.historyLimit; over > 0 {
			m.back = append([]string(nil), m.back[over:]...)
		}
	}
}

// GoBack returns to the screen the last forward move came from. With an
// empty back stack it goes Home. The stack is popped only on success.
func (m *Manager) GoBack() error {
	if len(m.back) == 0 {
		return m.navigate(Home, DirectionRight, true)
	}
	return m.navigate(m.back[len(m.back)-1], DirectionRight, true)
}

// GoHome navigates to the idle screen.
func (m *Manager) GoHome() error {
	return m.Navigate(Home, DirectionRight)
}

// forceTo reaches target directly when the graph allows it and through
// Home otherwise, so every recorded hop stays legal.
func (m *Manager) forceTo(target string, dir Direction) error {
	err := m.Navigate(target, dir)
	if !errors.Is(err, ErrNavigationRejected) {
		return err
	}
	if err := m.GoHome(); err != nil {
		return err
	}
	return m.Navigate(target, dir)
}

// History returns a copy of the navigation history, oldest first.
func (m *Manager) History() []Event {
	return append([]Event(nil), m.history...)
}

// BackStack returns a copy of the back stack, bottom first.
func (m *Manager) BackStack() []string {
	return append([]string(nil), m.back...)
}

// =============================================================================
// FLOW HELPERS
// =============================================================================

// StartAuthenticationFlow navigates to authentication method selection.
func (m *Manager) StartAuthenticationFlow() error {
	return m.Navigate(ScreenAuthSelection, DirectionLeft)
}

// HandleEmergencyAccess navigates to the emergency override screen.
func (m *Manager) HandleEmergencyAccess() error {
	return m.Navigate(ScreenEmergencyAccess, DirectionLeft)
}

// HandleConfigurationAccess navigates to the configuration screen.
func (m *Manager) HandleConfigurationAccess() error {
	return m.Navigate(ScreenConfiguration, DirectionLeft)
}

// HandleAuthenticationSuccess opens a session for id and moves to activity
// code entry. If the move fails the session is closed again.
func (m *Manager) HandleAuthenticationSuccess(id session.Identity, method session.AuthMethod) error {
	if err := m.state.StartSession(id, method); err != nil {
		return fmt.Errorf("authentication success: %w", err)
	}
	m.logger.Info().
		Str("user", id.User).
		Str("role", string(id.Role)).
		Str("method", string(method)).
		Str("session_id", m.state.SessionID()).
		Msg("session started")

	if err := m.Navigate(ScreenActivityCode, DirectionLeft); err != nil {
		if _, endErr := m.state.EndSession(); endErr != nil {
			m.logger.Error().Err(endErr).Msg("failed to close session after navigation error")
		}
		return fmt.Errorf("authentication success: %w", err)
	}
	return nil
}

// HandleAuthenticationFailure counts a failed attempt. At the limit it
// resets the counter and returns to authentication selection; below it
// the caller stays put for a retry.
func (m *Manager) HandleAuthenticationFailure() (AuthFailure, error) {
	n := m.state.RecordFailedAttempt()
	res := AuthFailure{Attempts: n, Remaining: m.maxAttempts - n}
	if n < m.maxAttempts {
		m.logger.Info().Int("attempts", n).Int("remaining", res.Remaining).Msg("authentication failed")
		return res, nil
	}

	m.state.ResetFailedAttempts()
	res.Remaining = 0
	res.Exhausted = true
	m.logger.Warn().Int("attempts", n).Msg("authentication attempts exhausted")
	return res, m.forceTo(ScreenAuthSelection, DirectionRight)
}

// CompleteActivitySession ends the session and returns home. The summary
// is the only record of the session once this returns.
func (m *Manager) CompleteActivitySession() (session.Summary, error) {
	summary, err := m.state.EndSession()
	if err != nil {
		m.logger.Warn().Err(err).Msg("complete activity without session")
	} else {
		m.logger.Info().
			Str("session_id", summary.SessionID).
			Int("keys_removed", summary.KeysRemoved).
			Int("keys_returned", summary.KeysReturned).
			Dur("duration", summary.Duration).
			Msg("session completed")
	}
	if navErr := m.GoHome(); navErr != nil {
		return summary, errors.Join(err, navErr)
	}
	return summary, err
}

// CancelActivitySession abandons the session from activity code entry and
// returns to PIN entry. Nothing is ended when the move is rejected. The
// summary is zero when no session was active.
func (m *Manager) CancelActivitySession() (session.Summary, error) {
	if err := m.Navigate(ScreenPINEntry, DirectionRight); err != nil {
		return session.Summary{}, err
	}
	if !m.state.Active() {
		return session.Summary{}, nil
	}
	summary, err := m.state.EndSession()
	if err != nil {
		return summary, err
	}
	m.logger.Info().
		Str("session_id", summary.SessionID).
		Dur("duration", summary.Duration).
		Msg("session cancelled")
	return summary, nil
}

// MaxAttempts returns the authentication failure limit.
func (m *Manager) MaxAttempts() int {
	return m.maxAttempts
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Stats summarises the recorded history.
type Stats struct {
	TotalNavigations int            `json:"total_navigations"`
	ScreenVisits     map[string]int `json:"screen_visits"`
	CurrentScreen    string         `json:"current_screen"`
	TotalScreens     int            `json:"total_screens"`
}

// Stats counts arrivals per screen over the retained history.
func (m *Manager) Stats() Stats {
	st := Stats{
		TotalNavigations: len(m.history),
		ScreenVisits:     make(map[string]int),
		CurrentScreen:    m.active,
		TotalScreens:     len(m.registry),
	}
	for _, ev := range m.history {
		st.ScreenVisits[ev.To]++
	}
	return st
}

// HierarchyEntry describes one registered screen.
type HierarchyEntry struct {
	Screen              string   `json:"screen"`
	Type                string   `json:"type"`
	AllowedDestinations []string `json:"allowed_destinations"`
}

// Hierarchy lists registered screens with their explicit rule entries.
func (m *Manager) Hierarchy() []HierarchyEntry {
	out := make([]HierarchyEntry, 0, len(m.order))
	for _, name := range m.order {
		dests, _ := m.graph.Destinations(name)
		out = append(out, HierarchyEntry{
			Screen:              name,
			Type:                fmt.Sprintf("%T", m.registry[name]),
			AllowedDestinations: dests,
		})
	}
	return out
}

// ValidateIntegrity returns an *IntegrityError when the registry, the
// active pointer or the graph disagree.
func (m *Manager) ValidateIntegrity() error {
	var issues []string

	if len(m.order) != len(m.registry) {
		issues = append(issues, fmt.Sprintf("registry has %d screens but order lists %d", len(m.registry), len(m.order)))
	}
	for _, name := range m.order {
		s, ok := m.registry[name]
		if !ok {
			issues = append(issues, fmt.Sprintf("screen %q listed but not registered", name))
			continue
		}
		if s.Name() != name {
			issues = append(issues, fmt.Sprintf("screen registered as %q reports name %q", name, s.Name()))
		}
	}
	if _, ok := m.registry[m.active]; !ok {
		issues = append(issues, fmt.Sprintf("current screen %q not in registry", m.active))
	}
	for _, from := range m.graph.Listed() {
		dests, _ := m.graph.Destinations(from)
		for _, d := range dests {
			if _, ok := m.registry[d]; !ok {
				issues = append(issues, fmt.Sprintf("rule %s -> %s references unregistered screen", from, d))
			}
		}
	}

	if len(issues) > 0 {
		m.logger.Error().Strs("issues", issues).Msg("navigation integrity check failed")
		return &IntegrityError{Issues: issues}
	}
	return nil
}

// Cleanup clears history, runs every screen's Cleanup hook and empties the
// registry.
func (m *Manager) Cleanup() {
	m.history = nil
	m.back = nil
	for _, name := range m.order {
		s := m.registry[name]
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error().Str("screen", name).Interface("panic", r).Msg("screen cleanup panicked")
				}
			}()
			s.Cleanup()
		}()
	}
	m.registry = make(map[string]Screen)
	m.order = nil
	m.active = ""
	m.logger.Info().Msg("navigation manager cleaned up")
}

// callHook runs fn and converts errors and panics into *HookError.
func callHook(screen string, phase HookPhase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Screen: screen, Phase: phase, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if hookErr := fn(); hookErr != nil {
		return &HookError{Screen: screen, Phase: phase, Err: hookErr}
	}
	return nil
}
