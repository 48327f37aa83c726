// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// SCREEN CONTRACT
// =============================================================================

// Screen is a navigable kiosk screen that reacts to input and describes
// itself for rendering.
type Screen interface {
	navigation.Screen
	Handle(in Input)
	View() View
}

// Action is a button the current screen accepts.
type Action struct {
	Input Input
	Label string
}

// View is the render-ready description of a screen.
type View struct {
	Title    string
	Subtitle string
	Lines    []string
	// Entry is the keypad display; EntryLabel names it.
	Entry      string
	EntryLabel string
	// Progress is 0..1 while a scan runs and negative otherwise.
	Progress float64
	Busy     bool
	// Alert asks the shell to draw the screen as a security warning.
	Alert   bool
	Actions []Action
}

// NoticeKind grades a notice.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown over the current screen.
type Notice struct {
	Title   string
	Body    string
	Kind    NoticeKind
	Dismiss time.Duration
}

// JournalReader reads recent audit events for the configuration screen.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]security.AuditEvent, error)
}

// JournalVerifier is implemented by journals that seal their entries.
type JournalVerifier interface {
	Verify(ctx context.Context) (int, error)
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the collaborators shared by every screen.
type Deps struct {
	Manager   *navigation.Manager
	Config    *config.Store
	Verifier  security.Verifier
	Lockout   *security.LockoutManager
	Audit     *security.AuditLogger
	Journal   JournalReader
	Scheduler Scheduler
	Flow      *Flow
	Prefs     *Preferences
	Notify    func(Notice)
	Now       func() time.Time
	Logger    zerolog.Logger
}

func (d *Deps) state() *session.State {
	return d.Manager.State()
}

func (d *Deps) cfg() *config.Config {
	if d.Config == nil {
		return config.Default()
	}
	return d.Config.Current()
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// =============================================================================
// BASE
// =============================================================================

// Base supplies the navigation hooks, active tracking, timers and audit
// helpers. Screens embed it and override the hooks they need.
type Base struct {
	name   string
	deps   *Deps
	active bool
	timers []Timer
	log    zerolog.Logger
}

func newBase(name string, d *Deps) Base {
	return Base{
		name: name,
		deps: d,
		log:  d.Logger.With().Str("screen", name).Logger(),
	}
}

// Name implements navigation.Screen.
func (b *Base) Name() string { return b.name }

// OnEnter marks the screen active.
func (b *Base) OnEnter() error {
	b.active = true
	b.logUserAction("screen_entered", nil)
	return nil
}

// OnExit marks the screen inactive and cancels its timers.
func (b *Base) OnExit() error {
	b.active = false
	b.stopTimers()
	b.logUserAction("screen_exited", nil)
	return nil
}

// Cleanup cancels pending timers.
func (b *Base) Cleanup() {
	b.active = false
	b.stopTimers()
}

// IsActive reports whether the screen is the current one.
func (b *Base) IsActive() bool { return b.active }

// after schedules fn; it is dropped if the screen is no longer active.
func (b *Base) after(d time.Duration, fn func()) {
	if b.deps.Scheduler == nil {
		return
	}
	t := b.deps.Scheduler.After(d, func() {
		if b.active {
			fn()
		}
	})
	b.timers = append(b.timers, t)
}

func (b *Base) stopTimers() {
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}

func (b *Base) notify(kind NoticeKind, title, body string, dismiss time.Duration) {
	if b.deps.Notify == nil {
		return
	}
	if dismiss <= 0 {
		dismiss = config.Seconds(b.deps.cfg().Timing.AutoDismissSeconds)
	}
	b.deps.Notify(Notice{Title: title, Body: body, Kind: kind, Dismiss: dismiss})
}

// navigate requests a move and logs denials. Rejections are expected on a
// kiosk and stay silent for the user.
func (b *Base) navigate(target string, dir navigation.Direction) bool {
	err := b.deps.Manager.Navigate(target, dir)
	return b.navResult(target, err)
}

func (b *Base) goHome() bool {
	err := b.deps.Manager.GoHome()
	return b.navResult(navigation.Home, err)
}

func (b *Base) navResult(target string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, navigation.ErrNavigationRejected):
		b.log.Info().Str("target", target).Msg("navigation blocked")
	default:
		b.log.Error().Err(err).Str("target", target).Msg("navigation failed")
	}
	return false
}

func (b *Base) logUserAction(action string, details map[string]string) {
	st := b.deps.state()
	user, _ := st.CurrentUser()
	if err := b.deps.Audit.LogUserAction(st.SessionID(), user, b.name, action, details); err != nil {
		b.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

func (b *Base) audit(ev security.AuditEvent) {
	st := b.deps.state()
	if ev.SessionID == "" {
		ev.SessionID = st.SessionID()
	}
	if ev.User == "" {
		ev.User, _ = st.CurrentUser()
	}
	if ev.Screen == "" {
		ev.Screen = b.name
	}
	if err := b.deps.Audit.Log(ev); err != nil {
		b.log.Warn().Err(err).Str("event_type", ev.EventType).Msg("audit write failed")
	}
}

func keypadActions(extra ...Action) []Action {
	out := []Action{
		{Input: "0", Label: "0-9 digits"},
		{Input: InputClear, Label: "Clear"},
		{Input: InputEnter, Label: "Enter"},
	}
	return append(out, extra...)
}
