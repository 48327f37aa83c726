// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kiosk wires the session state, the navigation manager, the
// screens and the security services into one App driven by two entry
// points: Press for user input and Tick for the clock.
//
// The App is not safe for concurrent use. The terminal shell and the line
// console both call it from a single goroutine.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/journal"
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/screens"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// OPTIONS
// =============================================================================

type options struct {
	logger  zerolog.Logger
	now     func() time.Time
	journal bool
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now everywhere in the App.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithoutJournal skips the in-memory audit journal.
func WithoutJournal() Option {
	return func(o *options) { o.journal = false }
}

// =============================================================================
// APP
// =============================================================================

// App is a running kiosk.
type App struct {
	store   *config.Store
	state   *session.State
	manager *navigation.Manager
	audit   *security.AuditLogger
	journal *journal.Store
	lockout *security.LockoutManager
	timers  *screens.TimerQueue
	notices *NoticeBoard
	prefs   *screens.Preferences
	flow    *screens.Flow
	screens []screens.Screen
	logger  zerolog.Logger
	now     func() time.Time
}

// New builds a kiosk from the configuration in store and enters the idle
// screen.
func New(ctx context.Context, store *config.Store, opts ...Option) (*App, error) {
	o := options{logger: zerolog.Nop(), now: time.Now, journal: true}
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = config.NewStore("", config.Default())
	}
	cfg := store.Current()

	a := &App{
		store:   store,
		notices: NewNoticeBoard(DefaultMaxNotices),
		prefs:   &screens.Preferences{Theme: cfg.UI.Theme},
		flow:    &screens.Flow{},
		logger:  o.logger,
		now:     o.now,
	}
	a.timers = screens.NewTimerQueue(a.now)

	auditOpts := []security.AuditOption{
		security.WithAuditLog(o.logger.With().Str("component", "audit").Logger()),
		security.WithAuditClock(a.now),
	}
	if o.journal {
		j, err := journal.Open(ctx, cfg.Journal.MaxEntries)
		if err != nil {
			return nil, err
		}
		a.journal = j
		auditOpts = append(auditOpts, security.WithAuditSink(j))
	}
	a.audit = security.NewAuditLogger(auditOpts...)
	if r := credentialRedactor(cfg); r != nil {
		a.audit.AddRedactor(r)
	}

	cab, err := cfg.BuildCabinet()
	if err != nil {
		a.closeJournal()
		return nil, fmt.Errorf("cabinet: %w", err)
	}
	a.state = session.NewState(
		session.WithClock(a.now),
		session.WithInventory(cab),
		session.WithTimeout(cfg.SessionTimeout()),
		session.WithWarningAfter(cfg.SessionWarning()),
		session.WithActivityCodeLength(cfg.Input.ActivityCodeMin, cfg.Input.ActivityCodeMax),
	)

	policy, err := navigation.ParsePolicy(cfg.Navigation.UnlistedPolicy)
	if err != nil {
		a.closeJournal()
		return nil, err
	}
	a.manager = navigation.NewManager(a.state,
		navigation.WithGraph(navigation.NewGraph(navigation.DefaultRules(), policy)),
		navigation.WithLogger(o.logger),
		navigation.WithClock(a.now),
		navigation.WithHistoryLimit(cfg.Navigation.HistoryLimit),
		navigation.WithMaxAttempts(cfg.Security.MaxPINAttempts),
		navigation.WithObserver(a.recordNavigation),
	)

	a.lockout = security.NewLockoutManager(
		security.WithMaxAttempts(cfg.Security.MaxPINAttempts),
		security.WithLockoutDuration(cfg.EmergencyLockout()),
		security.WithAuditLogger(a.audit),
		security.WithLockoutClock(a.now),
	)

	verifier, err := buildVerifier(cfg, a.now)
	if err != nil {
		a.closeJournal()
		return nil, err
	}

	a.screens, err = screens.Install(&screens.Deps{
		Manager:   a.manager,
		Config:    store,
		Verifier:  verifier,
		Lockout:   a.lockout,
		Audit:     a.audit,
		Journal:   a.journalReader(),
		Scheduler: a.timers,
		Flow:      a.flow,
		Prefs:     a.prefs,
		Notify:    a.notify,
		Now:       a.now,
		Logger:    o.logger,
	})
	if err != nil {
		a.closeJournal()
		return nil, err
	}

	if err := a.manager.ValidateIntegrity(); err != nil {
		a.closeJournal()
		return nil, err
	}
	a.logger.Info().
		Str("site", cfg.Kiosk.SiteName).
		Int("screens", len(a.screens)).
		Str("unlisted_policy", string(policy)).
		Msg("kiosk started")
	return a, nil
}

func buildVerifier(cfg *config.Config, now func() time.Time) (security.Verifier, error) {
	creds := make([]security.Credential, 0, len(cfg.Security.Users))
	for _, u := range cfg.Security.Users {
		creds = append(creds, security.Credential{User: u.Name, Role: session.Role(u.Role), PIN: u.PIN})
	}
	static, err := security.NewStaticVerifier(cfg.Security.DefaultPIN, creds)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	throttle := security.NewThrottle(cfg.Security.AttemptRatePerSec, cfg.Security.AttemptBurst).WithClock(now)
	return security.NewThrottledVerifier(static, throttle), nil
}

// credentialRedactor masks configured PINs and the TOTP secret wherever they
// appear verbatim in audit text, such as an error echoing typed input.
func credentialRedactor(cfg *config.Config) security.Redactor {
	var secrets []string
	add := func(v string) {
		if v != "" {
			secrets = append(secrets, regexp.QuoteMeta(v))
		}
	}
	add(cfg.Security.DefaultPIN)
	add(cfg.Security.AdminPIN)
	add(cfg.Security.EmergencyPIN)
	add(cfg.Security.AdminTOTPSecret)
	for _, u := range cfg.Security.Users {
		add(u.PIN)
	}
	if len(secrets) == 0 {
		return nil
	}
	pattern := regexp.MustCompile(`\b(?:` + strings.Join(secrets, "|") + `)\b`)
	return security.NewPatternRedactor("ConfiguredCredential", pattern, "[REDACTED]")
}

// journalReader avoids handing screens a typed nil.
func (a *App) journalReader() screens.JournalReader {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *App) closeJournal() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// Close shuts the screens down and discards the journal.
func (a *App) Close() error {
	a.manager.Cleanup()
	a.notices.Clear()
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

// =============================================================================
// INPUT
// =============================================================================

// Press delivers in to the current screen.
func (a *App) Press(in screens.Input) {
	s, ok := a.current()
	if !ok {
		return
	}
	s.Handle(in)
}

// PressText parses raw and delivers it. It reports whether raw was a known
// input.
func (a *App) PressText(raw string) bool {
	in, ok := screens.ParseInput(raw)
	if !ok {
		return false
	}
	a.Press(in)
	return true
}

// DismissNotice removes the newest notice.
func (a *App) DismissNotice() bool {
	return a.notices.DismissLatest()
}

func (a *App) current() (screens.Screen, bool) {
	s, ok := a.manager.CurrentScreen().(screens.Screen)
	if !ok {
		a.recover("current screen is not interactive")
		s, ok = a.manager.CurrentScreen().(screens.Screen)
	}
	return s, ok
}

func (a *App) notify(n screens.Notice) {
	a.notices.Post(n, a.now())
}

// =============================================================================
// TICK
// =============================================================================

// TickResult reports what a tick changed.
type TickResult struct {
	TimersFired     int
	NoticesExpired  int
	LockoutsCleared []string
	SessionWarned   bool
	SessionExpired  bool
}

// Tick advances the kiosk to now: due callbacks fire, expired lockouts and
// notices clear, and the open session is checked for expiry.
func (a *App) Tick(now time.Time) TickResult {
	var res TickResult
	res.TimersFired = a.timers.RunDue(now)
	res.LockoutsCleared = a.lockout.Sweep()

	check := a.state.Check()
	switch {
	case check.Expired:
		res.SessionExpired = true
		a.expireSession()
	case check.Warn:
		res.SessionWarned = true
		a.warnSession(check.Remaining)
	}

	if _, ok := a.manager.Screen(a.manager.CurrentScreenName()); !ok {
		a.recover("current screen missing from registry")
	}
	res.NoticesExpired = a.notices.Expire(now)
	return res
}

func (a *App) warnSession(remaining time.Duration) {
	st := a.state.Status()
	a.logAudit(security.AuditEvent{
		EventType: security.EventSessionTimeout,
		Severity:  security.SeverityWarning,
		SessionID: st.SessionID,
		User:      st.User,
		Screen:    a.manager.CurrentScreenName(),
		Success:   true,
		Metadata:  map[string]string{"phase": "warning", "remaining": remaining.Round(time.Second).String()},
	})
	a.notify(screens.Notice{
		Title:   "Session Expiring",
		Body:    fmt.Sprintf("Your session ends in %s. Finish your activity to avoid losing it.", session.FormatDuration(remaining)),
		Kind:    screens.NoticeWarning,
		Dismiss: config.Seconds(a.store.Current().Timing.AutoDismissSeconds) * 2,
	})
}

func (a *App) expireSession() {
	screen := a.manager.CurrentScreenName()
	summary, err := a.manager.CompleteActivitySession()
	if err != nil && summary.SessionID == "" {
		a.logger.Error().Err(err).Msg("session timeout without session")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("session timeout navigation failed")
	}
	a.logAudit(security.AuditEvent{
		EventType: security.EventSessionTimeout,
		Severity:  security.SeverityWarning,
		SessionID: summary.SessionID,
		User:      summary.User,
		Screen:    screen,
		Metadata: map[string]string{
			"phase":         "expired",
			"keys_removed":  strconv.Itoa(summary.KeysRemoved),
			"keys_returned": strconv.Itoa(summary.KeysReturned),
			"outstanding":   strconv.Itoa(len(summary.Outstanding())),
		},
	})
	a.notify(screens.Notice{
		Title:   "Session Timed Out",
		Body:    "Your session has ended for security. Please sign in again.",
		Kind:    screens.NoticeError,
		Dismiss: config.Seconds(a.store.Current().Timing.AutoDismissSeconds),
	})
}

// recover forces the kiosk back to the idle screen after an inconsistency.
func (a *App) recover(reason string) {
	a.logger.Error().Str("reason", reason).Str("screen", a.manager.CurrentScreenName()).Msg("recovering to idle screen")
	a.logAudit(security.AuditEvent{
		EventType: security.EventIntegrityViolation,
		Severity:  security.SeverityCritical,
		Screen:    a.manager.CurrentScreenName(),
		Error:     reason,
	})
	if err := a.manager.Start(navigation.Home); err != nil {
		a.logger.Error().Err(err).Msg("idle screen unavailable")
	}
}

// recordNavigation mirrors committed moves into the audit trail.
func (a *App) recordNavigation(ev navigation.Event) {
	md := map[string]string{
		"from":      ev.From,
		"to":        ev.To,
		"direction": string(ev.Direction),
		"nav_id":    ev.ID,
	}
	if ev.Back {
		md["back"] = "true"
	}
	user, _ := a.state.CurrentUser()
	a.logAudit(security.AuditEvent{
		EventType: security.EventNavigation,
		SessionID: ev.SessionID,
		User:      user,
		Screen:    ev.To,
		Success:   true,
		Timestamp: ev.Time,
		Metadata:  md,
	})
}

func (a *App) logAudit(ev security.AuditEvent) {
	if err := a.audit.Log(ev); err != nil {
		a.logger.Warn().Err(err).Str("event_type", ev.EventType).Msg("audit write failed")
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ApplyConfig swaps in a reloaded configuration. Presentation and timing
// values apply at once; credentials, cabinet layout and graph policy need
// a restart.
func (a *App) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	a.store.Replace(cfg)
	a.state.SetTimeouts(cfg.SessionTimeout(), cfg.SessionWarning())
	a.logger.Info().Str("site", cfg.Kiosk.SiteName).Msg("configuration reloaded")
	a.notify(screens.Notice{
		Title:   "Configuration Reloaded",
		Body:    "Updated settings are now in effect.",
		Kind:    screens.NoticeInfo,
		Dismiss: config.Seconds(cfg.Timing.AutoDismissSeconds),
	})
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// View describes the current screen.
func (a *App) View() screens.View {
	s, ok := a.current()
	if !ok {
		return screens.View{Title: "Unavailable", Progress: -1}
	}
	return s.View()
}

// CurrentScreen returns the active screen name.
func (a *App) CurrentScreen() string { return a.manager.CurrentScreenName() }

// Notices returns the notices shown now, newest first.
func (a *App) Notices() []PostedNotice { return a.notices.Active() }

// Status returns the session snapshot.
func (a *App) Status() session.Status { return a.state.Status() }

// Theme returns the operator-selected theme.
func (a *App) Theme() string { return a.prefs.Theme }

// SetTheme overrides the theme, e.g. after resolving "auto".
func (a *App) SetTheme(theme string) { a.prefs.Theme = theme }

// Config returns the live configuration.
func (a *App) Config() *config.Config { return a.store.Current() }

// ConfigStore returns the configuration store.
func (a *App) ConfigStore() *config.Store { return a.store }

// Manager exposes the navigation manager for diagnostics.
func (a *App) Manager() *navigation.Manager { return a.manager }

// Journal returns the audit journal, or nil when disabled.
func (a *App) Journal() *journal.Store { return a.journal }

// NextTimer returns when the next deferred callback is due.
func (a *App) NextTimer() (time.Time, bool) { return a.timers.NextDue() }
