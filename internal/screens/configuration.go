// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/session"
)

// LockoutConfiguration is the lockout identifier for the admin gate.
const LockoutConfiguration = "configuration"

// journalViewLimit is how many audit events the journal view shows.
const journalViewLimit = 12

// ConfigPhase is the gate state of the configuration screen.
type ConfigPhase int

const (
	ConfigPIN ConfigPhase = iota
	ConfigTOTP
	ConfigUnlocked
)

// ConfigView selects what the unlocked configuration screen shows.
type ConfigView int

const (
	ViewInfo ConfigView = iota + 1
	ViewJournal
	ViewStats
	ViewIntegrity
	ViewLockouts
)

var configViewNames = map[ConfigView]string{
	ViewInfo:      "System",
	ViewJournal:   "Audit journal",
	ViewStats:     "Navigation stats",
	ViewIntegrity: "Integrity",
	ViewLockouts:  "Lockouts",
}

// ConfigurationScreen is the administrator console. It is gated by the
// admin PIN and, when a secret is configured, a TOTP code.
type ConfigurationScreen struct {
	Base
	pin     *Keypad
	code    *Keypad
	matcher *security.PINMatcher
	totp    *security.TOTPGate
	phase   ConfigPhase
	view    ConfigView
	lines   []string
}

// NewConfigurationScreen returns the configuration screen. The admin PIN
// and TOTP secret are fixed at construction.
func NewConfigurationScreen(d *Deps) (*ConfigurationScreen, error) {
	cfg := d.cfg()
	m, err := security.NewPINMatcher(cfg.Security.AdminPIN)
	if err != nil {
		return nil, fmt.Errorf("admin pin: %w", err)
	}
	return &ConfigurationScreen{
		Base:    newBase(navigation.ScreenConfiguration, d),
		pin:     NewKeypad(cfg.Security.PINLength, true),
		code:    NewKeypad(6, true),
		matcher: m,
		totp:    security.NewTOTPGate(cfg.Security.AdminTOTPSecret).WithClock(d.Now),
	}, nil
}

// Phase returns the gate state.
func (s *ConfigurationScreen) Phase() ConfigPhase { return s.phase }

// CurrentView returns the selected view.
func (s *ConfigurationScreen) CurrentView() ConfigView { return s.view }

// OnEnter locks the screen.
func (s *ConfigurationScreen) OnEnter() error {
	s.lock()
	return s.Base.OnEnter()
}

// OnExit locks the screen again so the next visit needs the PIN.
func (s *ConfigurationScreen) OnExit() error {
	s.lock()
	return s.Base.OnExit()
}

// Cleanup wipes the keypads.
func (s *ConfigurationScreen) Cleanup() {
	s.lock()
	s.Base.Cleanup()
}

func (s *ConfigurationScreen) lock() {
	s.pin.Clear()
	s.code.Clear()
	s.phase = ConfigPIN
	s.view = ViewInfo
	s.lines = nil
}

// Handle implements Screen.
func (s *ConfigurationScreen) Handle(in Input) {
	if in == InputBack || in == InputCancel {
		s.logUserAction("configuration_back_pressed", nil)
		s.goHome()
		return
	}

	switch s.phase {
	case ConfigPIN:
		s.handleGate(in, s.pin, s.submitPIN)
	case ConfigTOTP:
		s.handleGate(in, s.code, s.submitTOTP)
	case ConfigUnlocked:
		s.handleUnlocked(in)
	}
}

func (s *ConfigurationScreen) handleGate(in Input, pad *Keypad, submit func()) {
	switch in {
	case InputClear:
		pad.Clear()
	case InputEnter:
		if !pad.Full() {
			s.notify(NoticeWarning, "Incomplete Code",
				fmt.Sprintf("Please enter all %d digits.", pad.Max()), 2*time.Second)
			return
		}
		if s.deps.Lockout.IsLocked(LockoutConfiguration) {
			pad.Clear()
			left := s.deps.Lockout.TimeRemaining(LockoutConfiguration)
			s.notify(NoticeError, "Configuration Locked",
				fmt.Sprintf("Try again in %s.", session.FormatDuration(left)), 0)
			return
		}
		submit()
	default:
		pad.Press(in)
	}
}

func (s *ConfigurationScreen) submitPIN() {
	pin := s.pin.Value()
	s.pin.Clear()
	if !s.matcher.Match(pin) {
		s.rejected("admin_pin")
		return
	}
	if s.totp.Required() {
		s.phase = ConfigTOTP
		s.notify(NoticeInfo, "Second Factor", "Enter the 6-digit code from your authenticator.", 0)
		return
	}
	s.unlock()
}

func (s *ConfigurationScreen) submitTOTP() {
	code := s.code.Value()
	s.code.Clear()
	if err := s.totp.Validate(code); err != nil {
		s.rejected("totp")
		return
	}
	s.unlock()
}

func (s *ConfigurationScreen) rejected(factor string) {
	rec, err := s.deps.Lockout.RecordFailure(LockoutConfiguration)
	s.audit(security.AuditEvent{
		EventType: security.EventConfigAccess,
		Severity:  security.SeverityWarning,
		Error:     security.ErrInvalidCredential.Error(),
		Metadata:  map[string]string{"factor": factor, "attempt_number": strconv.Itoa(rec.Count)},
	})
	if rec.Locked || errors.Is(err, security.ErrLocked) {
		s.notify(NoticeError, "Configuration Locked", "Too many failed attempts.", 0)
		s.goHome()
		return
	}
	s.phase = ConfigPIN
	s.notify(NoticeError, "Access Denied",
		fmt.Sprintf("Invalid credentials. %d attempts remaining.", s.deps.Lockout.Remaining(LockoutConfiguration)), 3*time.Second)
}

func (s *ConfigurationScreen) unlock() {
	if err := s.deps.Lockout.RecordSuccess(LockoutConfiguration); err != nil {
		s.rejected("locked")
		return
	}
	s.phase = ConfigUnlocked
	s.audit(security.AuditEvent{
		EventType: security.EventConfigAccess,
		Severity:  security.SeverityWarning,
		Success:   true,
		Metadata:  map[string]string{"totp": strconv.FormatBool(s.totp.Required())},
	})
	s.selectView(ViewInfo)
}

func (s *ConfigurationScreen) handleUnlocked(in Input) {
	switch in {
	case InputTheme:
		theme := s.deps.Prefs.ToggleTheme()
		s.logUserAction("theme_toggled", map[string]string{"theme": theme})
		s.selectView(s.view)
	case InputEnter:
		s.selectView(s.view)
	case InputClear:
		if s.view == ViewLockouts {
			s.releaseLockouts()
		}
	default:
		if d, ok := in.Digit(); ok {
			v := ConfigView(d - '0')
			if _, known := configViewNames[v]; known {
				s.selectView(v)
			}
		}
	}
}

func (s *ConfigurationScreen) selectView(v ConfigView) {
	s.view = v
	s.logUserAction("view_selected", map[string]string{"view": configViewNames[v]})
	switch v {
	case ViewInfo:
		s.lines = s.infoLines()
	case ViewJournal:
		s.lines = s.journalLines()
	case ViewStats:
		s.lines = s.statsLines()
	case ViewIntegrity:
		s.lines = s.integrityLines()
	case ViewLockouts:
		s.lines = s.lockoutLines()
	}
}

func (s *ConfigurationScreen) infoLines() []string {
	cfg := s.deps.cfg()
	keys := len(cfg.Cabinet.Keys)
	return []string{
		fmt.Sprintf("Site:            %s", cfg.Kiosk.SiteName),
		fmt.Sprintf("Application:     %s %s", cfg.Kiosk.AppName, cfg.Kiosk.Version),
		fmt.Sprintf("Cabinet slots:   %d (%d standard)", keys, len(cfg.Cabinet.StandardSlots)),
		fmt.Sprintf("Configured users: %d", len(cfg.Security.Users)),
		fmt.Sprintf("Session timeout: %s", cfg.SessionTimeout()),
		fmt.Sprintf("PIN attempts:    %d", cfg.Security.MaxPINAttempts),
		fmt.Sprintf("Unlisted policy: %s", cfg.Navigation.UnlistedPolicy),
		fmt.Sprintf("Theme:           %s", s.deps.Prefs.Theme),
		fmt.Sprintf("Audit sink:      %s", s.auditHealth()),
	}
}

func (s *ConfigurationScreen) auditHealth() string {
	n := s.deps.Audit.FailureCount()
	if n == 0 {
		return "healthy"
	}
	return fmt.Sprintf("%d consecutive failures (last: %v)", n, s.deps.Audit.LastFailure())
}

func (s *ConfigurationScreen) journalLines() []string {
	if s.deps.Journal == nil {
		return []string{"Audit journal disabled"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := s.deps.Journal.Recent(ctx, journalViewLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("read audit journal")
		return []string{"Journal unavailable: " + err.Error()}
	}
	if len(events) == 0 {
		return []string{"No audit events recorded"}
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		status := "ok"
		if !ev.Success {
			status = "FAIL"
		}
		lines = append(lines, fmt.Sprintf("%s %-18s %-8s %-4s %s",
			ev.Timestamp.Format("15:04:05"), ev.EventType, ev.Severity, status, ev.Metadata["action"]))
	}
	return lines
}

func (s *ConfigurationScreen) statsLines() []string {
	st := s.deps.Manager.Stats()
	lines := []string{
		fmt.Sprintf("Navigations: %d", st.TotalNavigations),
		fmt.Sprintf("Current:     %s", st.CurrentScreen),
		fmt.Sprintf("Screens:     %d", st.TotalScreens),
	}
	names := make([]string, 0, len(st.ScreenVisits))
	for name := range st.ScreenVisits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %-18s %d", name, st.ScreenVisits[name]))
	}
	return lines
}

func (s *ConfigurationScreen) integrityLines() []string {
	var lines []string
	err := s.deps.Manager.ValidateIntegrity()
	var ierr *navigation.IntegrityError
	switch {
	case err == nil:
		lines = append(lines, "Integrity check passed")
	case errors.As(err, &ierr):
		s.audit(security.AuditEvent{
			EventType: security.EventIntegrityViolation,
			Severity:  security.SeverityCritical,
			Error:     err.Error(),
			Metadata:  map[string]string{"issues": strconv.Itoa(len(ierr.Issues))},
		})
		lines = append(lines, "Integrity check FAILED")
		for _, issue := range ierr.Issues {
			lines = append(lines, "  "+issue)
		}
	default:
		lines = append(lines, "Integrity check error: "+err.Error())
	}
	lines = append(lines, s.journalIntegrity()...)

	lines = append(lines, "")
	for _, h := range s.deps.Manager.Hierarchy() {
		dests := "(any)"
		if h.AllowedDestinations != nil {
			dests = strings.Join(h.AllowedDestinations, ", ")
		}
		lines = append(lines, fmt.Sprintf("%-18s -> %s", h.Screen, dests))
	}
	return lines
}

func (s *ConfigurationScreen) lockoutLines() []string {
	locked := s.deps.Lockout.LockedIdentifiers()
	if len(locked) == 0 {
		return []string{"No active lockouts"}
	}
	lines := make([]string, 0, len(locked)+1)
	for _, id := range locked {
		lines = append(lines, fmt.Sprintf("%-18s %s remaining", id,
			session.FormatDuration(s.deps.Lockout.TimeRemaining(id))))
	}
	return append(lines, "Press Clear to release all lockouts")
}

func (s *ConfigurationScreen) releaseLockouts() {
	for _, id := range s.deps.Lockout.LockedIdentifiers() {
		if err := s.deps.Lockout.Unlock(id); err != nil {
			s.log.Warn().Err(err).Msg("release lockout")
			continue
		}
		s.logUserAction("lockout_released", map[string]string{"identifier": id})
	}
	s.notify(NoticeSuccess, "Lockouts Released", "All active lockouts were cleared.", 0)
	s.selectView(ViewLockouts)
}

// View implements Screen.
func (s *ConfigurationScreen) View() View {
	switch s.phase {
	case ConfigPIN:
		return View{
			Title:      "Configuration",
			Subtitle:   "Administrator PIN required",
			Entry:      s.pin.Display(),
			EntryLabel: "Admin PIN",
			Progress:   -1,
			Actions:    keypadActions(Action{Input: InputBack, Label: "Home"}),
		}
	case ConfigTOTP:
		return View{
			Title:      "Configuration",
			Subtitle:   "Authenticator code required",
			Entry:      s.code.Display(),
			EntryLabel: "Code",
			Progress:   -1,
			Actions:    keypadActions(Action{Input: InputBack, Label: "Home"}),
		}
	}

	views := make([]ConfigView, 0, len(configViewNames))
	for v := range configViewNames {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i] < views[j] })
	actions := make([]Action, 0, len(views)+3)
	for _, v := range views {
		actions = append(actions, Action{Input: DigitInput(int(v)), Label: configViewNames[v]})
	}
	actions = append(actions,
		Action{Input: InputTheme, Label: "Toggle theme"},
		Action{Input: InputEnter, Label: "Refresh"},
		Action{Input: InputBack, Label: "Home"},
	)
	return View{
		Title:    "Configuration",
		Subtitle: configViewNames[s.view],
		Lines:    append([]string(nil), s.lines...),
		Progress: -1,
		Actions:  actions,
	}
}

// journalIntegrity reports the audit journal seal check when the journal
// supports it.
func (s *ConfigurationScreen) journalIntegrity() []string {
	v, ok := s.deps.Journal.(JournalVerifier)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := v.Verify(ctx)
	if err != nil {
		s.audit(security.AuditEvent{
			EventType: security.EventIntegrityViolation,
			Severity:  security.SeverityCritical,
			Error:     err.Error(),
			Metadata:  map[string]string{"component": "journal", "checked": strconv.Itoa(n)},
		})
		return []string{"Audit journal FAILED: " + err.Error()}
	}
	return []string{fmt.Sprintf("Audit journal intact (%d events sealed)", n)}
}
