// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/kiosk"
	"github.com/jeranaias/keycabinet/internal/session"
	"github.com/jeranaias/keycabinet/internal/ui/components"
	"github.com/jeranaias/keycabinet/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ConfigReloadedMsg carries the result of a configuration file reload.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the kiosk terminal.
type Model struct {
	app    *kiosk.App
	keys   KeyMap
	help   help.Model
	theme  *styles.Theme
	header *components.Header
	status *components.StatusBar

	spinner components.Spinner
	scan    components.ScanBar
	overlay components.TimeoutOverlay

	now      func() time.Time
	logger   zerolog.Logger
	width    int
	height   int
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithClock replaces time.Now for the header clock.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for reload failures.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New returns a model driving app. An "auto" theme is resolved against the
// terminal once, here.
func New(app *kiosk.App, opts ...Option) Model {
	app.SetTheme(styles.Resolve(app.Theme()))
	theme := styles.NewTheme(app.Theme())

	m := Model{
		app:     app,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		theme:   theme,
		header:  components.NewHeader(theme),
		status:  components.NewStatusBar(theme),
		spinner: components.NewSpinner(),
		scan:    components.NewScanBar(40),
		overlay: components.NewTimeoutOverlay(),
		now:     time.Now,
		logger:  zerolog.Nop(),
		width:   80,
		height:  24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		session.TickCmd(m.app.Config().TickInterval()),
		tea.SetWindowTitle(m.app.Config().Kiosk.AppName),
	)
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.overlay.SetSize(msg.Width, msg.Height)
		m.scan.SetWidth(min(msg.Width-10, 60))
		m.help.Width = msg.Width
		return m, nil

	case session.TickMsg:
		res := m.app.Tick(msg.Time)
		m.syncOverlay(res)
		return m, tea.Batch(m.syncSpinner(), session.TickCmd(m.app.Config().TickInterval()))

	case ConfigReloadedMsg:
		if msg.Err != nil {
			m.logger.Warn().Err(msg.Err).Msg("configuration reload rejected")
			return m, nil
		}
		if err := m.app.ApplyConfig(msg.Config); err != nil {
			m.logger.Warn().Err(err).Msg("configuration apply failed")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		m.app.DismissNotice()
		return m, nil
	}

	if m.overlay.IsVisible() {
		m.overlay.Hide()
	}
	in, ok := m.keys.Input(msg)
	if !ok {
		return m, nil
	}
	before := m.app.Theme()
	m.app.Press(in)
	if m.app.Theme() != before {
		m.applyTheme(m.app.Theme())
	}
	if !m.app.Status().Active {
		m.overlay.Hide()
	}
	return m, m.syncSpinner()
}

// syncOverlay follows the session clock: shown on the warning, counting
// down while open, hidden once the session is gone.
func (m *Model) syncOverlay(res kiosk.TickResult) {
	st := m.app.Status()
	switch {
	case !st.Active:
		m.overlay.Hide()
	case res.SessionWarned:
		m.overlay.Show(st.Remaining)
	case m.overlay.IsVisible():
		m.overlay.UpdateTime(st.Remaining)
	}
}

func (m *Model) syncSpinner() tea.Cmd {
	if m.app.View().Busy {
		return m.spinner.Start()
	}
	m.spinner.Stop()
	return nil
}

func (m *Model) applyTheme(mode string) {
	m.theme = styles.NewTheme(mode)
	m.theme.SetSize(m.width, m.height)
	m.header.SetTheme(m.theme)
	m.status.SetTheme(m.theme)
}
