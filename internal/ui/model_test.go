// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/kiosk"
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/screens"
	"github.com/jeranaias/keycabinet/internal/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

type driver struct {
	t   *testing.T
	m   Model
	app *kiosk.App
	clk *fakeClock
}

func newDriver(t *testing.T, edit func(*config.Config)) *driver {
	t.Helper()
	cfg := config.Default()
	cfg.UI.Theme = "dark"
	if edit != nil {
		edit(cfg)
	}
	clk := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	app, err := kiosk.New(context.Background(), config.NewStore("", cfg), kiosk.WithClock(clk.now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	d := &driver{t: t, app: app, clk: clk, m: New(app, WithClock(clk.now))}
	d.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return d
}

func (d *driver) send(msg tea.Msg) tea.Cmd {
	next, cmd := d.m.Update(msg)
	d.m = next.(Model)
	return cmd
}

func (d *driver) keys(s string) {
	for _, r := range s {
		d.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func (d *driver) enter() { d.send(tea.KeyMsg{Type: tea.KeyEnter}) }

func (d *driver) tick(dt time.Duration) {
	d.clk.t = d.clk.t.Add(dt)
	d.send(session.TickMsg{Time: d.clk.t})
}

func (d *driver) login() {
	d.t.Helper()
	d.keys("sc")
	d.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	d.tick(3 * time.Second)
	d.tick(1500 * time.Millisecond)
	require.Equal(d.t, navigation.ScreenPINEntry, d.app.CurrentScreen())
	d.keys("12345")
	d.enter()
	require.Equal(d.t, navigation.ScreenActivityCode, d.app.CurrentScreen())
}

func TestKeyMap_Input(t *testing.T) {
	k := DefaultKeyMap()
	tests := []struct {
		msg  tea.KeyMsg
		want screens.Input
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("7")}, "7"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}, screens.InputStart},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")}, screens.InputEmergency},
		{tea.KeyMsg{Type: tea.KeyEnter}, screens.InputEnter},
		{tea.KeyMsg{Type: tea.KeyEsc}, screens.InputBack},
		{tea.KeyMsg{Type: tea.KeyBackspace}, screens.InputClear},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, screens.InputScan},
	}
	for _, tt := range tests {
		got, ok := k.Input(tt.msg)
		require.True(t, ok, tt.msg.String())
		assert.Equal(t, tt.want, got, tt.msg.String())
	}

	_, ok := k.Input(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("z")})
	assert.False(t, ok)

	assert.Equal(t, "esc", k.Label(screens.InputBack))
	assert.Equal(t, "3", k.Label("3"))
}

func TestModel_InitSchedulesTick(t *testing.T) {
	d := newDriver(t, nil)
	assert.NotNil(t, d.m.Init())
}

func TestModel_CardLogin(t *testing.T) {
	d := newDriver(t, nil)
	assert.Contains(t, d.m.View(), "Key Cabinet")

	d.keys("s")
	assert.Equal(t, navigation.ScreenAuthSelection, d.app.CurrentScreen())
	d.keys("c")
	assert.Equal(t, navigation.ScreenCardScan, d.app.CurrentScreen())

	cmd := d.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.NotNil(t, cmd, "spinner starts with the scan")
	assert.Contains(t, d.m.View(), "Scanning")

	d.tick(3 * time.Second)
	d.tick(1500 * time.Millisecond)
	require.Equal(t, navigation.ScreenPINEntry, d.app.CurrentScreen())

	d.keys("12345")
	d.enter()
	assert.Equal(t, navigation.ScreenActivityCode, d.app.CurrentScreen())
	assert.Contains(t, d.m.View(), "Card User")
}

func TestModel_TimeoutOverlay(t *testing.T) {
	d := newDriver(t, func(c *config.Config) {
		c.Session.TimeoutMinutes = 2
		c.Session.InactivityWarningMinutes = 1
	})
	d.login()

	d.tick(time.Minute)
	assert.True(t, d.m.overlay.IsVisible())
	assert.Contains(t, d.m.View(), "Session Timeout Warning")

	d.tick(10 * time.Second)
	assert.Equal(t, 50*time.Second, d.m.overlay.TimeRemaining())

	d.keys("1")
	assert.False(t, d.m.overlay.IsVisible())

	d.tick(2 * time.Minute)
	assert.Equal(t, navigation.ScreenMainIdle, d.app.CurrentScreen())
	assert.False(t, d.m.overlay.IsVisible())
}

func TestModel_ThemeToggle(t *testing.T) {
	d := newDriver(t, nil)
	assert.Equal(t, "dark", d.m.theme.Mode)

	d.keys("t")
	assert.Equal(t, "light", d.app.Theme())
	assert.Equal(t, "light", d.m.theme.Mode)
}

func TestModel_DismissAndHelp(t *testing.T) {
	d := newDriver(t, nil)
	d.keys("t")
	require.Len(t, d.app.Notices(), 1)
	d.keys("n")
	assert.Empty(t, d.app.Notices())

	d.keys("?")
	assert.True(t, d.m.help.ShowAll)
	assert.Contains(t, d.m.View(), "emergency")
}

func TestModel_ConfigReload(t *testing.T) {
	d := newDriver(t, nil)

	d.send(ConfigReloadedMsg{Err: errors.New("bad file")})
	assert.Equal(t, "Main Facility", d.app.Config().Kiosk.SiteName)

	next := d.app.Config().Clone()
	next.Kiosk.SiteName = "Annex"
	d.send(ConfigReloadedMsg{Config: next})
	assert.Equal(t, "Annex", d.app.Config().Kiosk.SiteName)
	assert.Contains(t, d.m.View(), "Annex")
}

func TestModel_Quit(t *testing.T) {
	d := newDriver(t, nil)
	cmd := d.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, d.m.View())
}
