// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/keycabinet/internal/session"
)

// stubScreen records hook calls and can be told to fail.
type stubScreen struct {
	name       string
	enterErr   error
	exitErr    error
	enterPanic bool
	onEnter    func()

	enters, exits, cleanups int
}

func (s *stubScreen) Name() string { return s.name }

func (s *stubScreen) OnEnter() error {
	s.enters++
	if s.enterPanic {
		panic("boom")
	}
	if s.onEnter != nil {
		s.onEnter()
	}
	return s.enterErr
}

func (s *stubScreen) OnExit() error {
	s.exits++
	return s.exitErr
}

func (s *stubScreen) Cleanup() { s.cleanups++ }

func newTestManager(t *testing.T, opts ...Option) (*Manager, map[string]*stubScreen) {
	t.Helper()
	clock := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	state := session.NewState(session.WithClock(func() time.Time { return clock }))
	m := NewManager(state, opts...)
	screens := make(map[string]*stubScreen)
	for _, name := range ScreenNames() {
		s := &stubScreen{name: name}
		screens[name] = s
		require.NoError(t, m.Register(s))
	}
	require.NoError(t, m.Start(ScreenMainIdle))
	return m, screens
}

// walk drives the manager through a legal path.
func walk(t *testing.T, m *Manager, path ...string) {
	t.Helper()
	for _, to := range path {
		require.NoError(t, m.Navigate(to, DirectionLeft), "navigate to %s", to)
	}
}

// =============================================================================
// REGISTRATION TESTS
// =============================================================================

func TestRegister_Unnamed(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.Register(&stubScreen{}), ErrUnnamedScreen)
	assert.ErrorIs(t, m.Register(nil), ErrUnnamedScreen)
	assert.Empty(t, m.Registered())
}

func TestRegister_FirstScreenBecomesActive(t *testing.T) {
	m := NewManager(nil)
	idle := &stubScreen{name: ScreenMainIdle}
	require.NoError(t, m.Register(idle))
	require.NoError(t, m.Register(&stubScreen{name: ScreenAuthSelection}))

	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
	assert.Zero(t, idle.enters, "registration runs no hooks")
}

func TestRegister_OverwriteKeepsActive(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection)

	replacement := &stubScreen{name: ScreenAuthSelection}
	require.NoError(t, m.Register(replacement))

	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
	assert.Len(t, m.Registered(), 8)
	got, _ := m.Screen(ScreenAuthSelection)
	assert.Same(t, replacement, got)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestNavigate_FullMatrix(t *testing.T) {
	rules := DefaultRules()
	for _, from := range ScreenNames() {
		for _, to := range ScreenNames() {
			m, _ := newTestManager(t)
			require.NoError(t, m.Start(from))

			want := to == ScreenMainIdle || contains(rules[from], to)
			err := m.Navigate(to, DirectionLeft)

			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, m.CurrentScreenName())
			} else {
				assert.ErrorIs(t, err, ErrNavigationRejected, "%s -> %s", from, to)
				assert.Equal(t, from, m.CurrentScreenName())
				assert.Empty(t, m.History())
			}
		}
	}
}

func TestNavigate_IdleIsUniversalSink(t *testing.T) {
	for _, from := range ScreenNames() {
		m, _ := newTestManager(t)
		require.NoError(t, m.Start(from))
		assert.NoError(t, m.Navigate(ScreenMainIdle, DirectionRight), "from %s", from)
	}
}

func TestNavigate_UnlistedPolicy(t *testing.T) {
	tests := []struct {
		policy  UnlistedPolicy
		wantErr bool
	}{
		{PolicyOpen, false},
		{PolicyClosed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			m, _ := newTestManager(t, WithGraph(NewGraph(DefaultRules(), tt.policy)))
			require.NoError(t, m.Register(&stubScreen{name: "maintenance"}))
			require.NoError(t, m.Start("maintenance"))

			err := m.Navigate(ScreenPINEntry, DirectionLeft)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNavigationRejected)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, m.Start("maintenance"))
			assert.NoError(t, m.GoHome(), "home is reachable under every policy")
		})
	}
}

func TestNavigate_UnknownScreen(t *testing.T) {
	m, _ := newTestManager(t)
	assert.ErrorIs(t, m.Navigate("nowhere", DirectionLeft), ErrUnknownScreen)
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOpen, p)

	p, err = ParsePolicy("closed")
	require.NoError(t, err)
	assert.Equal(t, PolicyClosed, p)

	_, err = ParsePolicy("ajar")
	assert.Error(t, err)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_BoundedToLimit(t *testing.T) {
	m, _ := newTestManager(t)

	var first Event
	for i := 0; i < 51; i++ {
		target := ScreenAuthSelection
		if i%2 == 1 {
			target = ScreenMainIdle
		}
		require.NoError(t, m.Navigate(target, DirectionLeft))
		if i == 0 {
			first = m.History()[0]
		}
	}

	history := m.History()
	require.Len(t, history, DefaultHistoryLimit)
	for _, ev := range history {
		assert.NotEqual(t, first.ID, ev.ID, "oldest entry must be evicted")
	}
}

func TestHistory_EveryEntryWasLegal(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	_ = m.Navigate(ScreenConfiguration, DirectionLeft)
	require.NoError(t, m.GoBack())
	require.NoError(t, m.GoHome())

	for _, ev := range m.History() {
		assert.True(t, m.Graph().Allowed(ev.From, ev.To), "%s -> %s", ev.From, ev.To)
	}
}

func TestHistory_RecordsSessionID(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.HandleAuthenticationSuccess(session.Identity{User: "alice"}, session.MethodCard))

	history := m.History()
	last := history[len(history)-1]
	assert.Equal(t, ScreenActivityCode, last.To)
	assert.Equal(t, "alice_20250314_090000", last.SessionID)
	assert.NotEmpty(t, last.ID)
}

func TestObserver_SeesCommittedNavigations(t *testing.T) {
	var seen []Event
	m, _ := newTestManager(t, WithObserver(func(ev Event) { seen = append(seen, ev) }))

	walk(t, m, ScreenAuthSelection)
	_ = m.Navigate(ScreenConfiguration, DirectionLeft)

	require.Len(t, seen, 1)
	assert.Equal(t, ScreenMainIdle, seen[0].From)
	assert.Equal(t, ScreenAuthSelection, seen[0].To)
}

// =============================================================================
// HOOK TESTS
// =============================================================================

func TestNavigate_HooksRunInOrder(t *testing.T) {
	m, screens := newTestManager(t)
	walk(t, m, ScreenAuthSelection)

	assert.Equal(t, 1, screens[ScreenMainIdle].exits)
	assert.Equal(t, 1, screens[ScreenAuthSelection].enters)
}

func TestNavigate_ExitHookFailureAborts(t *testing.T) {
	m, screens := newTestManager(t)
	screens[ScreenMainIdle].exitErr = errors.New("busy")

	err := m.Navigate(ScreenAuthSelection, DirectionLeft)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, PhaseExit, hookErr.Phase)
	assert.Equal(t, ScreenMainIdle, hookErr.Screen)
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
	assert.Empty(t, m.History())
	assert.Zero(t, screens[ScreenAuthSelection].enters)
}

func TestNavigate_EntryHookFailureRollsBack(t *testing.T) {
	m, screens := newTestManager(t)
	walk(t, m, ScreenAuthSelection)
	screens[ScreenCardScan].enterErr = errors.New("reader offline")
	before := screens[ScreenAuthSelection].enters
	backBefore := m.BackStack()

	err := m.Navigate(ScreenCardScan, DirectionLeft)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, PhaseEnter, hookErr.Phase)
	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
	assert.Len(t, m.History(), 1)
	assert.Equal(t, backBefore, m.BackStack())
	assert.Equal(t, before+1, screens[ScreenAuthSelection].enters, "previous screen is re-entered")
}

func TestNavigate_IdleAlwaysCommits(t *testing.T) {
	m, screens := newTestManager(t)
	walk(t, m, ScreenAuthSelection)
	screens[ScreenAuthSelection].exitErr = errors.New("stuck")
	screens[ScreenMainIdle].enterErr = errors.New("broken")

	require.NoError(t, m.GoHome())
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestNavigate_PanickingHook(t *testing.T) {
	m, screens := newTestManager(t)
	screens[ScreenAuthSelection].enterPanic = true

	err := m.Navigate(ScreenAuthSelection, DirectionLeft)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Contains(t, hookErr.Error(), "panic")
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestNavigate_ReentrantCallRejected(t *testing.T) {
	m, screens := newTestManager(t)
	var inner error
	screens[ScreenAuthSelection].onEnter = func() {
		inner = m.Navigate(ScreenCardScan, DirectionLeft)
	}

	require.NoError(t, m.Navigate(ScreenAuthSelection, DirectionLeft))
	assert.ErrorIs(t, inner, ErrNavigationInProgress)
	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
}

// =============================================================================
// BACK STACK TESTS
// =============================================================================

func TestGoBack_WalksStack(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)

	require.NoError(t, m.GoBack())
	assert.Equal(t, ScreenCardScan, m.CurrentScreenName())
	require.NoError(t, m.GoBack())
	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
	require.NoError(t, m.GoBack())
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
	assert.Empty(t, m.BackStack())
}

func TestGoBack_EmptyStackGoesHome(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Start(ScreenConfiguration))

	require.NoError(t, m.GoBack())
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestGoBack_HomeClearsStack(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan)
	require.NoError(t, m.GoHome())
	assert.Empty(t, m.BackStack())
}

// =============================================================================
// FLOW TESTS
// =============================================================================

func TestFlowHelpers(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.HandleEmergencyAccess())
	assert.Equal(t, ScreenEmergencyAccess, m.CurrentScreenName())
	require.NoError(t, m.GoHome())

	require.NoError(t, m.HandleConfigurationAccess())
	assert.Equal(t, ScreenConfiguration, m.CurrentScreenName())
	require.NoError(t, m.GoHome())

	require.NoError(t, m.StartAuthenticationFlow())
	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
}

func TestScenario_CardLoginJourney(t *testing.T) {
	m, _ := newTestManager(t)
	require.Equal(t, ScreenMainIdle, m.CurrentScreenName())

	assert.ErrorIs(t, m.Navigate(ScreenPINEntry, DirectionLeft), ErrNavigationRejected)
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())

	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.HandleAuthenticationSuccess(session.Identity{User: "alice", Role: session.RoleStandard}, session.MethodCard))

	st := m.State()
	assert.True(t, st.Active())
	assert.Len(t, st.AccessibleKeys(), 3)
	assert.Equal(t, ScreenActivityCode, m.CurrentScreenName())
}

func TestScenario_AdminGetsFullCabinet(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.State().StartSession(session.Identity{User: "bob_admin", Role: session.RoleAdmin}, session.MethodCard))
	assert.Len(t, m.State().AccessibleKeys(), 8)
}

func TestHandleAuthenticationSuccess_RejectsSecondSession(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.State().StartSession(session.Identity{User: "alice"}, session.MethodCard))

	err := m.HandleAuthenticationSuccess(session.Identity{User: "mallory"}, session.MethodCard)
	assert.ErrorIs(t, err, session.ErrSessionActive)
	assert.Equal(t, ScreenPINEntry, m.CurrentScreenName())
}

func TestHandleAuthenticationSuccess_NavigationFailureClosesSession(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.HandleAuthenticationSuccess(session.Identity{User: "alice"}, session.MethodCard)
	assert.ErrorIs(t, err, ErrNavigationRejected)
	assert.False(t, m.State().Active())
}

func TestHandleAuthenticationFailure_ExhaustsAndResets(t *testing.T) {
	m, _ := newTestManager(t, WithMaxAttempts(3))
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)

	for i := 1; i < 3; i++ {
		res, err := m.HandleAuthenticationFailure()
		require.NoError(t, err)
		assert.Equal(t, i, res.Attempts)
		assert.Equal(t, 3-i, res.Remaining)
		assert.False(t, res.Exhausted)
		assert.Equal(t, ScreenPINEntry, m.CurrentScreenName(), "caller stays put for retry")
	}

	res, err := m.HandleAuthenticationFailure()
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, ScreenAuthSelection, m.CurrentScreenName())
	assert.Zero(t, m.State().FailedAttempts())

	for _, ev := range m.History() {
		assert.True(t, m.Graph().Allowed(ev.From, ev.To), "%s -> %s", ev.From, ev.To)
	}
}

func TestCompleteActivitySession(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.HandleAuthenticationSuccess(session.Identity{User: "alice"}, session.MethodCard))
	require.True(t, m.State().RemoveKey(1))

	summary, err := m.CompleteActivitySession()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.KeysRemoved)
	assert.False(t, m.State().Active())
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestCompleteActivitySession_NoSessionStillGoesHome(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection)

	_, err := m.CompleteActivitySession()
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, ScreenMainIdle, m.CurrentScreenName())
}

func TestCancelActivitySession(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.HandleAuthenticationSuccess(session.Identity{User: "alice"}, session.MethodCard))

	summary, err := m.CancelActivitySession()
	require.NoError(t, err)
	assert.Equal(t, "alice", summary.User)
	assert.Equal(t, session.MethodCard, summary.Method)
	assert.NotEmpty(t, summary.SessionID)
	assert.False(t, m.State().Active())
	assert.Equal(t, ScreenPINEntry, m.CurrentScreenName())
}

func TestCancelActivitySession_RejectedMoveKeepsSession(t *testing.T) {
	m, _ := newTestManager(t, WithGraph(NewGraph(map[string][]string{
		ScreenMainIdle:      {ScreenAuthSelection},
		ScreenAuthSelection: {ScreenCardScan},
		ScreenCardScan:      {ScreenPINEntry},
		ScreenPINEntry:      {ScreenActivityCode},
		ScreenActivityCode:  {ScreenMainIdle},
	}, PolicyClosed)))
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry)
	require.NoError(t, m.HandleAuthenticationSuccess(session.Identity{User: "alice"}, session.MethodCard))

	_, err := m.CancelActivitySession()
	assert.ErrorIs(t, err, ErrNavigationRejected)
	assert.True(t, m.State().Active())
	assert.Equal(t, ScreenActivityCode, m.CurrentScreenName())
}

func TestCancelActivitySession_NoSession(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ScreenAuthSelection, ScreenCardScan, ScreenPINEntry, ScreenActivityCode)

	summary, err := m.CancelActivitySession()
	require.NoError(t, err)
	assert.Empty(t, summary.SessionID)
	assert.Equal(t, ScreenPINEntry, m.CurrentScreenName())
}

// =============================================================================
// DIAGNOSTICS TESTS
// =============================================================================

func TestValidateIntegrity(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.ValidateIntegrity())

	partial := NewManager(nil)
	require.NoError(t, partial.Register(&stubScreen{name: ScreenMainIdle}))
	err := partial.ValidateIntegrity()

	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.NotEmpty(t, integrityErr.Issues)
}

func TestStats(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Zero(t, m.Stats().TotalNavigations)

	walk(t, m, ScreenAuthSelection, ScreenMainIdle, ScreenAuthSelection)
	st := m.Stats()
	assert.Equal(t, 3, st.TotalNavigations)
	assert.Equal(t, 2, st.ScreenVisits[ScreenAuthSelection])
	assert.Equal(t, ScreenAuthSelection, st.CurrentScreen)
	assert.Equal(t, 8, st.TotalScreens)
}

func TestHierarchy(t *testing.T) {
	m, _ := newTestManager(t)
	h := m.Hierarchy()
	require.Len(t, h, 8)
	assert.Equal(t, ScreenMainIdle, h[0].Screen)
	assert.ElementsMatch(t, []string{ScreenAuthSelection, ScreenEmergencyAccess, ScreenConfiguration}, h[0].AllowedDestinations)
	assert.Contains(t, h[0].Type, "stubScreen")
}

func TestCleanup(t *testing.T) {
	m, screens := newTestManager(t)
	walk(t, m, ScreenAuthSelection)

	m.Cleanup()

	assert.Empty(t, m.History())
	assert.Empty(t, m.Registered())
	for name, s := range screens {
		assert.Equal(t, 1, s.cleanups, name)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
