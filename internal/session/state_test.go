// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestState(t *testing.T, opts ...Option) (*State, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewState(opts...), clock
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestNewState_NoSession(t *testing.T) {
	s, _ := newTestState(t)

	assert.False(t, s.Active())
	assert.Empty(t, s.SessionID())
	assert.Empty(t, s.AccessibleKeys())
	assert.True(t, s.IsExpired(), "no session counts as expired")

	_, ok := s.CurrentUser()
	assert.False(t, ok)
}

func TestStartSession_SetsIdentityAndID(t *testing.T) {
	s, _ := newTestState(t)

	require.NoError(t, s.StartSession(Identity{User: "alice", Role: RoleStandard}, MethodCard))

	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, MethodCard, s.Method())
	assert.Equal(t, "alice_20250314_092653", s.SessionID())
	assert.False(t, s.LoginTime().IsZero())
	assert.False(t, s.IsExpired())
}

func TestStartSession_StandardRoleGetsRestrictedSet(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice", Role: RoleStandard}, MethodCard))

	keys := s.AccessibleKeys()
	require.Len(t, keys, 3)
	assert.Equal(t, []int{1, 5, 4}, slots(keys))
	for _, k := range keys {
		assert.Equal(t, KeyAvailable, k.Status)
	}
}

func TestStartSession_PrivilegedRolesGetFullCabinet(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleSupervisor, RoleManager} {
		t.Run(string(role), func(t *testing.T) {
			s, _ := newTestState(t)
			require.NoError(t, s.StartSession(Identity{User: "bob_admin", Role: role}, MethodCard))
			assert.Len(t, s.AccessibleKeys(), 8)
		})
	}
}

func TestStartSession_RoleNotParsedFromName(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "bob_admin", Role: RoleStandard}, MethodCard))
	assert.Len(t, s.AccessibleKeys(), 3, "a name containing admin must not grant the full cabinet")
}

func TestStartSession_RejectsWhileActive(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
	firstID := s.SessionID()

	err := s.StartSession(Identity{User: "mallory"}, MethodBiometric)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionActive))

	user, _ := s.CurrentUser()
	assert.Equal(t, "alice", user, "prior session must survive")
	assert.Equal(t, firstID, s.SessionID())
}

func TestStartSession_EmptyUser(t *testing.T) {
	s, _ := newTestState(t)
	assert.Error(t, s.StartSession(Identity{}, MethodCard))
	assert.False(t, s.Active())
}

func TestStartSession_ResetsFailedAttempts(t *testing.T) {
	s, _ := newTestState(t)
	s.RecordFailedAttempt()
	s.RecordFailedAttempt()
	require.Equal(t, 2, s.FailedAttempts())

	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
	assert.Zero(t, s.FailedAttempts())
}

func TestStartSession_UnknownMethod(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, AuthMethod("retina")))
	assert.Equal(t, MethodUnknown, s.Method())
}

func TestEndSession_ImmediatelyAfterStart(t *testing.T) {
	s, clock := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
	clock.Advance(90 * time.Second)

	summary, err := s.EndSession()
	require.NoError(t, err)

	assert.Equal(t, "alice_20250314_092653", summary.SessionID)
	assert.Equal(t, "alice", summary.User)
	assert.Equal(t, MethodCard, summary.Method)
	assert.Equal(t, 90*time.Second, summary.Duration)
	assert.Zero(t, summary.KeysRemoved)
	assert.Zero(t, summary.KeysReturned)
	assert.False(t, s.Active())
	assert.Empty(t, s.SessionID())
	assert.Empty(t, s.AccessibleKeys())
}

func TestEndSession_WithoutSession(t *testing.T) {
	s, _ := newTestState(t)
	_, err := s.EndSession()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEndSession_SummarySurvivesReset(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
	require.True(t, s.RemoveKey(5))

	summary, err := s.EndSession()
	require.NoError(t, err)

	assert.Empty(t, s.RemovedKeys(), "internal trail is cleared")
	require.Len(t, summary.RemovedKeys, 1)
	assert.Equal(t, "Conference Room 1", summary.RemovedKeys[0].Name)
	assert.Equal(t, []int{5}, summary.Outstanding())
}

// =============================================================================
// KEY CHECKOUT TESTS
// =============================================================================

func TestRemoveThenReturn(t *testing.T) {
	s, clock := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))

	require.True(t, s.RemoveKey(4))
	status, ok := s.KeyStatusFor(4)
	require.True(t, ok)
	assert.Equal(t, KeyRemoved, status)

	clock.Advance(time.Minute)
	require.True(t, s.ReturnKey(4))
	status, _ = s.KeyStatusFor(4)
	assert.Equal(t, KeyAvailable, status)

	removed := s.RemovedKeys()
	returned := s.ReturnedKeys()
	require.Len(t, removed, 1)
	require.Len(t, returned, 1)
	assert.Equal(t, 4, removed[0].Slot)
	assert.Equal(t, 4, returned[0].Slot)
	assert.True(t, removed[0].Timestamp.Before(returned[0].Timestamp))
	assert.Equal(t, s.SessionID(), removed[0].SessionID)
}

func TestRemoveKey_AlreadyRemoved(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))

	require.True(t, s.RemoveKey(1))
	assert.False(t, s.RemoveKey(1))
	assert.Len(t, s.RemovedKeys(), 1, "no duplicate audit entry")
}

func TestRemoveKey_InaccessibleSlot(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))

	assert.False(t, s.RemoveKey(2), "slot 2 is not in the standard set")
	assert.False(t, s.RemoveKey(99))
	assert.Empty(t, s.RemovedKeys())
}

func TestReturnKey_RequiresRemoved(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
	assert.False(t, s.ReturnKey(1))
	assert.Empty(t, s.ReturnedKeys())
}

func TestKeyOps_WithoutSession(t *testing.T) {
	s, _ := newTestState(t)
	assert.False(t, s.RemoveKey(1))
	assert.False(t, s.ReturnKey(1))
}

func TestStatusMatchesTrail(t *testing.T) {
	s, _ := newTestState(t)
	require.NoError(t, s.StartSession(Identity{User: "root", Role: RoleAdmin}, MethodBiometric))

	for _, slot := range []int{2, 3, 2} {
		s.RemoveKey(slot)
		s.ReturnKey(slot)
	}
	s.RemoveKey(7)

	// A key is removed iff its last trail entry is a removal.
	outstanding := map[int]bool{}
	for _, ev := range s.RemovedKeys() {
		outstanding[ev.Slot] = true
	}
	for _, ev := range s.ReturnedKeys() {
		outstanding[ev.Slot] = false
	}
	for _, k := range s.AccessibleKeys() {
		assert.Equal(t, outstanding[k.Slot], k.Status == KeyRemoved, "slot %d", k.Slot)
	}
}

// =============================================================================
// ACTIVITY CODE TESTS
// =============================================================================

func TestSetActivityCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"123", false},
		{"12345678", false},
		{"12", true},
		{"123456789", true},
		{"12a4", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s, _ := newTestState(t)
			require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))
			err := s.SetActivityCode(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidActivityCode)
				assert.Empty(t, s.ActivityCode())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.code, s.ActivityCode())
			}
		})
	}
}

func TestWithActivityCodeLength(t *testing.T) {
	s, _ := newTestState(t, WithActivityCodeLength(4, 6))
	minLen, maxLen := s.ActivityCodeBounds()
	assert.Equal(t, 4, minLen)
	assert.Equal(t, 6, maxLen)
	assert.ErrorIs(t, s.ValidateActivityCode("123"), ErrInvalidActivityCode)
	assert.NoError(t, s.ValidateActivityCode("123456"))

	inverted, _ := newTestState(t, WithActivityCodeLength(6, 4))
	minLen, maxLen = inverted.ActivityCodeBounds()
	assert.Equal(t, 3, minLen, "invalid range keeps the defaults")
	assert.Equal(t, 8, maxLen)
}

func TestSetActivityCode_NoSession(t *testing.T) {
	s, _ := newTestState(t)
	assert.ErrorIs(t, s.SetActivityCode("1234"), ErrNoSession)
}

// =============================================================================
// TIMEOUT TESTS
// =============================================================================

func TestIsExpired(t *testing.T) {
	s, clock := newTestState(t, WithTimeout(30*time.Minute))
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))

	clock.Advance(30 * time.Minute)
	assert.False(t, s.IsExpired(), "expiry requires exceeding the timeout")

	clock.Advance(time.Second)
	assert.True(t, s.IsExpired())
}

func TestCheck_WarnsOnceThenExpires(t *testing.T) {
	s, clock := newTestState(t, WithTimeout(30*time.Minute), WithWarningAfter(25*time.Minute))
	require.NoError(t, s.StartSession(Identity{User: "alice"}, MethodCard))

	assert.Equal(t, CheckResult{Remaining: 30 * time.Minute}, s.Check())

	clock.Advance(25 * time.Minute)
	res := s.Check()
	assert.True(t, res.Warn)
	assert.Equal(t, 5*time.Minute, res.Remaining)

	clock.Advance(time.Second)
	assert.False(t, s.Check().Warn, "warning fires once")

	clock.Advance(6 * time.Minute)
	res = s.Check()
	assert.True(t, res.Expired)
	assert.Zero(t, res.Remaining)
}

func TestCheck_NoSession(t *testing.T) {
	s, _ := newTestState(t)
	assert.Equal(t, CheckResult{}, s.Check())
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestState_ReadersNeverSeeHalfStartedSession(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			st := s.Status()
			if st.Active && st.SessionID == "" {
				t.Error("observed active session without ID")
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_ = s.StartSession(Identity{User: "alice"}, MethodCard)
		_, _ = s.EndSession()
	}
	close(stop)
	wg.Wait()
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func slots(keys []KeyRecord) []int {
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Slot)
	}
	return out
}
