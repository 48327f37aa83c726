// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"testing"
	"time"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLockout(maxAttempts int, d time.Duration) (*LockoutManager, *testClock, *memorySink) {
	clock := &testClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	sink := &memorySink{}
	audit := NewAuditLogger(WithAuditSink(sink), WithAuditClock(clock.Now))
	lm := NewLockoutManager(
		WithMaxAttempts(maxAttempts),
		WithLockoutDuration(d),
		WithAuditLogger(audit),
		WithLockoutClock(clock.Now),
	)
	return lm, clock, sink
}

// TestLockoutAfterMaxFailures tests that the limit locks the identifier.
func TestLockoutAfterMaxFailures(t *testing.T) {
	lm, _, sink := newTestLockout(3, time.Minute)

	for i := 1; i <= 2; i++ {
		rec, err := lm.RecordFailure("emergency")
		if err != nil {
			t.Fatalf("failure %d: unexpected error %v", i, err)
		}
		if rec.Locked {
			t.Fatalf("failure %d: locked too early", i)
		}
		if got := lm.Remaining("emergency"); got != 3-i {
			t.Errorf("Remaining after %d failures = %d, want %d", i, got, 3-i)
		}
	}

	rec, err := lm.RecordFailure("emergency")
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if !rec.Locked {
		t.Fatal("expected lock after third failure")
	}
	if !lm.IsLocked("emergency") {
		t.Error("IsLocked = false, want true")
	}
	if lm.Remaining("emergency") != 0 {
		t.Error("Remaining should be 0 while locked")
	}
	if sink.count(EventAuthLockout) != 1 {
		t.Errorf("expected one %s event, got %d", EventAuthLockout, sink.count(EventAuthLockout))
	}
}

// TestLockedRejectsAttempts tests that locked identifiers are not counted.
func TestLockedRejectsAttempts(t *testing.T) {
	lm, _, _ := newTestLockout(1, time.Minute)
	_, _ = lm.RecordFailure("emergency")

	if _, err := lm.RecordFailure("emergency"); !errors.Is(err, ErrLocked) {
		t.Errorf("RecordFailure while locked = %v, want ErrLocked", err)
	}
	if err := lm.RecordSuccess("emergency"); !errors.Is(err, ErrLocked) {
		t.Errorf("RecordSuccess while locked = %v, want ErrLocked", err)
	}
}

// TestLockoutExpires tests that the lock lifts after the duration.
func TestLockoutExpires(t *testing.T) {
	lm, clock, _ := newTestLockout(1, 5*time.Minute)
	_, _ = lm.RecordFailure("emergency")

	clock.Advance(4 * time.Minute)
	if got := lm.TimeRemaining("emergency"); got != time.Minute {
		t.Errorf("TimeRemaining = %v, want 1m", got)
	}

	clock.Advance(time.Minute)
	if lm.IsLocked("emergency") {
		t.Error("lock should have expired")
	}
	released := lm.Sweep()
	if len(released) != 1 || released[0] != "emergency" {
		t.Errorf("Sweep released %v, want [emergency]", released)
	}
	if lm.Remaining("emergency") != 1 {
		t.Errorf("Remaining after expiry = %d, want 1", lm.Remaining("emergency"))
	}
}

// TestSuccessResetsCounter tests that a correct secret clears failures.
func TestSuccessResetsCounter(t *testing.T) {
	lm, _, _ := newTestLockout(3, time.Minute)
	_, _ = lm.RecordFailure("admin")
	_, _ = lm.RecordFailure("admin")

	if err := lm.RecordSuccess("admin"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if got := lm.Remaining("admin"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
}

// TestManualUnlock tests administrator release.
func TestManualUnlock(t *testing.T) {
	lm, _, _ := newTestLockout(1, time.Hour)

	if err := lm.Unlock("nobody"); err == nil {
		t.Error("Unlock of unknown identifier should fail")
	}

	_, _ = lm.RecordFailure("emergency")
	if got := lm.LockedIdentifiers(); len(got) != 1 {
		t.Fatalf("LockedIdentifiers = %v", got)
	}
	if err := lm.Unlock("emergency"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if lm.IsLocked("emergency") {
		t.Error("still locked after Unlock")
	}
	if err := lm.Unlock("emergency"); err == nil {
		t.Error("second Unlock should fail")
	}
}

// TestLockoutMasksIdentifier tests that raw identifiers never reach the audit trail.
func TestLockoutMasksIdentifier(t *testing.T) {
	lm, _, sink := newTestLockout(1, time.Minute)
	_, _ = lm.RecordFailure("Card User")

	for _, ev := range sink.events {
		if ev.Metadata["identifier"] == "Card User" {
			t.Fatalf("identifier logged in clear: %+v", ev)
		}
	}
}
