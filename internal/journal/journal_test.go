// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/keycabinet/internal/security"
)

func openTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := Open(context.Background(), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(i int, typ, session string) security.AuditEvent {
	return security.AuditEvent{
		ID:        fmt.Sprintf("ev-%03d", i),
		Timestamp: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		EventType: typ,
		Severity:  security.SeverityInfo,
		SessionID: session,
		Success:   true,
		Metadata:  map[string]string{"n": fmt.Sprint(i)},
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, event(i, security.EventNavigation, "")))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-002", got[0].ID)
	assert.Equal(t, "ev-001", got[1].ID)
	assert.Equal(t, "2", got[0].Metadata["n"])
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 2, 0, time.UTC), got[0].Timestamp)
	assert.True(t, got[0].Success)
}

func TestStore_PrunesOldest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 5)

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Append(ctx, event(i, security.EventNavigation, "")))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "ev-003", got[len(got)-1].ID)
}

func TestStore_BySessionAndCounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0)

	require.NoError(t, s.Append(ctx, event(1, security.EventSessionStart, "alice_1")))
	require.NoError(t, s.Append(ctx, event(2, security.EventKeyRemoved, "alice_1")))
	require.NoError(t, s.Append(ctx, event(3, security.EventSessionStart, "bob_1")))

	got, err := s.BySession(ctx, "alice_1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, security.EventSessionStart, got[0].EventType)

	counts, err := s.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[security.EventSessionStart])
	assert.Equal(t, 1, counts[security.EventKeyRemoved])
}

func TestStore_IndependentInstances(t *testing.T) {
	ctx := context.Background()
	a := openTestStore(t, 0)
	b := openTestStore(t, 0)

	require.NoError(t, a.Append(ctx, event(1, security.EventNavigation, "")))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_AsAuditSink(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0)
	audit := security.NewAuditLogger(security.WithAuditSink(s))

	require.NoError(t, audit.LogEvent(security.EventConfigAccess, "", true, map[string]string{"pin": "00000"}))

	got, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "[REDACTED]", got[0].Metadata["pin"])
}

func TestStore_VerifyIntactChain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 4)

	n, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.Append(ctx, event(i, security.EventNavigation, "")))
	}
	n, err = s.Verify(ctx)
	require.NoError(t, err, "pruning keeps the retained chain verifiable")
	assert.Equal(t, 4, n)
	assert.Len(t, s.Fingerprint(), 8)
}

func TestStore_VerifyDetectsEdit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, event(i, security.EventAuthFailure, "")))
	}

	_, err := s.db.ExecContext(ctx, `UPDATE audit_events SET success = 1 - success WHERE id = 'ev-001'`)
	require.NoError(t, err)

	n, err := s.Verify(ctx)
	assert.ErrorIs(t, err, ErrTampered)
	assert.ErrorContains(t, err, "ev-001")
	assert.Equal(t, 1, n)
}

func TestStore_VerifyDetectsDeletion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, event(i, security.EventKeyRemoved, "")))
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE id = 'ev-001'`)
	require.NoError(t, err)
	_, err = s.Verify(ctx)
	assert.ErrorIs(t, err, ErrTampered)

	s2 := openTestStore(t, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, s2.Append(ctx, event(i, security.EventKeyRemoved, "")))
	}
	_, err = s2.db.ExecContext(ctx, `DELETE FROM audit_events WHERE id = 'ev-002'`)
	require.NoError(t, err)
	_, err = s2.Verify(ctx)
	assert.ErrorContains(t, err, "newest events missing")
}
