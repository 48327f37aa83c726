// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal keeps the audit trail in an in-memory SQLite database so
// the configuration screen can page and count recent events. Nothing is
// written to disk; the journal is lost on restart.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/keycabinet/internal/security"
)

// DefaultMaxEntries bounds the number of retained events.
const DefaultMaxEntries = 1000

var journalSeq atomic.Int64

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	ts          INTEGER NOT NULL,
	event_type  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	user_name   TEXT NOT NULL DEFAULT '',
	screen      TEXT NOT NULL DEFAULT '',
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	prev_mac    TEXT NOT NULL DEFAULT '',
	mac         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_session ON audit_events(session_id);
`

// Store is an in-memory audit journal. It implements security.Sink.
// Every row is sealed with an HMAC over its content and the previous
// row's seal; see Verify.
type Store struct {
	db         *sql.DB
	maxEntries int

	mu      sync.Mutex
	key     []byte
	lastMAC string
}

// Open creates an empty journal retaining at most maxEntries events.
func Open(ctx context.Context, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	// A named shared-cache memory database survives across pooled
	// connections; each Store gets its own name.
	dsn := fmt.Sprintf("file:journal%d?mode=memory&cache=shared", journalSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	key, err := newChainKey()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, maxEntries: maxEntries, key: key}, nil
}

// Close releases the database. The journal contents are discarded.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	zeroBytes(s.key)
	s.mu.Unlock()
	return s.db.Close()
}

// Append stores ev and prunes the oldest events beyond the retention limit.
func (s *Store) Append(ctx context.Context, ev security.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	md, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	r := row{
		ID: ev.ID, TS: toMillis(ev.Timestamp), EventType: ev.EventType, Severity: string(ev.Severity),
		SessionID: ev.SessionID, User: ev.User, Screen: ev.Screen, Success: boolToInt(ev.Success),
		Error: ev.Error, Metadata: string(md),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mac, err := r.seal(s.key, s.lastMAC)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, ts, event_type, severity, session_id, user_name, screen, success, error, metadata, prev_mac, mac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TS, r.EventType, r.Severity, r.SessionID, r.User, r.Screen, r.Success, r.Error, r.Metadata,
		s.lastMAC, mac,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	s.lastMAC = mac

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM audit_events
		WHERE seq <= (SELECT MAX(seq) FROM audit_events) - ?`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]security.AuditEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `
		SELECT id, ts, event_type, severity, session_id, user_name, screen, success, error, metadata
		FROM audit_events ORDER BY seq DESC LIMIT ?`, limit)
}

// BySession returns the events of one session in insertion order.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]security.AuditEvent, error) {
	return s.query(ctx, `
		SELECT id, ts, event_type, severity, session_id, user_name, screen, success, error, metadata
		FROM audit_events WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

// Count returns the number of retained events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

// CountByType returns retained event counts keyed by event type.
func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM audit_events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]security.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []security.AuditEvent
	for rows.Next() {
		var (
			ev       security.AuditEvent
			ts       int64
			severity string
			success  int
			md       string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.EventType, &severity, &ev.SessionID, &ev.User, &ev.Screen, &success, &ev.Error, &md); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Timestamp = fromMillis(ts)
		ev.Severity = security.Severity(severity)
		ev.Success = success != 0
		if md != "" && md != "null" {
			if err := json.Unmarshal([]byte(md), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
