// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// HMAC CHAIN
// =============================================================================

// chainKeySize is the per-journal HMAC key size in bytes.
const chainKeySize = 32

// ErrTampered is returned by Verify when a row no longer matches its seal
// or the chain linking rows is broken.
var ErrTampered = errors.New("audit journal tampered")

// row is the sealed form of one event.
type row struct {
	ID        string `json:"id"`
	TS        int64  `json:"ts"`
	EventType string `json:"event_type"`
	Severity  string `json:"severity"`
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	Screen    string `json:"screen"`
	Success   int    `json:"success"`
	Error     string `json:"error"`
	Metadata  string `json:"metadata"`
}

// seal returns HMAC-SHA256(key, prev || json(row)).
func (r row) seal(key []byte, prev string) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode audit row: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prev))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// The key lives only in memory alongside the journal it protects.
func newChainKey() ([]byte, error) {
	key := make([]byte, chainKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate journal key: %w", err)
	}
	return key, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Fingerprint identifies the chain key without revealing it.
func (s *Store) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := sha256.Sum256(s.key)
	return hex.EncodeToString(h[:4])
}

// Verify recomputes every retained seal in insertion order and returns the
// number of rows checked. The oldest retained row may link to a pruned
// predecessor; every later row must link to the row before it.
func (s *Store) Verify(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, event_type, severity, session_id, user_name, screen, success, error, metadata, prev_mac, mac
		FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return 0, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	n := 0
	prevMAC := ""
	for rows.Next() {
		var r row
		var linked, stored string
		if err := rows.Scan(&r.ID, &r.TS, &r.EventType, &r.Severity, &r.SessionID, &r.User,
			&r.Screen, &r.Success, &r.Error, &r.Metadata, &linked, &stored); err != nil {
			return n, fmt.Errorf("scan audit row: %w", err)
		}
		if n > 0 && linked != prevMAC {
			return n, fmt.Errorf("%w: event %s does not follow its predecessor", ErrTampered, r.ID)
		}
		want, err := r.seal(s.key, linked)
		if err != nil {
			return n, err
		}
		if !hmac.Equal([]byte(want), []byte(stored)) {
			return n, fmt.Errorf("%w: event %s altered", ErrTampered, r.ID)
		}
		prevMAC = stored
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	if prevMAC != s.lastMAC {
		return n, fmt.Errorf("%w: newest events missing", ErrTampered)
	}
	return n, nil
}
