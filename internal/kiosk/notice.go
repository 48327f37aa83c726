// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kiosk

import (
	"sync"
	"time"

	"github.com/jeranaias/keycabinet/internal/screens"
)

// DefaultMaxNotices is how many notices are kept at once.
const DefaultMaxNotices = 4

// PostedNotice is a notice with its board identity and expiry.
type PostedNotice struct {
	screens.Notice
	ID        int
	CreatedAt time.Time
}

// ExpiresAt returns when the notice auto-dismisses.
func (n PostedNotice) ExpiresAt() time.Time {
	return n.CreatedAt.Add(n.Dismiss)
}

// Expired reports whether the notice should be dismissed at now.
func (n PostedNotice) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt())
}

// NoticeBoard holds the notices currently shown, newest first.
type NoticeBoard struct {
	mu      sync.Mutex
	notices []PostedNotice
	nextID  int
	limit   int
}

// NewNoticeBoard returns an empty board.
func NewNoticeBoard(limit int) *NoticeBoard {
	if limit <= 0 {
		limit = DefaultMaxNotices
	}
	return &NoticeBoard{nextID: 1, limit: limit}
}

// Post adds n at now and returns its ID.
func (b *NoticeBoard) Post(n screens.Notice, now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := PostedNotice{Notice: n, ID: b.nextID, CreatedAt: now}
	b.nextID++
	b.notices = append([]PostedNotice{p}, b.notices...)
	if len(b.notices) > b.limit {
		b.notices = b.notices[:b.limit]
	}
	return p.ID
}

// Dismiss removes the notice with id.
func (b *NoticeBoard) Dismiss(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.notices {
		if n.ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// DismissLatest removes the newest notice.
func (b *NoticeBoard) DismissLatest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.notices) == 0 {
		return false
	}
	b.notices = b.notices[1:]
	return true
}

// Expire drops notices expired at now and returns how many were removed.
func (b *NoticeBoard) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.notices[:0]
	for _, n := range b.notices {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	removed := len(b.notices) - len(kept)
	b.notices = kept
	return removed
}

// Active returns a copy of the current notices, newest first.
func (b *NoticeBoard) Active() []PostedNotice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PostedNotice(nil), b.notices...)
}

// Clear removes every notice.
func (b *NoticeBoard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = nil
}
