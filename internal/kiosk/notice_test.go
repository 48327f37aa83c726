// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kiosk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/keycabinet/internal/screens"
)

func TestNoticeBoard_NewestFirstAndCapped(t *testing.T) {
	b := NewNoticeBoard(2)
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	b.Post(screens.Notice{Title: "one", Dismiss: time.Second}, now)
	b.Post(screens.Notice{Title: "two", Dismiss: time.Second}, now)
	id := b.Post(screens.Notice{Title: "three", Dismiss: time.Second}, now)

	active := b.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "three", active[0].Title)
	assert.Equal(t, id, active[0].ID)
	assert.Equal(t, "two", active[1].Title)
}

func TestNoticeBoard_Expire(t *testing.T) {
	b := NewNoticeBoard(0)
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	b.Post(screens.Notice{Title: "short", Dismiss: 2 * time.Second}, now)
	b.Post(screens.Notice{Title: "long", Dismiss: 10 * time.Second}, now)

	assert.Zero(t, b.Expire(now.Add(time.Second)))
	assert.Equal(t, 1, b.Expire(now.Add(2*time.Second)))

	active := b.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "long", active[0].Title)
	assert.Equal(t, now.Add(10*time.Second), active[0].ExpiresAt())
}

func TestNoticeBoard_Dismiss(t *testing.T) {
	b := NewNoticeBoard(DefaultMaxNotices)
	now := time.Now()

	first := b.Post(screens.Notice{Title: "first", Dismiss: time.Minute}, now)
	b.Post(screens.Notice{Title: "second", Dismiss: time.Minute}, now)

	assert.True(t, b.Dismiss(first))
	assert.False(t, b.Dismiss(first))
	assert.True(t, b.DismissLatest())
	assert.False(t, b.DismissLatest())
	assert.Empty(t, b.Active())

	b.Post(screens.Notice{Title: "again", Dismiss: time.Minute}, now)
	b.Clear()
	assert.Empty(t, b.Active())
}
