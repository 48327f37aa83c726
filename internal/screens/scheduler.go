// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending deferred callback.
type Timer interface {
	// Stop cancels the callback. It reports whether it was still pending.
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// TimerQueue is a Scheduler whose callbacks fire only from RunDue. The
// kiosk calls RunDue on every tick, which keeps callbacks on the input
// goroutine; tests call it with a fake clock.
type TimerQueue struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     uint64
	pending []*queuedTimer
}

type queuedTimer struct {
	q       *TimerQueue
	id      uint64
	due     time.Time
	fn      func()
	stopped bool
}

// NewTimerQueue returns an empty queue. now stamps due times.
func NewTimerQueue(now func() time.Time) *TimerQueue {
	if now == nil {
		now = time.Now
	}
	return &TimerQueue{now: now}
}

// After implements Scheduler.
func (q *TimerQueue) After(d time.Duration, fn func()) Timer {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	t := &queuedTimer{q: q, id: q.seq, due: q.now().Add(d), fn: fn}
	q.pending = append(q.pending, t)
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].due.Equal(q.pending[j].due) {
			return q.pending[i].id < q.pending[j].id
		}
		return q.pending[i].due.Before(q.pending[j].due)
	})
	return t
}

// RunDue fires every callback due at or before now, earliest first, and
// returns how many ran. Callbacks may schedule or stop other timers.
func (q *TimerQueue) RunDue(now time.Time) int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.pending[0].due.After(now) {
			q.mu.Unlock()
			return ran
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		t.stopped = true
		q.mu.Unlock()

		t.fn()
		ran++
	}
}

// Pending returns the number of scheduled callbacks.
func (q *TimerQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NextDue returns when the earliest callback fires.
func (q *TimerQueue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return time.Time{}, false
	}
	return q.pending[0].due, true
}

func (t *queuedTimer) Stop() bool {
	q := t.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return true
}
