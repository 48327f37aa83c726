// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/keycabinet/internal/session"
)

// Default credential attempt rate. The burst covers a user retyping a PIN a
// few times in quick succession.
const (
	DefaultAttemptRate  = 2.0
	DefaultAttemptBurst = 5
)

// Throttle limits credential attempts across the whole kiosk.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottle allows perSec attempts per second with the given burst.
func NewThrottle(perSec float64, burst int) *Throttle {
	if perSec <= 0 {
		perSec = DefaultAttemptRate
	}
	if burst <= 0 {
		burst = DefaultAttemptBurst
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		now:     time.Now,
	}
}

// WithClock replaces time.Now. It returns t for chaining.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	if now != nil {
		t.now = now
	}
	return t
}

// Allow consumes one token or returns ErrThrottled.
func (t *Throttle) Allow() error {
	if t == nil {
		return nil
	}
	if !t.limiter.AllowN(t.now(), 1) {
		return ErrThrottled
	}
	return nil
}

// ThrottledVerifier rejects attempts beyond the throttle before checking
// the secret.
type ThrottledVerifier struct {
	next     Verifier
	throttle *Throttle
}

// NewThrottledVerifier wraps next.
func NewThrottledVerifier(next Verifier, t *Throttle) *ThrottledVerifier {
	return &ThrottledVerifier{next: next, throttle: t}
}

// Verify implements Verifier.
func (v *ThrottledVerifier) Verify(user, secret string) (session.Identity, error) {
	if err := v.throttle.Allow(); err != nil {
		return session.Identity{}, err
	}
	return v.next.Verify(user, secret)
}
