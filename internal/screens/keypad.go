// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import "strings"

// Keypad is a bounded digit buffer. Digits past the limit are ignored.
type Keypad struct {
	limit  int
	masked bool
	buf    []byte
}

// NewKeypad returns a keypad holding at most limit digits.
func NewKeypad(limit int, masked bool) *Keypad {
	if limit < 1 {
		limit = 1
	}
	return &Keypad{limit: limit, masked: masked}
}

// Press appends the digit carried by in. It reports whether the buffer
// changed.
func (k *Keypad) Press(in Input) bool {
	d, ok := in.Digit()
	if !ok || len(k.buf) >= k.limit {
		return false
	}
	k.buf = append(k.buf, d)
	return true
}

// Clear empties the buffer.
func (k *Keypad) Clear() {
	for i := range k.buf {
		k.buf[i] = 0
	}
	k.buf = k.buf[:0]
}

// Value returns the entered digits.
func (k *Keypad) Value() string { return string(k.buf) }

// Len returns the number of digits entered.
func (k *Keypad) Len() int { return len(k.buf) }

// Max returns the digit limit.
func (k *Keypad) Max() int { return k.limit }

// Full reports whether the limit is reached.
func (k *Keypad) Full() bool { return len(k.buf) >= k.limit }

// SetMax changes the limit, truncating the buffer if needed.
func (k *Keypad) SetMax(n int) {
	if n < 1 {
		n = 1
	}
	k.limit = n
	if len(k.buf) > n {
		k.buf = k.buf[:n]
	}
}

// Display renders the buffer. Masked keypads show filled and empty dots
// for the full length; others show the digits.
func (k *Keypad) Display() string {
	if !k.masked {
		return string(k.buf)
	}
	return strings.Repeat("●", len(k.buf)) + strings.Repeat("○", k.limit-len(k.buf))
}
