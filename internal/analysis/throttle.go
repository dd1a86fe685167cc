// SPDX-License-Identifier: MIT
package analysis

import "time"

// DefaultSendInterval bounds forwarding to roughly 31 messages per second.
const DefaultSendInterval = 32 * time.Millisecond

// Throttle admits at most one event per interval. It is not safe for
// concurrent use; the frame loop owns it.
type Throttle struct {
	interval time.Duration
	last     time.Time
	primed   bool
}

// NewThrottle creates a Throttle that is immediately eligible. A non-positive
// interval falls back to DefaultSendInterval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Throttle{interval: interval}
}

// Interval returns the minimum spacing between accepted events.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// ShouldSend reports whether an event at now may pass. Acceptance records now;
// rejection leaves the state untouched.
func (t *Throttle) ShouldSend(now time.Time) bool {
	if t.primed && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	t.primed = true
	return true
}

// Reset makes the throttle immediately eligible again.
func (t *Throttle) Reset() {
	t.last = time.Time{}
	t.primed = false
}
