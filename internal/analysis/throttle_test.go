// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
	"time"
)

func TestThrottleSequence(t *testing.T) {
	base := time.Unix(1700000000, 0)
	th := NewThrottle(32 * time.Millisecond)

	tests := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{10 * time.Millisecond, false},
		{33 * time.Millisecond, true},
		{64 * time.Millisecond, false}, // 31ms after the last accept
		{65 * time.Millisecond, true},  // exactly one interval
	}

	accepted := 0
	for _, tt := range tests {
		got := th.ShouldSend(base.Add(tt.at))
		if got != tt.want {
			t.Errorf("ShouldSend(t=%s) = %v, want %v", tt.at, got, tt.want)
		}
		if got {
			accepted++
		}
	}
	if accepted != 3 {
		t.Errorf("accepted %d, want 3", accepted)
	}
}

func TestThrottleRejectLeavesStateUntouched(t *testing.T) {
	base := time.Unix(0, 0)
	th := NewThrottle(32 * time.Millisecond)

	th.ShouldSend(base)
	// Many rejected calls must not push the next eligible time forward.
	for ms := 1; ms < 32; ms++ {
		if th.ShouldSend(base.Add(time.Duration(ms) * time.Millisecond)) {
			t.Fatalf("accepted at %dms", ms)
		}
	}
	if !th.ShouldSend(base.Add(32 * time.Millisecond)) {
		t.Error("expected accept exactly one interval after the first")
	}
}

func TestThrottleDefaultsAndReset(t *testing.T) {
	th := NewThrottle(0)
	if th.Interval() != DefaultSendInterval {
		t.Errorf("Interval = %s, want %s", th.Interval(), DefaultSendInterval)
	}

	now := time.Now()
	if !th.ShouldSend(now) {
		t.Fatal("fresh throttle must be eligible")
	}
	if th.ShouldSend(now) {
		t.Fatal("second call at same instant must be rejected")
	}
	th.Reset()
	if !th.ShouldSend(now) {
		t.Error("reset throttle must be eligible")
	}
}
