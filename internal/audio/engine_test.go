// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"lightsync/internal/config"
)

func TestProcessBufferMono(t *testing.T) {
	sink := &recSink{}
	e := newTestEngine(1, sink)

	e.processBuffer(testBuffer)

	got := sink.last()
	if len(got) != testFrameSize {
		t.Fatalf("sink received %d samples, want %d", len(got), testFrameSize)
	}
	for i := range got {
		if got[i] != testBuffer[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], testBuffer[i])
		}
	}
}

func TestProcessBufferDownmixesFirstChannel(t *testing.T) {
	sink := &recSink{}
	e := newTestEngine(2, sink)

	stereo := make([]int32, testFrameSize*2)
	for i := range testFrameSize {
		stereo[2*i] = int32(i + 1)
		stereo[2*i+1] = -999
	}
	e.processBuffer(stereo)

	got := sink.last()
	if len(got) != testFrameSize {
		t.Fatalf("sink received %d samples, want %d", len(got), testFrameSize)
	}
	for i, v := range got {
		if v != int32(i+1) {
			t.Fatalf("frame %d = %d, want left channel %d", i, v, i+1)
		}
	}
}

func TestProcessBufferShortCallback(t *testing.T) {
	sink := &recSink{}
	e := newTestEngine(2, sink)

	e.processBuffer([]int32{5, 0, 6, 0, 7})
	if got := sink.last(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("short buffer produced %v, want [5 6]", got)
	}
}

func TestProcessBufferGateSilences(t *testing.T) {
	sink := &recSink{}
	e := newEngine(config.AudioConfig{
		InputChannels:   1,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testFrameSize,
		NoiseGate:       0.01,
	}, config.RecordingConfig{}, sink)

	if !e.gateEnabled {
		t.Fatal("a positive noise_gate should enable the gate")
	}

	e.processBuffer(quietBuffer)
	for i, v := range sink.last() {
		if v != 0 {
			t.Fatalf("gated sample %d = %d, want 0", i, v)
		}
	}

	e.processBuffer(loudBuffer)
	if peakAmplitude(sink.last()) == 0 {
		t.Error("loud buffer should pass the gate")
	}

	calls, gated := e.Stats()
	if calls != 2 || gated != 1 {
		t.Errorf("Stats = %d, %d; want 2, 1", calls, gated)
	}
}

func TestProcessBufferNilSink(t *testing.T) {
	e := newTestEngine(1, nil)
	e.processBuffer(testBuffer)
	if calls, _ := e.Stats(); calls != 1 {
		t.Errorf("callbacks = %d", calls)
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		name string
		in   []int32
		want int32
	}{
		{"Empty", nil, 0},
		{"Positive", []int32{1, 5, 3}, 5},
		{"Negative", []int32{-7, 2}, 7},
		{"Min int", []int32{math.MinInt32, 1}, math.MaxInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := peakAmplitude(tt.in); got != tt.want {
				t.Errorf("peakAmplitude(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

// TestProcessBufferHotPath checks the callback path stays allocation free.
func TestProcessBufferHotPath(t *testing.T) {
	e := newTestEngine(2, nopSink{})
	e.SetGateThreshold(0.001)
	e.EnableGate()
	stereo := make([]int32, testFrameSize*2)
	copy(stereo, testBuffer)

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(stereo)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in callback hot path, got %.1f", allocs)
	}
}

type nopSink struct{}

func (nopSink) Write([]int32) {}

func BenchmarkHotPath(b *testing.B) {
	e := newTestEngine(2, nopSink{})
	e.SetGateThreshold(0.001)
	e.EnableGate()
	stereo := make([]int32, testFrameSize*2)
	copy(stereo, loudBuffer)

	b.ReportAllocs()
	for b.Loop() {
		e.processBuffer(stereo)
	}
}
