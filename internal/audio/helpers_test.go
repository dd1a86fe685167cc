// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"sync"

	"lightsync/internal/config"
)

const (
	testSampleRate = 48000
	testFrameSize  = 256
	lowThreshold   = int32(math.MaxInt32 / 1000)
	highThreshold  = int32(math.MaxInt32 / 2)
)

var (
	testBuffer  = makeBuffer(testFrameSize, 100_000_000)
	quietBuffer = makeBuffer(testFrameSize, 100_000)
	loudBuffer  = makeBuffer(testFrameSize, 1_500_000_000)
)

// makeBuffer alternates +peak and -peak with a ramp in between.
func makeBuffer(n int, peak int32) []int32 {
	buf := make([]int32, n)
	for i := range buf {
		v := int32(float64(peak) * float64(i%16) / 15)
		if i%2 == 1 {
			v = -v
		}
		buf[i] = v
	}
	return buf
}

// recSink keeps a copy of everything written.
type recSink struct {
	mu     sync.Mutex
	writes [][]int32
}

func (s *recSink) Write(samples []int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]int32(nil), samples...))
}

func (s *recSink) last() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return nil
	}
	return s.writes[len(s.writes)-1]
}

func newTestEngine(channels int, sink Sink) *Engine {
	return newEngine(config.AudioConfig{
		InputChannels:   channels,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testFrameSize,
	}, config.RecordingConfig{BitDepth: 32}, sink)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func absFloat(x float64) float64 {
	return math.Abs(x)
}
