// SPDX-License-Identifier: MIT
package transport

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"lightsync/internal/analysis"
	"lightsync/internal/log"
)

// FrameSize is the length of one encoded frame: bass, mid, treble.
const FrameSize = 3

// SendResult is the outcome of one send attempt.
type SendResult struct {
	ID   string
	Addr string
	Err  error
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithResultHook calls fn for every attempted send.
func WithResultHook(fn func(SendResult)) BroadcasterOption {
	return func(b *Broadcaster) { b.hooks = append(b.hooks, fn) }
}

// Broadcaster pushes frames to every open connection.
type Broadcaster struct {
	hooks   []func(SendResult)
	failLog rate.Sometimes
}

// NewBroadcaster returns a Broadcaster. Failure logs are sampled to one every
// few seconds.
func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{failLog: rate.Sometimes{First: 1, Interval: 5 * time.Second}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Encode maps each energy onto one byte as floor(e*255) clamped to [1, 255].
// Zero is never emitted; NaN encodes as 1.
func Encode(t analysis.EnergyTriple) [FrameSize]byte {
	var out [FrameSize]byte
	for i, e := range t.Values() {
		out[i] = encodeByte(e)
	}
	return out
}

func encodeByte(e float64) byte {
	v := math.Floor(e * 255)
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

// Broadcast encodes t once and sends it to each open connection in conns.
// Connections that are not open are skipped. A failing connection never stops
// delivery to the others. Results are returned in conns order.
func (b *Broadcaster) Broadcast(t analysis.EnergyTriple, conns []Conn) []SendResult {
	if len(conns) == 0 {
		return nil
	}
	frame := Encode(t)
	payload := frame[:]

	var results []SendResult
	for _, c := range conns {
		if c.State() != StateOpen {
			continue
		}
		res := SendResult{ID: c.ID(), Addr: c.Addr(), Err: c.Send(payload)}
		if res.Err != nil {
			b.failLog.Do(func() {
				log.Warnf("Transport: Send to %s failed: %v", res.Addr, res.Err)
			})
		}
		for _, hook := range b.hooks {
			hook(res)
		}
		results = append(results, res)
	}
	return results
}
