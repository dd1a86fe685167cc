// SPDX-License-Identifier: MIT

// Package pipeline drives one frame at a time from the spectrum snapshot to
// the renderer and the connected devices.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lightsync/internal/analysis"
	"lightsync/internal/log"
	"lightsync/internal/metrics"
	"lightsync/internal/transport"
)

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = time.Second / 60

// SnapshotSource fills a byte spectrum snapshot, e.g. *spectrum.Analyser.
type SnapshotSource interface {
	FrequencyBinCount() int
	GetByteFrequencyData(dst []uint8)
}

// Endpoints yields the connections to broadcast to, e.g. *transport.Registry.
type Endpoints interface {
	Current() []transport.Conn
}

// Renderer displays one frame. Render must not block.
type Renderer interface {
	Render(t analysis.EnergyTriple, widths [3]float64)
}

// Frame is the most recent processed frame.
type Frame struct {
	Energy    analysis.EnergyTriple
	Widths    [3]float64
	At        time.Time
	Forwarded bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRenderer attaches a renderer that sees every frame.
func WithRenderer(r Renderer) Option { return func(p *Pipeline) { p.renderer = r } }

// WithMetrics records frame and send counters.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithThrottle replaces the default send throttle.
func WithThrottle(t *analysis.Throttle) Option { return func(p *Pipeline) { p.throttle = t } }

// WithBroadcaster replaces the default broadcaster.
func WithBroadcaster(b *transport.Broadcaster) Option { return func(p *Pipeline) { p.broadcaster = b } }

// Pipeline owns the snapshot buffer and the per-frame state. Tick is meant to
// be called from one goroutine.
type Pipeline struct {
	source      SnapshotSource
	proc        *analysis.FrameProcessor
	endpoints   Endpoints
	throttle    *analysis.Throttle
	broadcaster *transport.Broadcaster
	renderer    Renderer
	metrics     *metrics.Metrics

	snapshot []uint8

	lastMu sync.RWMutex
	last   Frame

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a pipeline reading from source. proc must match the source's
// transform size.
func New(source SnapshotSource, proc *analysis.FrameProcessor, endpoints Endpoints, opts ...Option) (*Pipeline, error) {
	if source == nil || proc == nil || endpoints == nil {
		return nil, fmt.Errorf("pipeline: source, processor and endpoints are required")
	}
	p := &Pipeline{
		source:    source,
		proc:      proc,
		endpoints: endpoints,
		snapshot:  make([]uint8, source.FrequencyBinCount()),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.throttle == nil {
		p.throttle = analysis.NewThrottle(analysis.DefaultSendInterval)
	}
	if p.broadcaster == nil {
		var bopts []transport.BroadcasterOption
		if p.metrics != nil {
			bopts = append(bopts, transport.WithResultHook(p.metrics.ObserveSend))
		}
		p.broadcaster = transport.NewBroadcaster(bopts...)
	}
	return p, nil
}

// Tick processes one frame: refresh the snapshot, compute energies, render,
// and broadcast if the throttle admits now. It reports whether the frame was
// forwarded.
func (p *Pipeline) Tick(now time.Time) (analysis.EnergyTriple, bool) {
	p.source.GetByteFrequencyData(p.snapshot)
	energy := p.proc.Process(p.snapshot)
	widths := analysis.Widths(energy)

	if p.renderer != nil {
		p.renderer.Render(energy, widths)
	}
	if p.metrics != nil {
		p.metrics.FrameProcessed(energy)
	}

	forwarded := p.throttle.ShouldSend(now)
	if forwarded {
		conns := p.endpoints.Current()
		p.broadcaster.Broadcast(energy, conns)
		if p.metrics != nil {
			p.metrics.FrameForwarded()
			p.metrics.ObserveOpenCount(openCount(conns))
		}
	}

	p.lastMu.Lock()
	p.last = Frame{Energy: energy, Widths: widths, At: now, Forwarded: forwarded}
	p.lastMu.Unlock()
	return energy, forwarded
}

func openCount(conns []transport.Conn) int {
	n := 0
	for _, c := range conns {
		if c.State() == transport.StateOpen {
			n++
		}
	}
	return n
}

// Last returns the most recent frame.
func (p *Pipeline) Last() Frame {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last
}

// Run ticks every interval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("Pipeline: Running (frame interval %s, send interval %s)", interval, p.throttle.Interval())
	for {
		select {
		case <-ctx.Done():
			log.Infof("Pipeline: Stopped")
			return nil
		case now := <-ticker.C:
			p.Tick(now)
		}
	}
}

// Start runs the pipeline in its own goroutine. Calling Start while running is
// a no-op.
func (p *Pipeline) Start(interval time.Duration) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		log.Warnf("Pipeline: Start called but already running.")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Run(ctx, interval)
	}()
}

// Stop halts a pipeline started with Start and waits for it to exit.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}
