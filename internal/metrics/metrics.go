// SPDX-License-Identifier: MIT

// Package metrics exposes pipeline and transport counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lightsync/internal/analysis"
	"lightsync/internal/log"
	"lightsync/internal/transport"
)

const (
	namespace         = "lightsync"
	readHeaderTimeout = 10 * time.Second
)

// Send result labels.
const (
	ResultOK           = "ok"
	ResultNotOpen      = "not_open"
	ResultBackpressure = "backpressure"
	ResultError        = "error"
)

// Metrics owns a private registry so tests and multiple instances never clash
// on the global default.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	framesForwarded prometheus.Counter
	sends           *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	openEndpoints   prometheus.Gauge
	bandEnergy      *prometheus.GaugeVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Spectrum snapshots reduced to band energies.",
		}),
		framesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_forwarded_total",
			Help:      "Frames that passed the send throttle.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Per-endpoint send attempts by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_transitions_total",
			Help:      "Endpoint connection state transitions.",
		}, []string{"state"}),
		openEndpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoints_open",
			Help:      "Endpoints currently open.",
		}),
		bandEnergy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "band_energy",
			Help:      "Latest normalized energy per band.",
		}, []string{"band"}),
	}

	m.registry.MustRegister(
		m.framesProcessed,
		m.framesForwarded,
		m.sends,
		m.transitions,
		m.openEndpoints,
		m.bandEnergy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FrameProcessed records one processed frame and its energies.
func (m *Metrics) FrameProcessed(t analysis.EnergyTriple) {
	m.framesProcessed.Inc()
	m.bandEnergy.WithLabelValues(analysis.BassBand.Name).Set(t.Bass)
	m.bandEnergy.WithLabelValues(analysis.MidBand.Name).Set(t.Mid)
	m.bandEnergy.WithLabelValues(analysis.TrebleBand.Name).Set(t.Treble)
}

// FrameForwarded records a frame admitted by the throttle.
func (m *Metrics) FrameForwarded() { m.framesForwarded.Inc() }

// ObserveSend is a transport.Broadcaster result hook.
func (m *Metrics) ObserveSend(res transport.SendResult) {
	m.sends.WithLabelValues(resultLabel(res.Err)).Inc()
}

// ObserveState is a transport.StateFunc.
func (m *Metrics) ObserveState(_ transport.Conn, s transport.State, _ error) {
	m.transitions.WithLabelValues(s.String()).Inc()
}

// ObserveOpenCount sets the open endpoint gauge.
func (m *Metrics) ObserveOpenCount(n int) { m.openEndpoints.Set(float64(n)) }

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, transport.ErrNotOpen):
		return ResultNotOpen
	case errors.Is(err, transport.ErrBackpressure):
		return ResultBackpressure
	default:
		return ResultError
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Infof("Metrics: Serving on http://%s/metrics", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
