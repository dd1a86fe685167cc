// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lightsync/cmd"
	"lightsync/internal/analysis"
	"lightsync/internal/audio"
	"lightsync/internal/config"
	"lightsync/internal/log"
	"lightsync/internal/lookup"
	"lightsync/internal/metrics"
	"lightsync/internal/pipeline"
	"lightsync/internal/spectrum"
	"lightsync/internal/transport"
	"lightsync/internal/tui"
	"lightsync/pkg/build"
)

// main is the entry point for the light sync application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Initialize PortAudio
//
// 2. Concurrent Phase (Hot Path):
//   - Start the audio engine feeding the spectrum analyser
//   - Resolve endpoints and open connections
//   - Run the frame pipeline, the meter and the metrics server
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or meter exit
//   - Stop recording if active
//   - Close connections and the audio engine
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	// Parse command line arguments and build configuration
	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildFlags().Name, err)
		os.Exit(2)
	}
	if cfg == nil {
		return
	}

	if lvl, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(lvl)
	}
	defer log.Sync()

	if err := run(cfg); err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
}

// run dispatches one-off commands or runs the pipeline until shutdown.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The simulated device needs no audio hardware.
	if cfg.Command == cmd.CommandDevice {
		return runDevice(ctx, cfg)
	}

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if cfg.Command == cmd.CommandList {
		if cfg.PickDevice {
			return pickDevice(cfg)
		}
		return audio.ListDevices(os.Stdout)
	}

	if cfg.PickDevice {
		if err := pickDevice(cfg); err != nil {
			return err
		}
	}

	if !cfg.Headless && cfg.LogFile != "" {
		if err := log.ToFile(cfg.LogFile); err != nil {
			return err
		}
	}

	return runPipeline(ctx, stop, cfg)
}

// pickDevice runs the interactive picker and copies the choice into cfg.
func pickDevice(cfg *config.Config) error {
	sel, err := tui.PickDevice(audio.HostDevices)
	if err != nil {
		return err
	}
	if sel == nil {
		return errors.New("no input device selected")
	}
	cfg.Audio.InputDevice = sel.DeviceID
	cfg.Audio.SampleRate = sel.SampleRate
	cfg.Audio.InputChannels = sel.Channels
	log.Infof("Main: Selected device %d at %.0f Hz, %d channel(s)", sel.DeviceID, sel.SampleRate, sel.Channels)
	return cfg.Validate()
}

// runPipeline wires capture, analysis, transport and display, then blocks
// until ctx is cancelled or the meter exits.
func runPipeline(ctx context.Context, stop context.CancelFunc, cfg *config.Config) error {
	window, err := spectrum.ParseWindowFunc(cfg.Audio.FFTWindow)
	if err != nil {
		return err
	}
	analyser, err := spectrum.NewAnalyser(spectrum.Options{
		FFTSize:     cfg.Audio.FFTSize,
		SampleRate:  cfg.Audio.SampleRate,
		Smoothing:   cfg.Audio.Smoothing,
		MinDecibels: cfg.Audio.MinDecibels,
		MaxDecibels: cfg.Audio.MaxDecibels,
		Window:      window,
	})
	if err != nil {
		return err
	}

	proc, err := analysis.NewFrameProcessor(cfg.Analysis.Bands(), cfg.Audio.FFTSize, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	m := metrics.New()
	dialer := transport.NewDialer(cfg.Endpoints.Path, cfg.Endpoints.DialTimeout, cfg.Endpoints.WriteTimeout)
	registry := transport.NewRegistry(dialer.Dial,
		transport.WithObserver(m.ObserveState),
		transport.WithObserver(logTransition),
	)
	defer registry.Close()

	var (
		renderer pipeline.Renderer
		meter    *tui.Meter
	)
	if cfg.Headless {
		renderer = &tui.Headless{Every: int(cfg.Analysis.FrameRate)}
	} else {
		meter = tui.NewMeter(registry)
		renderer = meter
	}

	p, err := pipeline.New(analyser, proc, registry,
		pipeline.WithRenderer(renderer),
		pipeline.WithMetrics(m),
		pipeline.WithThrottle(analysis.NewThrottle(cfg.Analysis.SendInterval)),
	)
	if err != nil {
		return err
	}

	// Initialize and start the audio engine
	engine, err := audio.NewEngine(cfg.Audio, cfg.Recording, analyser)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warnf("Main: Error closing audio engine: %v", err)
		}
	}()

	// CRITICAL: Start of real-time audio processing
	// The first call to StartInputStream triggers PortAudio to begin
	// calling the callback function, marking the start of the hot path
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	// Start recording if enabled in configuration
	if cfg.Recording.Enabled {
		if err := engine.StartRecording(audio.RecordingFilename(cfg.Recording.OutputFile, time.Now())); err != nil {
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		connectEndpoints(gctx, cfg.Endpoints, registry)
		return nil
	})

	g.Go(func() error {
		return p.Run(gctx, cfg.Analysis.FrameInterval())
	})

	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Address)
		})
	}

	if meter != nil {
		g.Go(func() error {
			// Quitting the meter ends the run.
			defer stop()
			return meter.Run(gctx)
		})
	} else {
		log.Infof("Main: Running headless, press Ctrl+C to stop")
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// Stop recording if active and save the file
	if engine.IsRecording() {
		if err := engine.StopRecording(); err != nil {
			log.Warnf("Main: Error stopping recording: %v", err)
		}
	}

	callbacks, gated := engine.Stats()
	last := p.Last()
	log.Infow("Main: Shutting down",
		"callbacks", callbacks,
		"gated", gated,
		"last_energy", last.Energy.Values(),
	)
	return err
}

// connectEndpoints installs the static addresses or, failing that, the ones
// resolved by lookup. Lookup failures are logged and leave the registry empty
// so the meter can still be used to enter addresses by hand.
func connectEndpoints(ctx context.Context, cfg config.EndpointsConfig, registry *transport.Registry) {
	if len(cfg.Addresses) > 0 {
		registry.Reconfigure(cfg.Addresses)
		return
	}
	if !cfg.Lookup.Enabled {
		log.Warnf("Main: No endpoints configured")
		return
	}

	var l lookup.Lookup
	if cfg.Lookup.RedisAddr != "" {
		r := lookup.DialRedis(cfg.Lookup.RedisAddr)
		defer r.Close()
		l = r
	} else {
		l = lookup.NewHTTP(cfg.Lookup.URL, cfg.Lookup.Timeout)
	}

	lctx, cancel := context.WithTimeout(ctx, cfg.Lookup.Timeout)
	defer cancel()
	addresses, err := lookup.Addresses(lctx, l, cfg.Lookup.Keys)
	if err != nil {
		log.Warnf("Main: Endpoint lookup failed: %v", err)
		return
	}
	if len(addresses) == 0 {
		log.Warnf("Main: Endpoint lookup returned no addresses")
		return
	}
	log.Infof("Main: Resolved endpoints %v", addresses)
	registry.Reconfigure(addresses)
}

func logTransition(c transport.Conn, s transport.State, err error) {
	if err != nil {
		log.Warnw("Main: Endpoint state changed", "addr", c.Addr(), "id", c.ID(), "state", s.String(), "error", err)
		return
	}
	log.Infow("Main: Endpoint state changed", "addr", c.Addr(), "id", c.ID(), "state", s.String())
}

// runDevice serves a simulated light device until ctx is cancelled.
func runDevice(ctx context.Context, cfg *config.Config) error {
	srv := transport.NewDeviceServer(cfg.Device.Address, cfg.Endpoints.Path, func(frame [transport.FrameSize]byte) {
		log.Debugf("Device: Frame bass=%d mid=%d treble=%d", frame[0], frame[1], frame[2])
	})
	err := srv.ListenAndServe(ctx)
	log.Infof("Device: Received %d frames, dropped %d", srv.Frames(), srv.Dropped())
	return err
}
