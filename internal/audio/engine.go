// SPDX-License-Identifier: MIT
/*
Package audio captures live input through PortAudio and feeds it to the
spectrum analyser.

Thread Safety:
- The PortAudio callback runs on its own OS thread and only touches
  pre-allocated buffers
- Recording state is switched atomically; the encoder is guarded by a mutex
  shared with Start/StopRecording
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"lightsync/internal/config"
	"lightsync/internal/log"
)

// Sink consumes mono full-scale samples, e.g. *spectrum.Analyser.
type Sink interface {
	Write(samples []int32)
}

type Engine struct {
	cfg    config.AudioConfig
	recCfg config.RecordingConfig
	sink   Sink

	// Audio input handling.
	inputBuffer  []int32
	monoBuffer   []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)

	// Recording state and buffers.
	isRecording atomic.Bool
	recMu       sync.Mutex
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	sampleShift uint

	callbacks atomic.Uint64
	gated     atomic.Uint64
}

// NewEngine resolves the configured input device. The stream is not opened
// until StartInputStream.
func NewEngine(cfg config.AudioConfig, rec config.RecordingConfig, sink Sink) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	if inputDevice.MaxInputChannels < cfg.InputChannels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.InputChannels)
	}

	e := newEngine(cfg, rec, sink)
	e.inputDevice = inputDevice
	if cfg.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	log.Infof("Audio: Using input device %q (%d ch, %.0f Hz, latency %s)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, e.inputLatency)
	return e, nil
}

// newEngine allocates buffers without touching PortAudio.
func newEngine(cfg config.AudioConfig, rec config.RecordingConfig, sink Sink) *Engine {
	e := &Engine{
		cfg:         cfg,
		recCfg:      rec,
		sink:        sink,
		inputBuffer: make([]int32, cfg.FramesPerBuffer*cfg.InputChannels),
		monoBuffer:  make([]int32, cfg.FramesPerBuffer),
	}
	if cfg.NoiseGate > 0 {
		e.SetGateThreshold(cfg.NoiseGate)
		e.EnableGate()
	}
	return e
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	log.Infof("Audio: Input stream started (%d frames per buffer)", e.cfg.FramesPerBuffer)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}
	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil
	log.Infof("Audio: Input stream stopped after %d callbacks", e.callbacks.Load())
	return nil
}

// Stats returns the number of callbacks seen and how many were gated.
func (e *Engine) Stats() (callbacks, gated uint64) {
	return e.callbacks.Load(), e.gated.Load()
}

// processInputStream is the PortAudio callback. It uses pre-allocated
// buffers only.
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer[:n])

	if e.isRecording.Load() {
		e.writeRecording(e.inputBuffer[:n])
	}
}

// processBuffer downmixes the interleaved buffer to its first channel, applies
// the noise gate, and hands the result to the sink.
func (e *Engine) processBuffer(buffer []int32) {
	e.callbacks.Add(1)
	if e.sink == nil {
		return
	}

	channels := max(e.cfg.InputChannels, 1)
	frames := min(len(buffer)/channels, len(e.monoBuffer))
	mono := e.monoBuffer[:frames]
	if channels == 1 {
		copy(mono, buffer)
	} else {
		for i := range mono {
			mono[i] = buffer[i*channels]
		}
	}

	if e.gateEnabled && peakAmplitude(mono) <= e.gateThreshold {
		// Silence keeps the analyser's window advancing so it decays.
		clear(mono)
		e.gated.Add(1)
	}
	e.sink.Write(mono)
}
