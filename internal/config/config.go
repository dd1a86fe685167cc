// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"lightsync/internal/analysis"
	"lightsync/internal/spectrum"
)

// Core configuration constants that define the boundaries and defaults.
const (
	DefaultLogLevel        = "info"
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultChannels        = 1           // Mono capture
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultFrameRate       = 60          // Display refresh cadence stand-in
	DefaultWSPath          = "/ws"
	DefaultDialTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 250 * time.Millisecond
	DefaultLookupURL       = "http://kv.wfeng.dev"
	DefaultLookupKey       = "esp:ip"
	DefaultLookupTimeout   = 3 * time.Second
	DefaultRecordingFormat = "wav"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MaxFrameRate    = 1000
)

// Config is the complete runtime configuration, loaded from YAML and then
// overridden by environment variables and command line flags.
type Config struct {
	LogLevel   string          `yaml:"log_level"`         // debug, info, warn, error.
	LogFile    string          `yaml:"log_file"`          // Log destination while the meter owns the terminal.
	Command    string          `yaml:"command,omitempty"` // One-off command instead of running the pipeline.
	Headless   bool            `yaml:"headless"`          // Run without the terminal meter.
	PickDevice bool            `yaml:"-"`                 // Choose the input device interactively before starting.
	Audio      AudioConfig     `yaml:"audio"`
	Analysis   AnalysisConfig  `yaml:"analysis"`
	Endpoints  EndpointsConfig `yaml:"endpoints"`
	Recording  RecordingConfig `yaml:"recording"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Device     DeviceConfig    `yaml:"device"`
}

// AudioConfig holds capture and spectral transform settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	InputChannels   int     `yaml:"input_channels"`    // Channels captured; the first one is analysed.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // PortAudio callback size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	FFTSize         int     `yaml:"fft_size"`          // Transform points, power of two.
	Smoothing       float64 `yaml:"smoothing"`         // Temporal smoothing constant in [0,1].
	MinDecibels     float64 `yaml:"min_decibels"`      // Maps to byte 0.
	MaxDecibels     float64 `yaml:"max_decibels"`      // Maps to byte 255.
	FFTWindow       string  `yaml:"fft_window"`        // Window function name.
	NoiseGate       float64 `yaml:"noise_gate"`        // Peak ratio below which a buffer is silenced; 0 disables.
}

// AnalysisConfig holds the band layout and frame cadence.
type AnalysisConfig struct {
	Bass         analysis.Band `yaml:"bass"`
	Mid          analysis.Band `yaml:"mid"`
	Treble       analysis.Band `yaml:"treble"`
	FrameRate    float64       `yaml:"frame_rate"`    // Frames processed per second.
	SendInterval time.Duration `yaml:"send_interval"` // Minimum spacing of forwarded frames.
}

// Bands returns the configured bands in wire order.
func (a AnalysisConfig) Bands() [3]analysis.Band {
	return [3]analysis.Band{a.Bass, a.Mid, a.Treble}
}

// FrameInterval converts FrameRate to a ticker period.
func (a AnalysisConfig) FrameInterval() time.Duration {
	if a.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Duration(float64(time.Second) / a.FrameRate)
}

// EndpointsConfig lists the light devices and how to discover them.
type EndpointsConfig struct {
	Addresses    []string      `yaml:"addresses"`     // Static addresses; skip lookup when set.
	Path         string        `yaml:"path"`          // WebSocket path appended to bare addresses.
	DialTimeout  time.Duration `yaml:"dial_timeout"`  // Per connection handshake timeout.
	WriteTimeout time.Duration `yaml:"write_timeout"` // Per payload write deadline.
	Lookup       LookupConfig  `yaml:"lookup"`
}

// LookupConfig configures startup endpoint discovery.
type LookupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`        // HTTP key/value base URL.
	RedisAddr string        `yaml:"redis_addr"` // Use Redis instead of HTTP when set.
	Keys      []string      `yaml:"keys"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RecordingConfig holds settings for the optional input WAV tap.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Generated from the start time when empty.
	Format     string `yaml:"format"`
	BitDepth   int    `yaml:"bit_depth"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"` // host:port; disabled when empty.
}

// DeviceConfig configures the simulated light device.
type DeviceConfig struct {
	Address string `yaml:"address"`
}

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		LogFile:  "lightsync.log",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			InputChannels:   DefaultChannels,
			SampleRate:      spectrum.DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			FFTSize:         spectrum.DefaultFFTSize,
			Smoothing:       spectrum.DefaultSmoothing,
			MinDecibels:     spectrum.DefaultMinDecibels,
			MaxDecibels:     spectrum.DefaultMaxDecibels,
			FFTWindow:       "blackman",
		},
		Analysis: AnalysisConfig{
			Bass:         analysis.BassBand,
			Mid:          analysis.MidBand,
			Treble:       analysis.TrebleBand,
			FrameRate:    DefaultFrameRate,
			SendInterval: analysis.DefaultSendInterval,
		},
		Endpoints: EndpointsConfig{
			Path:         DefaultWSPath,
			DialTimeout:  DefaultDialTimeout,
			WriteTimeout: DefaultWriteTimeout,
			Lookup: LookupConfig{
				Enabled: true,
				URL:     DefaultLookupURL,
				Keys:    []string{DefaultLookupKey},
				Timeout: DefaultLookupTimeout,
			},
		},
		Recording: RecordingConfig{
			Format:   DefaultRecordingFormat,
			BitDepth: 32,
		},
		Device: DeviceConfig{
			Address: ":8080",
		},
	}
}
