// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lightsync/internal/analysis"
	"lightsync/internal/log"
	"lightsync/internal/spectrum"
	"lightsync/internal/transport"
	"lightsync/pkg/bitint"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "lightsync.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	// Audio
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f out of range [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid", a.InputDevice))
	}
	if a.InputChannels < 1 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be at least 1, got %d", a.InputChannels))
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d out of range (0, %d]", a.FramesPerBuffer, MaxBufferFrames))
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) {
		errs = append(errs, fmt.Errorf("audio.fft_size %d is not a power of two (nearest above is %d)",
			a.FFTSize, bitint.NextPowerOfTwo(a.FFTSize)))
	} else if a.FFTSize < spectrum.MinFFTSize || a.FFTSize > spectrum.MaxFFTSize {
		errs = append(errs, fmt.Errorf("audio.fft_size %d out of range [%d, %d]", a.FFTSize, spectrum.MinFFTSize, spectrum.MaxFFTSize))
	}
	if a.Smoothing < 0 || a.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("audio.smoothing %.2f out of range [0, 1]", a.Smoothing))
	}
	if a.MinDecibels >= a.MaxDecibels {
		errs = append(errs, fmt.Errorf("audio.min_decibels %.1f must be below max_decibels %.1f", a.MinDecibels, a.MaxDecibels))
	}
	if a.NoiseGate < 0 || a.NoiseGate > 1 {
		errs = append(errs, fmt.Errorf("audio.noise_gate %.3f out of range [0, 1]", a.NoiseGate))
	}
	if _, err := spectrum.ParseWindowFunc(a.FFTWindow); err != nil {
		errs = append(errs, fmt.Errorf("audio.fft_window: %w", err))
	}

	// Analysis: bands are resolved against the transform so an empty band is
	// rejected here rather than producing a silent channel.
	if len(errs) == 0 {
		for _, b := range c.Analysis.Bands() {
			if _, err := analysis.ResolveBand(b, a.FFTSize, a.SampleRate); err != nil {
				errs = append(errs, fmt.Errorf("analysis.%s: %w", b.Name, err))
			}
		}
	}
	if c.Analysis.FrameRate <= 0 || c.Analysis.FrameRate > MaxFrameRate {
		errs = append(errs, fmt.Errorf("analysis.frame_rate %.1f out of range (0, %d]", c.Analysis.FrameRate, MaxFrameRate))
	}
	if c.Analysis.SendInterval <= 0 {
		errs = append(errs, fmt.Errorf("analysis.send_interval must be positive, got %s", c.Analysis.SendInterval))
	}

	// Endpoints
	if !strings.HasPrefix(c.Endpoints.Path, "/") {
		errs = append(errs, fmt.Errorf("endpoints.path %q must start with '/'", c.Endpoints.Path))
	}
	if c.Endpoints.DialTimeout <= 0 || c.Endpoints.WriteTimeout <= 0 {
		errs = append(errs, errors.New("endpoints.dial_timeout and endpoints.write_timeout must be positive"))
	}
	if l := c.Endpoints.Lookup; l.Enabled {
		if l.URL == "" && l.RedisAddr == "" {
			errs = append(errs, errors.New("endpoints.lookup needs url or redis_addr when enabled"))
		}
		if len(l.Keys) == 0 {
			errs = append(errs, errors.New("endpoints.lookup.keys must not be empty when enabled"))
		}
	}

	// Recording
	if c.Recording.Enabled && c.Recording.Format != DefaultRecordingFormat {
		errs = append(errs, fmt.Errorf("recording.format %q unsupported, only %q", c.Recording.Format, DefaultRecordingFormat))
	}
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are reported and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Debugf("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
			log.Debugf("configuration: Overriding audio.sample_rate from env: %v", f)
		} else {
			log.Warnf("configuration: Ignoring ENV_SAMPLE_RATE %q: %v", val, err)
		}
	}

	// ENV_ENDPOINTS is a comma separated address list; it disables lookup.
	if val, ok := os.LookupEnv("ENV_ENDPOINTS"); ok {
		c.Endpoints.Addresses = transport.ParseAddressList(val)
		c.Endpoints.Lookup.Enabled = false
		log.Debugf("configuration: Overriding endpoints.addresses from env: %v", c.Endpoints.Addresses)
	}

	// ENV_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Analysis.SendInterval = dur
			log.Debugf("configuration: Overriding analysis.send_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: Ignoring ENV_SEND_INTERVAL %q: %v", val, err)
		}
	}

	// ENV_METRICS_ADDRESS
	if val, ok := os.LookupEnv("ENV_METRICS_ADDRESS"); ok {
		c.Metrics.Address = val
		log.Debugf("configuration: Overriding metrics.address from env: %s", val)
	}
}
