// SPDX-License-Identifier: MIT

// Package spectrum turns a live PCM stream into byte magnitude snapshots: the
// most recent FFTSize samples are windowed, transformed, smoothed over time,
// converted to decibels and mapped onto 0..255 between MinDecibels and
// MaxDecibels. One snapshot has FFTSize/2 bins spanning 0 Hz to Nyquist.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"lightsync/internal/log"
	"lightsync/pkg/bitint"
)

// Analyser defaults.
const (
	DefaultFFTSize     = 2048
	DefaultSampleRate  = 48000
	DefaultSmoothing   = 0.3
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	MinFFTSize = 32
	MaxFFTSize = 32768
)

// int32ToUnit scales an int32 sample to [-1.0, 1.0).
const int32ToUnit = 1.0 / float64(0x80000000)

// Options configures an Analyser. Zero values take the defaults above, except
// Smoothing where zero disables temporal smoothing.
type Options struct {
	FFTSize     int
	SampleRate  float64
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
	Window      WindowFunc
}

// DefaultOptions returns the browser-compatible analyser configuration.
func DefaultOptions() Options {
	return Options{
		FFTSize:     DefaultFFTSize,
		SampleRate:  DefaultSampleRate,
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
		Window:      Blackman,
	}
}

// Analyser accumulates samples written by the capture callback and produces
// frequency snapshots on demand. Write and GetByteFrequencyData may be called
// from different goroutines.
type Analyser struct {
	fftSize    int
	sampleRate float64
	smoothing  float64
	minDb      float64
	rangeScale float64

	// ring holds the last fftSize samples; pos is the next write index.
	ringMu sync.Mutex
	ring   []float64
	pos    int

	// Workspace owned by the reader side.
	workMu   sync.Mutex
	fftObj   *fourier.FFT
	input    []float64
	coeffs   []complex128
	smoothed []float64
	window   []float64
}

// NewAnalyser validates opts and pre-allocates all buffers.
func NewAnalyser(opts Options) (*Analyser, error) {
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.MinDecibels == 0 && opts.MaxDecibels == 0 {
		opts.MinDecibels, opts.MaxDecibels = DefaultMinDecibels, DefaultMaxDecibels
	}

	if !bitint.IsPowerOfTwo(opts.FFTSize) || opts.FFTSize < MinFFTSize || opts.FFTSize > MaxFFTSize {
		return nil, fmt.Errorf("fft size must be a power of 2 in [%d, %d], got %d", MinFFTSize, MaxFFTSize, opts.FFTSize)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", opts.SampleRate)
	}
	if opts.Smoothing < 0 || opts.Smoothing > 1 {
		return nil, fmt.Errorf("smoothing must be in [0, 1], got %f", opts.Smoothing)
	}
	if opts.MinDecibels >= opts.MaxDecibels {
		return nil, fmt.Errorf("min decibels %.1f must be below max decibels %.1f", opts.MinDecibels, opts.MaxDecibels)
	}

	bins := opts.FFTSize / 2
	log.Infof("Spectrum: Initializing Analyser (Size: %d, SampleRate: %.1f Hz, Window: %v, Smoothing: %.2f)",
		opts.FFTSize, opts.SampleRate, opts.Window, opts.Smoothing)

	return &Analyser{
		fftSize:    opts.FFTSize,
		sampleRate: opts.SampleRate,
		smoothing:  opts.Smoothing,
		minDb:      opts.MinDecibels,
		rangeScale: 1 / (opts.MaxDecibels - opts.MinDecibels),
		ring:       make([]float64, opts.FFTSize),
		fftObj:     fourier.NewFFT(opts.FFTSize),
		input:      make([]float64, opts.FFTSize),
		coeffs:     make([]complex128, opts.FFTSize/2+1),
		smoothed:   make([]float64, bins),
		window:     windowCoefficients(opts.FFTSize, opts.Window),
	}, nil
}

// FFTSize returns the transform size in points.
func (a *Analyser) FFTSize() int { return a.fftSize }

// SampleRate returns the input sample rate in Hz.
func (a *Analyser) SampleRate() float64 { return a.sampleRate }

// FrequencyBinCount returns the snapshot length, FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// Write appends full-scale int32 samples to the analysis window.
func (a *Analyser) Write(samples []int32) {
	a.ringMu.Lock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s) * int32ToUnit
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
		}
	}
	a.ringMu.Unlock()
}

// WriteFloat appends samples already scaled to [-1, 1].
func (a *Analyser) WriteFloat(samples []float64) {
	a.ringMu.Lock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
		}
	}
	a.ringMu.Unlock()
}

// GetByteFrequencyData refreshes dst in place with the current spectrum. dst
// should have FrequencyBinCount elements; extra elements are left untouched and
// a shorter dst receives only its leading bins.
func (a *Analyser) GetByteFrequencyData(dst []uint8) {
	a.workMu.Lock()
	defer a.workMu.Unlock()

	// Oldest sample first.
	a.ringMu.Lock()
	n := copy(a.input, a.ring[a.pos:])
	copy(a.input[n:], a.ring[:a.pos])
	a.ringMu.Unlock()

	for i := range a.input {
		a.input[i] *= a.window[i]
	}
	a.fftObj.Coefficients(a.coeffs, a.input)

	scale := 1 / float64(a.fftSize)
	tau := a.smoothing
	limit := min(len(dst), len(a.smoothed))
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		v := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[k] = v

		if k < limit {
			dst[k] = toByte(v, a.minDb, a.rangeScale)
		}
	}
}

// toByte maps a linear magnitude onto 0..255 across the decibel window.
func toByte(mag, minDb, rangeScale float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	scaled := 255 * (db - minDb) * rangeScale
	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(scaled)
}

// FrequencyForBin returns the lower edge frequency of bin k in Hz.
func (a *Analyser) FrequencyForBin(k int) float64 {
	if k < 0 || k > a.fftSize/2 {
		return 0
	}
	return float64(k) * a.sampleRate / float64(a.fftSize)
}

// Reset clears buffered samples and smoothing history.
func (a *Analyser) Reset() {
	a.workMu.Lock()
	defer a.workMu.Unlock()
	a.ringMu.Lock()
	clear(a.ring)
	a.pos = 0
	a.ringMu.Unlock()
	clear(a.smoothed)
}
