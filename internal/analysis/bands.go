// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"lightsync/internal/log"
)

var (
	// ErrInvalidBand is returned for bands whose bounds are negative or inverted.
	ErrInvalidBand = errors.New("invalid frequency band")
	// ErrEmptyBand is returned when a band maps to no bins at the given resolution.
	ErrEmptyBand = errors.New("frequency band covers no bins")
)

// Band is a named frequency range in Hz. LowHz must be below HighHz.
type Band struct {
	Name   string  `yaml:"name"`
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

// Default bands, in order bass, mid, treble.
var (
	BassBand   = Band{Name: "bass", LowHz: 20, HighHz: 250}
	MidBand    = Band{Name: "mid", LowHz: 250, HighHz: 4000}
	TrebleBand = Band{Name: "treble", LowHz: 4000, HighHz: 20000}
)

// DefaultBands returns the bass, mid and treble bands.
func DefaultBands() [3]Band {
	return [3]Band{BassBand, MidBand, TrebleBand}
}

// Validate checks the band bounds without regard to any sample rate.
func (b Band) Validate() error {
	if b.LowHz < 0 || math.IsNaN(b.LowHz) || math.IsNaN(b.HighHz) {
		return fmt.Errorf("%w: %s has bounds %.1f-%.1f Hz", ErrInvalidBand, b.Name, b.LowHz, b.HighHz)
	}
	if b.LowHz >= b.HighHz {
		return fmt.Errorf("%w: %s low bound %.1f Hz must be below high bound %.1f Hz",
			ErrInvalidBand, b.Name, b.LowHz, b.HighHz)
	}
	return nil
}

// BinRange is a half-open range of spectral bin indices [Start, End).
type BinRange struct {
	Start int
	End   int
}

// Len returns the number of bins covered by the range.
func (r BinRange) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Clamp limits both bounds to [0, n].
func (r BinRange) Clamp(n int) BinRange {
	return BinRange{Start: clampInt(r.Start, 0, n), End: clampInt(r.End, 0, n)}
}

func (r BinRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// ToBinRange maps a band to bin indices for a transform of transformSize points
// at sampleRate. The low edge rounds down and the high edge rounds up. The
// result is not clamped; see ResolveBand.
func ToBinRange(band Band, transformSize int, sampleRate float64) BinRange {
	n := float64(transformSize)
	return BinRange{
		Start: int(math.Floor(n * band.LowHz / sampleRate)),
		End:   int(math.Ceil(n * band.HighHz / sampleRate)),
	}
}

// ResolveBand validates a band against a transform configuration and returns
// its bin range clamped to the snapshot length transformSize/2. A band whose
// top lies beyond Nyquist is clamped; a band left with no bins is rejected.
func ResolveBand(band Band, transformSize int, sampleRate float64) (BinRange, error) {
	if err := band.Validate(); err != nil {
		return BinRange{}, err
	}
	if transformSize < 2 {
		return BinRange{}, fmt.Errorf("transform size must be at least 2, got %d", transformSize)
	}
	if sampleRate <= 0 {
		return BinRange{}, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	bins := transformSize / 2
	raw := ToBinRange(band, transformSize, sampleRate)
	if nyquist := sampleRate / 2; band.HighHz > nyquist {
		log.Warnf("Analysis: band %s upper bound %.0f Hz exceeds Nyquist %.0f Hz, clamping to bin %d",
			band.Name, band.HighHz, nyquist, bins)
	}

	r := raw.Clamp(bins)
	if r.Len() == 0 {
		return BinRange{}, fmt.Errorf("%w: %s (%.1f-%.1f Hz) maps to %s with %d bins",
			ErrEmptyBand, band.Name, band.LowHz, band.HighHz, raw, bins)
	}
	return r, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
