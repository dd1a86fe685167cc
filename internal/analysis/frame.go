// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"lightsync/internal/log"
)

// minWidth is the smallest bar width in percent, so an idle bar stays visible.
const minWidth = 0.1

// EnergyTriple holds one frame's normalized band energies.
type EnergyTriple struct {
	Bass   float64
	Mid    float64
	Treble float64
}

// Values returns the energies in wire order.
func (e EnergyTriple) Values() [3]float64 {
	return [3]float64{e.Bass, e.Mid, e.Treble}
}

// FrameProcessor reduces a spectral snapshot to an EnergyTriple using three
// precomputed bin ranges. It holds no per-frame state.
type FrameProcessor struct {
	bands  [3]Band
	ranges [3]BinRange
}

// NewFrameProcessor resolves the bass, mid and treble bands for the given
// transform. Any invalid or empty band is a configuration error.
func NewFrameProcessor(bands [3]Band, transformSize int, sampleRate float64) (*FrameProcessor, error) {
	p := &FrameProcessor{bands: bands}
	for i, b := range bands {
		r, err := ResolveBand(b, transformSize, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("resolve band %d: %w", i, err)
		}
		p.ranges[i] = r
	}
	log.Infof("Analysis: FrameProcessor bins %s=%s %s=%s %s=%s (size %d, %.0f Hz)",
		bands[0].Name, p.ranges[0], bands[1].Name, p.ranges[1], bands[2].Name, p.ranges[2],
		transformSize, sampleRate)
	return p, nil
}

// Ranges returns the resolved bin ranges in band order.
func (p *FrameProcessor) Ranges() [3]BinRange {
	return p.ranges
}

// Bands returns the configured bands.
func (p *FrameProcessor) Bands() [3]Band {
	return p.bands
}

// Process computes the band energies of snapshot.
func (p *FrameProcessor) Process(snapshot []uint8) EnergyTriple {
	return EnergyTriple{
		Bass:   EnergyOf(snapshot, p.ranges[0]),
		Mid:    EnergyOf(snapshot, p.ranges[1]),
		Treble: EnergyOf(snapshot, p.ranges[2]),
	}
}

// Widths converts energies to display bar widths in percent, never below 0.1.
func Widths(e EnergyTriple) [3]float64 {
	v := e.Values()
	for i := range v {
		v[i] = max(minWidth, v[i]*100)
	}
	return v
}
