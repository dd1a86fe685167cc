// SPDX-License-Identifier: MIT
package tui

import (
	"lightsync/internal/analysis"
	"lightsync/internal/log"
)

// Headless is the renderer used without a terminal: it logs levels at debug
// once every Every frames.
type Headless struct {
	Every int
	n     int
}

func (h *Headless) Render(t analysis.EnergyTriple, widths [3]float64) {
	h.n++
	if h.Every > 1 && h.n%h.Every != 0 {
		return
	}
	if log.Enabled(log.LevelDebug) {
		log.Debugf("Levels: bass %5.1f%% mid %5.1f%% treble %5.1f%%", widths[0], widths[1], widths[2])
	}
}

// Frames returns how many frames were rendered.
func (h *Headless) Frames() int { return h.n }
