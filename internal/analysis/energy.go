// SPDX-License-Identifier: MIT
package analysis

import "math"

// maxMagnitude is the full-scale value of a byte magnitude sample.
const maxMagnitude = 255.0

// EnergyOf returns the root mean square of the normalized magnitudes in r.
// Each sample is scaled to [0,1] by dividing by 255, so the result is in [0,1].
// The range is clamped to the snapshot; an empty range yields 0.
func EnergyOf(snapshot []uint8, r BinRange) float64 {
	r = r.Clamp(len(snapshot))
	n := r.Len()
	if n == 0 {
		return 0
	}

	var sum float64
	for _, v := range snapshot[r.Start:r.End] {
		x := float64(v) / maxMagnitude
		sum += x * x
	}
	return math.Sqrt(sum / float64(n))
}
