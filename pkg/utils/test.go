// Package utils holds deterministic signal generators shared by tests.
package utils

import "math"

// GenerateSineWave returns size int32 samples of a sine at frequency Hz with
// the given peak amplitude in (0, 1].
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int32(math.Sin(2*math.Pi*frequency*t) * math.MaxInt32 * amplitude)
	}
	return buffer
}

// GenerateChord returns size float samples mixing one sine per frequency,
// scaled so the sum stays within [-amplitude, amplitude].
func GenerateChord(size int, sampleRate, amplitude float64, frequencies ...float64) []float64 {
	buffer := make([]float64, size)
	if len(frequencies) == 0 {
		return buffer
	}
	gain := amplitude / float64(len(frequencies))
	for i := range buffer {
		t := float64(i) / sampleRate
		var s float64
		for _, f := range frequencies {
			s += math.Sin(2 * math.Pi * f * t)
		}
		buffer[i] = s * gain
	}
	return buffer
}

// BinFrequency returns the frequency that lands exactly on bin k.
func BinFrequency(k, fftSize int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(fftSize)
}

// FindPeakBin returns the index of the largest value in [startBin, endBin].
func FindPeakBin(magnitudes []uint8, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
