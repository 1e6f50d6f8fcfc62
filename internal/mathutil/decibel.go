// Package mathutil provides small numeric helpers shared by the equalizer
// packages: decibel conversions and range clamping.
package mathutil

import "math"

// DBToAmplitude converts a gain in decibels to a linear amplitude ratio.
func DBToAmplitude(db float64) float64 {
	return math.Pow(decibelBase, db/amplitudeDBFactor)
}

// AmplitudeToDB converts a linear amplitude ratio to decibels.
// Non-positive amplitudes return SilenceDB.
func AmplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return SilenceDB
	}
	return amplitudeDBFactor * math.Log10(amplitude)
}

// PowerToDB converts a squared magnitude to decibels, floored at SilenceDB.
func PowerToDB(power float64) float64 {
	if power <= minPower {
		return SilenceDB
	}
	return powerDBFactor * math.Log10(power)
}

// CookbookAmplitude returns A = 10^(gain/40), the amplitude term used by the
// peaking and shelving designs of the Audio EQ Cookbook.
func CookbookAmplitude(gainDB float64) float64 {
	return math.Pow(decibelBase, gainDB/cookbookDBFactor)
}

// Clamp limits v to [lo, hi]. NaN is returned unchanged.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
