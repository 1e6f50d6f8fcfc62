package biquad

import "math"

// Synthesis limits.
const (
	// MinQ is the smallest quality factor used during synthesis. Smaller
	// values are raised to MinQ so that α = sin(ω)/(2Q) stays finite.
	MinQ = 1e-4

	// MinFrequency is the lowest center/corner frequency in Hz used during
	// synthesis. Lower values are raised to it.
	MinFrequency = 1e-3

	// MaxNyquistFraction bounds the frequency to this fraction of the sample
	// rate. Frequencies at or above Nyquist are lowered to it.
	MaxNyquistFraction = 0.499
)

// Packed layout constants.
const (
	// CoefficientsPerSection is the number of normalized values written per
	// band and channel: b0, b1, b2, a1, a2.
	CoefficientsPerSection = 5

	// MaxChannels bounds the channel count accepted by the packers.
	MaxChannels = 64
)

const (
	radiansPerCycle = 2 * math.Pi
	halfFactor      = 2.0
)
