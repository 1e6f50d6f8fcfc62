package biquad

import (
	"fmt"
	"math"

	"github.com/tphakala/go-audio-eq/internal/mathutil"
)

// intermediates are the quantities every cookbook design derives from.
type intermediates struct {
	cosW  float64 // cos(ω)
	sinW  float64 // sin(ω)
	alpha float64 // sin(ω)/(2Q)
	a     float64 // 10^(gain/40)
}

// Synthesize computes the raw coefficients of d at sampleRate.
//
// The caller normalizes by A0 (see Coefficients.Normalize). Frequencies are
// clamped to [MinFrequency, MaxNyquistFraction·sampleRate] and Q is raised
// to at least MinQ; non-finite descriptor fields are rejected.
func Synthesize(d Descriptor, sampleRate float64) (Coefficients, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return Coefficients{}, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if !mathutil.IsFinite(d.Frequency) || !mathutil.IsFinite(d.Q) || !mathutil.IsFinite(d.Gain) {
		return Coefficients{}, fmt.Errorf("%w: non-finite field in %v", ErrInvalidDescriptor, d)
	}

	v := computeIntermediates(d, sampleRate)

	switch d.Type {
	case Peaking:
		return peaking(v), nil
	case Lowpass:
		return lowpass(v), nil
	case Highpass:
		return highpass(v), nil
	case Bandpass:
		return bandpass(v), nil
	case Lowshelf:
		return lowshelf(v), nil
	case Highshelf:
		return highshelf(v), nil
	default:
		return Coefficients{}, fmt.Errorf("%w: %v", ErrUnknownType, d.Type)
	}
}

// SynthesizeSection is Synthesize followed by Normalize.
func SynthesizeSection(d Descriptor, sampleRate float64) (Section, error) {
	c, err := Synthesize(d, sampleRate)
	if err != nil {
		return Section{}, err
	}
	return c.Normalize(), nil
}

func computeIntermediates(d Descriptor, sampleRate float64) intermediates {
	freq := mathutil.Clamp(d.Frequency, MinFrequency, MaxNyquistFraction*sampleRate)
	q := math.Max(d.Q, MinQ)

	w := radiansPerCycle * freq / sampleRate
	sinW, cosW := math.Sincos(w)

	return intermediates{
		cosW:  cosW,
		sinW:  sinW,
		alpha: sinW / (halfFactor * q),
		a:     mathutil.CookbookAmplitude(d.Gain),
	}
}

func peaking(v intermediates) Coefficients {
	return Coefficients{
		B0: 1 + v.alpha*v.a,
		B1: -2 * v.cosW,
		B2: 1 - v.alpha*v.a,
		A0: 1 + v.alpha/v.a,
		A1: -2 * v.cosW,
		A2: 1 - v.alpha/v.a,
	}
}

func lowpass(v intermediates) Coefficients {
	b := (1 - v.cosW) / halfFactor
	return Coefficients{
		B0: b,
		B1: 1 - v.cosW,
		B2: b,
		A0: 1 + v.alpha,
		A1: -2 * v.cosW,
		A2: 1 - v.alpha,
	}
}

func highpass(v intermediates) Coefficients {
	b := (1 + v.cosW) / halfFactor
	return Coefficients{
		B0: b,
		B1: -(1 + v.cosW),
		B2: b,
		A0: 1 + v.alpha,
		A1: -2 * v.cosW,
		A2: 1 - v.alpha,
	}
}

// bandpass is the constant 0 dB peak gain variant.
func bandpass(v intermediates) Coefficients {
	return Coefficients{
		B0: v.alpha,
		B1: 0,
		B2: -v.alpha,
		A0: 1 + v.alpha,
		A1: -2 * v.cosW,
		A2: 1 - v.alpha,
	}
}

func lowshelf(v intermediates) Coefficients {
	a := v.a
	k := 2 * math.Sqrt(a) * v.alpha
	return Coefficients{
		B0: a * ((a + 1) - (a-1)*v.cosW + k),
		B1: 2 * a * ((a - 1) - (a+1)*v.cosW),
		B2: a * ((a + 1) - (a-1)*v.cosW - k),
		A0: (a + 1) + (a-1)*v.cosW + k,
		A1: -2 * ((a - 1) + (a+1)*v.cosW),
		A2: (a + 1) + (a-1)*v.cosW - k,
	}
}

func highshelf(v intermediates) Coefficients {
	a := v.a
	k := 2 * math.Sqrt(a) * v.alpha
	return Coefficients{
		B0: a * ((a + 1) + (a-1)*v.cosW + k),
		B1: -2 * a * ((a - 1) + (a+1)*v.cosW),
		B2: a * ((a + 1) + (a-1)*v.cosW - k),
		A0: (a + 1) - (a-1)*v.cosW + k,
		A1: 2 * ((a - 1) - (a+1)*v.cosW),
		A2: (a + 1) - (a-1)*v.cosW - k,
	}
}
