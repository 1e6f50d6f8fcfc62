package biquad

import (
	"math/cmplx"

	"github.com/tphakala/go-audio-eq/internal/mathutil"
)

// Response computes the complex frequency response H(e^jω) of s at freqHz.
func (s Section) Response(freqHz, sampleRate float64) complex128 {
	w := radiansPerCycle * freqHz / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1

	num := complex(s.B0, 0) + complex(s.B1, 0)*z1 + complex(s.B2, 0)*z2
	den := 1 + complex(s.A1, 0)*z1 + complex(s.A2, 0)*z2
	return num / den
}

// MagnitudeDB returns 20·log10|H(f)|.
func (s Section) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return mathutil.AmplitudeToDB(cmplx.Abs(s.Response(freqHz, sampleRate)))
}

// CascadeMagnitudeDB returns the magnitude in dB of sections applied in
// series, followed by a linear gain.
func CascadeMagnitudeDB(sections []Section, gain, freqHz, sampleRate float64) float64 {
	h := complex(gain, 0)
	for _, s := range sections {
		h *= s.Response(freqHz, sampleRate)
	}
	return mathutil.AmplitudeToDB(cmplx.Abs(h))
}
