// Package analysis measures the frequency response of a preset, both from
// a rendered impulse response and analytically from its biquad sections.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/chain"
	"github.com/tphakala/go-audio-eq/internal/mathutil"
	"github.com/tphakala/go-audio-eq/internal/settings"
)

// DefaultLength is the impulse response length. It gives a bin spacing of
// under 3 Hz at 48 kHz.
const DefaultLength = 1 << 14

// ErrInvalidLength is returned for impulse lengths that are not a power of
// two of at least 64.
var ErrInvalidLength = errors.New("invalid impulse response length")

// Point is the response of a preset at one frequency.
type Point struct {
	Frequency  float64
	MeasuredDB float64 // from the rendered impulse response
	AnalyticDB float64 // from the section transfer functions
}

// OctaveCenters returns the ISO octave band centers from 31.5 Hz to 16 kHz.
func OctaveCenters() []float64 {
	return []float64{31.5, 63, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}
}

// Sections synthesizes the preset's bands.
func Sections(p settings.Preset, sampleRate float64) ([]biquad.Section, error) {
	bands := p.Bands()
	out := make([]biquad.Section, len(bands))
	for i, b := range bands {
		s, err := biquad.SynthesizeSection(b, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// ImpulseResponse renders n samples of the preset's response to a unit
// impulse through a processing chain.
func ImpulseResponse(p settings.Preset, sampleRate float64, n int) ([]float64, error) {
	sections, err := Sections(p, sampleRate)
	if err != nil {
		return nil, err
	}
	c, err := chain.New[float64](max(len(sections), 1), 1)
	if err != nil {
		return nil, err
	}
	packed := make([]float64, 0, biquad.PackedLen(len(sections), 1))
	for _, s := range sections {
		packed = append(packed, biquad.PackSection(s, 1)...)
	}
	if err := c.Load(packed, p.Multiplier); err != nil {
		return nil, err
	}

	h := make([]float64, n)
	if n > 0 {
		h[0] = 1
	}
	if err := c.Process([][]float64{h}); err != nil {
		return nil, err
	}
	return h, nil
}

// CascadeResponse returns the complex response of sections in series times
// gain at every frequency.
func CascadeResponse(sections []biquad.Section, gain float64, freqs []float64, sampleRate float64) []complex128 {
	out := make([]complex128, len(freqs))
	for i := range out {
		out[i] = complex(gain, 0)
	}
	stage := make([]complex128, len(freqs))
	for _, s := range sections {
		for i, f := range freqs {
			stage[i] = s.Response(f, sampleRate)
		}
		c128.Mul(out, out, stage)
	}
	return out
}

// Measure compares the measured and analytic magnitude of p at freqs.
// Each frequency is rounded to the nearest FFT bin; frequencies at or
// above Nyquist are skipped. n must be a power of two.
func Measure(p settings.Preset, sampleRate float64, n int, freqs []float64) ([]Point, error) {
	if n < 64 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	h, err := ImpulseResponse(p, sampleRate, n)
	if err != nil {
		return nil, err
	}
	sections, err := Sections(p, sampleRate)
	if err != nil {
		return nil, err
	}

	fft := fourier.NewFFT(n)
	spectrum := fft.Coefficients(nil, h)

	var bins []int
	var binFreqs []float64
	for _, f := range freqs {
		if f <= 0 || f >= sampleRate/2 {
			continue
		}
		bin := min(int(math.Round(f*float64(n)/sampleRate)), len(spectrum)-1)
		bins = append(bins, bin)
		binFreqs = append(binFreqs, fft.Freq(bin)*sampleRate)
	}
	analytic := CascadeResponse(sections, p.Multiplier, binFreqs, sampleRate)

	points := make([]Point, len(bins))
	for i, bin := range bins {
		points[i] = Point{
			Frequency:  binFreqs[i],
			MeasuredDB: mathutil.AmplitudeToDB(cmplx.Abs(spectrum[bin])),
			AnalyticDB: mathutil.AmplitudeToDB(cmplx.Abs(analytic[i])),
		}
	}
	return points, nil
}

// MaxDeviation returns the largest absolute difference between measured
// and analytic magnitude, in dB.
func MaxDeviation(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	measured := make([]float64, len(points))
	analytic := make([]float64, len(points))
	for i, p := range points {
		measured[i] = p.MeasuredDB
		analytic[i] = p.AnalyticDB
	}
	return floats.Distance(measured, analytic, math.Inf(1))
}
