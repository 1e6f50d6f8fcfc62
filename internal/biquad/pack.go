package biquad

import "fmt"

// PackedLen returns the number of values FillCoefficients writes for the
// given band and channel counts.
func PackedLen(bands, channels int) int {
	return bands * channels * CoefficientsPerSection
}

// FillCoefficients writes the normalized coefficients of every descriptor
// into dst and returns the number of values written.
//
// Layout is band-major: band i, channel c occupies
// dst[(i·channels+c)·5 : (i·channels+c)·5+5] as b0, b1, b2, a1, a2.
// Every channel receives identical coefficients.
func FillCoefficients(dst []float64, descs []Descriptor, sampleRate float64, channels int) (int, error) {
	if channels < 1 || channels > MaxChannels {
		return 0, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidChannels, channels, MaxChannels)
	}

	need := PackedLen(len(descs), channels)
	if len(dst) < need {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, need, len(dst))
	}

	for i, d := range descs {
		s, err := SynthesizeSection(d, sampleRate)
		if err != nil {
			return 0, fmt.Errorf("band %d: %w", i, err)
		}
		FillSection(dst[i*channels*CoefficientsPerSection:], s, channels)
	}

	return need, nil
}

// FillSection replicates one section across channels starting at dst[0].
// dst must hold at least channels·5 values.
func FillSection(dst []float64, s Section, channels int) {
	vals := s.Values()
	for c := range channels {
		copy(dst[c*CoefficientsPerSection:(c+1)*CoefficientsPerSection], vals[:])
	}
}

// Pack allocates and fills a coefficient buffer for descs.
func Pack(descs []Descriptor, sampleRate float64, channels int) ([]float64, error) {
	if channels < 1 || channels > MaxChannels {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidChannels, channels, MaxChannels)
	}
	dst := make([]float64, PackedLen(len(descs), channels))
	if _, err := FillCoefficients(dst, descs, sampleRate, channels); err != nil {
		return nil, err
	}
	return dst, nil
}

// PackSection returns a single section replicated for channels.
func PackSection(s Section, channels int) []float64 {
	dst := make([]float64, PackedLen(1, channels))
	FillSection(dst, s, channels)
	return dst
}
