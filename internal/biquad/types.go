// Package biquad synthesizes second-order IIR sections from parametric
// descriptions using the formulas of Robert Bristow-Johnson's Audio EQ
// Cookbook, and packs them into the flat coefficient layout consumed by
// device processing chains.
package biquad

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type selects the filter response of a section.
type Type int

// Supported filter types.
const (
	Peaking Type = iota
	Lowpass
	Highpass
	Bandpass
	Lowshelf
	Highshelf
)

var typeNames = [...]string{
	Peaking:   "peaking",
	Lowpass:   "lowpass",
	Highpass:  "highpass",
	Bandpass:  "bandpass",
	Lowshelf:  "lowshelf",
	Highshelf: "highshelf",
}

// String returns the lower-case document spelling of t.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// UsesGain reports whether the gain field affects the response of t.
func (t Type) UsesGain() bool {
	return t == Peaking || t == Lowshelf || t == Highshelf
}

// ParseType parses a filter type name. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Common errors returned by the package.
var (
	// ErrUnknownType indicates a filter type name outside the six supported kinds.
	ErrUnknownType = errors.New("unknown filter type")

	// ErrInvalidDescriptor indicates a descriptor with non-positive or
	// non-finite frequency or Q.
	ErrInvalidDescriptor = errors.New("invalid filter descriptor")

	// ErrInvalidSampleRate indicates a non-positive or non-finite sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrInvalidChannels indicates a channel count outside [1, MaxChannels].
	ErrInvalidChannels = errors.New("invalid channel count")

	// ErrBufferTooSmall indicates the destination cannot hold the packed coefficients.
	ErrBufferTooSmall = errors.New("coefficient buffer too small")
)

// Descriptor is the parametric description of one band.
// Gain is in dB and only meaningful for Peaking, Lowshelf and Highshelf.
type Descriptor struct {
	Type      Type
	Frequency float64 // Hz
	Q         float64
	Gain      float64 // dB
}

// NewDescriptor validates and returns a descriptor.
func NewDescriptor(t Type, frequency, q, gain float64) (Descriptor, error) {
	d := Descriptor{Type: t, Frequency: frequency, Q: q, Gain: gain}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate checks the descriptor invariants: a known type, frequency > 0,
// Q > 0 and finite values.
func (d Descriptor) Validate() error {
	if d.Type < Peaking || d.Type > Highshelf {
		return fmt.Errorf("%w: %v", ErrUnknownType, d.Type)
	}
	if !(d.Frequency > 0) || math.IsInf(d.Frequency, 0) {
		return fmt.Errorf("%w: frequency must be positive, got %v", ErrInvalidDescriptor, d.Frequency)
	}
	if !(d.Q > 0) || math.IsInf(d.Q, 0) {
		return fmt.Errorf("%w: Q must be positive, got %v", ErrInvalidDescriptor, d.Q)
	}
	if math.IsNaN(d.Gain) || math.IsInf(d.Gain, 0) {
		return fmt.Errorf("%w: gain must be finite, got %v", ErrInvalidDescriptor, d.Gain)
	}
	return nil
}

// String formats d for logs and CLI output.
func (d Descriptor) String() string {
	if d.Type.UsesGain() {
		return fmt.Sprintf("%s f=%gHz Q=%g gain=%+gdB", d.Type, d.Frequency, d.Q, d.Gain)
	}
	return fmt.Sprintf("%s f=%gHz Q=%g", d.Type, d.Frequency, d.Q)
}

// Coefficients holds the raw transfer function of a section:
//
//	H(z) = (B0 + B1·z⁻¹ + B2·z⁻²) / (A0 + A1·z⁻¹ + A2·z⁻²)
type Coefficients struct {
	B0, B1, B2 float64
	A0, A1, A2 float64
}

// Normalize divides every coefficient by A0.
func (c Coefficients) Normalize() Section {
	return Section{
		B0: c.B0 / c.A0,
		B1: c.B1 / c.A0,
		B2: c.B2 / c.A0,
		A1: c.A1 / c.A0,
		A2: c.A2 / c.A0,
	}
}

// Section is a biquad normalized so that a0 = 1.
type Section struct {
	B0, B1, B2 float64 // feedforward
	A1, A2     float64 // feedback
}

// Neutral returns the identity section (pass-through).
func Neutral() Section {
	return Section{B0: 1}
}

// IsNeutral reports whether s passes its input unchanged.
func (s Section) IsNeutral() bool {
	return s == Neutral()
}

// Values returns the section in packed order: b0, b1, b2, a1, a2.
func (s Section) Values() [CoefficientsPerSection]float64 {
	return [CoefficientsPerSection]float64{s.B0, s.B1, s.B2, s.A1, s.A2}
}

// SectionFromValues is the inverse of Section.Values.
func SectionFromValues(v []float64) (Section, error) {
	if len(v) < CoefficientsPerSection {
		return Section{}, fmt.Errorf("%w: need %d values, got %d", ErrBufferTooSmall, CoefficientsPerSection, len(v))
	}
	return Section{B0: v[0], B1: v[1], B2: v[2], A1: v[3], A2: v[4]}, nil
}
