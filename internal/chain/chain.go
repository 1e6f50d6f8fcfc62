// Package chain implements a software output processing chain: a fixed
// number of biquad slots per channel followed by gain, volume and mute.
//
// A Chain is the write target of the preset applicator. It stores exactly
// what was written, so its State can be compared across applications.
package chain

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/simdops"
)

// DefaultSlots is the slot count of a typical ten-band device EQ.
const DefaultSlots = 10

// MaxSlots bounds the slot count of a chain.
const MaxSlots = 64

// Errors returned by Chain methods.
var (
	ErrInvalidLayout      = errors.New("invalid chain layout")
	ErrSlotOutOfRange     = errors.New("slot out of range")
	ErrCoefficientCount   = errors.New("wrong coefficient count")
	ErrInvalidCoefficient = errors.New("non-finite coefficient")
	ErrInvalidGain        = errors.New("invalid gain")
	ErrInvalidVolume      = errors.New("invalid volume")
	ErrChannelMismatch    = errors.New("channel count mismatch")
)

// State is a copy of everything written to a chain. Filter memory is not
// part of it.
type State struct {
	// Sections is indexed [slot][channel].
	Sections [][]biquad.Section
	Gain     float64
	Volume   float64
	Muted    bool
}

// memory is the transposed direct form II delay line of one section.
type memory struct {
	z1, z2 float64
}

// Chain is safe for concurrent use. Process holds the lock for the whole
// buffer so a band write never lands mid-buffer.
type Chain[F simdops.Float] struct {
	mu       sync.Mutex
	channels int
	sections [][]biquad.Section
	mem      [][]memory
	gain     float64
	volume   float64
	muted    bool
	ops      *simdops.Ops[F]
}

// New returns a chain with every slot neutral, gain 1 and full volume.
func New[F simdops.Float](slots, channels int) (*Chain[F], error) {
	if slots < 1 || slots > MaxSlots {
		return nil, fmt.Errorf("%w: slots %d (must be 1-%d)", ErrInvalidLayout, slots, MaxSlots)
	}
	if channels < 1 || channels > biquad.MaxChannels {
		return nil, fmt.Errorf("%w: channels %d (must be 1-%d)", ErrInvalidLayout, channels, biquad.MaxChannels)
	}

	c := &Chain[F]{
		channels: channels,
		sections: make([][]biquad.Section, slots),
		mem:      make([][]memory, slots),
		gain:     1,
		volume:   1,
		ops:      simdops.For[F](),
	}
	for s := range c.sections {
		c.sections[s] = make([]biquad.Section, channels)
		for ch := range c.sections[s] {
			c.sections[s][ch] = biquad.Neutral()
		}
		c.mem[s] = make([]memory, channels)
	}
	return c, nil
}

// Slots returns the number of filter slots.
func (c *Chain[F]) Slots() int { return len(c.sections) }

// Channels returns the channel count.
func (c *Chain[F]) Channels() int { return c.channels }

// SetBand writes one slot from packed coefficients: channels·5 values in
// b0, b1, b2, a1, a2 order per channel. The slot's filter memory is cleared.
func (c *Chain[F]) SetBand(slot int, packed []float64) error {
	if slot < 0 || slot >= len(c.sections) {
		return fmt.Errorf("%w: %d (have %d)", ErrSlotOutOfRange, slot, len(c.sections))
	}
	want := biquad.PackedLen(1, c.channels)
	if len(packed) != want {
		return fmt.Errorf("%w: want %d, got %d", ErrCoefficientCount, want, len(packed))
	}
	if err := checkFinite(packed); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.channels {
		off := ch * biquad.CoefficientsPerSection
		s, err := biquad.SectionFromValues(packed[off : off+biquad.CoefficientsPerSection])
		if err != nil {
			return err
		}
		c.sections[slot][ch] = s
		c.mem[slot][ch] = memory{}
	}
	return nil
}

// Band returns the section in slot for channel.
func (c *Chain[F]) Band(slot, channel int) (biquad.Section, error) {
	if slot < 0 || slot >= len(c.sections) {
		return biquad.Section{}, fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if channel < 0 || channel >= c.channels {
		return biquad.Section{}, fmt.Errorf("%w: channel %d", ErrChannelMismatch, channel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sections[slot][channel], nil
}

// SetGain sets the linear output gain multiplier.
func (c *Chain[F]) SetGain(g float64) error {
	if err := checkGain(g); err != nil {
		return err
	}
	c.mu.Lock()
	c.gain = g
	c.mu.Unlock()
	return nil
}

// Gain returns the linear output gain multiplier.
func (c *Chain[F]) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

// SetVolume sets the device volume in [0, 1].
func (c *Chain[F]) SetVolume(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: %v (must be 0-1)", ErrInvalidVolume, v)
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
	return nil
}

// Volume returns the device volume.
func (c *Chain[F]) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetMuted mutes or unmutes the output.
func (c *Chain[F]) SetMuted(m bool) {
	c.mu.Lock()
	c.muted = m
	c.mu.Unlock()
}

// Muted reports whether the output is muted.
func (c *Chain[F]) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// State returns a deep copy of the written configuration.
func (c *Chain[F]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Sections: make([][]biquad.Section, len(c.sections)),
		Gain:     c.gain,
		Volume:   c.volume,
		Muted:    c.muted,
	}
	for s := range c.sections {
		st.Sections[s] = append([]biquad.Section(nil), c.sections[s]...)
	}
	return st
}

// Reset clears the filter memory of every slot.
func (c *Chain[F]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.mem {
		clear(c.mem[s])
	}
}

// Load replaces the whole configuration: packed holds consecutive slots in
// the SetBand layout, remaining slots become neutral and the gain is set.
// Nothing is changed when any value is rejected.
func (c *Chain[F]) Load(packed []float64, gain float64) error {
	stride := biquad.PackedLen(1, c.channels)
	if len(packed)%stride != 0 {
		return fmt.Errorf("%w: %d values is not a multiple of %d", ErrCoefficientCount, len(packed), stride)
	}
	if bands := len(packed) / stride; bands > len(c.sections) {
		return fmt.Errorf("%w: %d bands for %d slots", ErrSlotOutOfRange, bands, len(c.sections))
	}
	if err := checkGain(gain); err != nil {
		return err
	}
	if err := checkFinite(packed); err != nil {
		return err
	}

	sections := make([][]biquad.Section, len(c.sections))
	for slot := range sections {
		sections[slot] = make([]biquad.Section, c.channels)
		for ch := range c.channels {
			off := slot*stride + ch*biquad.CoefficientsPerSection
			if off >= len(packed) {
				sections[slot][ch] = biquad.Neutral()
				continue
			}
			sec, err := biquad.SectionFromValues(packed[off : off+biquad.CoefficientsPerSection])
			if err != nil {
				return err
			}
			sections[slot][ch] = sec
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gain = gain
	for slot := range sections {
		copy(c.sections[slot], sections[slot])
		clear(c.mem[slot])
	}
	return nil
}

func checkGain(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidGain, g)
	}
	return nil
}

func checkFinite(packed []float64) error {
	for i, v := range packed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is %v", ErrInvalidCoefficient, i, v)
		}
	}
	return nil
}
