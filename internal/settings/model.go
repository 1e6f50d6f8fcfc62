// Package settings holds the device and preset model, loads it from a
// validated configuration document and keeps the last known good copy of
// the settings file.
package settings

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/go-audio-eq/internal/biquad"
)

// DefaultMultiplier is the output gain used when a preset omits it.
const DefaultMultiplier = 1.0

// Preset is a named, ordered set of bands plus an output gain multiplier.
// Presets are immutable once built.
type Preset struct {
	Name       string
	Multiplier float64
	bands      []biquad.Descriptor
}

// NewPreset validates and builds a preset. Bands keep their order: band i
// is written to processing slot i.
func NewPreset(name string, multiplier float64, bands ...biquad.Descriptor) (Preset, error) {
	if name == "" {
		return Preset{}, fmt.Errorf("%w: preset name is empty", ErrLoad)
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier < 0 {
		return Preset{}, fmt.Errorf("%w: preset %q: multiplier must be finite and non-negative, got %v",
			ErrLoad, name, multiplier)
	}
	for i, b := range bands {
		if err := b.Validate(); err != nil {
			return Preset{}, fmt.Errorf("%w: preset %q band %d: %w", ErrLoad, name, i, err)
		}
	}
	return Preset{Name: name, Multiplier: multiplier, bands: slices.Clone(bands)}, nil
}

// Bands returns a copy of the preset's bands in slot order.
func (p Preset) Bands() []biquad.Descriptor {
	return slices.Clone(p.bands)
}

// BandCount returns the number of bands.
func (p Preset) BandCount() int { return len(p.bands) }

// DeviceMatch holds the criteria identifying a physical device. Empty
// fields are ignored; an all-empty match satisfies no device.
type DeviceMatch struct {
	Name         string
	DeviceUID    string
	Manufacturer string
	ModelUID     string
}

// IsEmpty reports whether no criterion is set.
func (m DeviceMatch) IsEmpty() bool {
	return m == DeviceMatch{}
}

// DeviceEntry is one configured device with its presets in document order.
type DeviceEntry struct {
	Name    string
	Symbol  string
	Hidden  bool
	Match   DeviceMatch
	Presets []Preset
}

// Preset returns the preset with the given name.
func (e DeviceEntry) Preset(name string) (Preset, bool) {
	for _, p := range e.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultPreset returns the first preset, which is applied when no
// selection has been made for a device.
func (e DeviceEntry) DefaultPreset() (Preset, bool) {
	if len(e.Presets) == 0 {
		return Preset{}, false
	}
	return e.Presets[0], true
}
