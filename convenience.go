package audioeq

import (
	"fmt"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/chain"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/match"
	"github.com/tphakala/go-audio-eq/internal/settings"
	"github.com/tphakala/go-audio-eq/internal/simdops"
	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

// LoadFile reads and validates a settings file with DefaultSchema. The
// extension (.json, .yaml or .yml) selects the format.
func LoadFile(path string) ([]DeviceEntry, error) {
	snap, err := settings.ReadFile(path, DefaultSchema())
	if err != nil {
		return nil, err
	}
	return snap.Entries, nil
}

// ParseSettings validates raw settings in the named format ("json" or
// "yaml") against schema. A nil schema uses DefaultSchema.
func ParseSettings(data []byte, format string, schema Schema) ([]DeviceEntry, error) {
	var f settings.Format
	switch format {
	case "json":
		f = settings.FormatJSON
	case "yaml", "yml":
		f = settings.FormatYAML
	default:
		return nil, fmt.Errorf("%w: %q", settings.ErrUnknownFormat, format)
	}
	if schema == nil {
		schema = DefaultSchema()
	}
	checker, err := typecheck.Compile(schema)
	if err != nil {
		return nil, err
	}
	return settings.Parse(data, f, checker)
}

// Coefficients synthesizes the preset's bands for sampleRate and packs them
// for channels identical channels.
func Coefficients(p Preset, sampleRate float64, channels int) ([]float64, error) {
	return biquad.Pack(p.Bands(), sampleRate, channels)
}

// FindPreset looks up a preset by entry and preset name.
func FindPreset(entries []DeviceEntry, entry, preset string) (Preset, error) {
	for _, e := range entries {
		if e.Name != entry {
			continue
		}
		p, ok := e.Preset(preset)
		if !ok {
			return Preset{}, fmt.Errorf("%w: %q on %q", ErrUnknownPreset, preset, entry)
		}
		return p, nil
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownEntry, entry)
}

// MatchDevice returns the index of the first entry whose criteria d
// satisfies.
func MatchDevice(entries []DeviceEntry, d DeviceInfo) (int, bool) {
	return match.Resolve(entries, []device.Info{d}).Entry(d.Handle)
}

// Render filters planar audio in place through p: every band in order,
// then the preset multiplier.
func Render[F simdops.Float](p Preset, sampleRate float64, planar [][]F) error {
	if len(planar) == 0 {
		return nil
	}
	channels := len(planar)
	packed, err := Coefficients(p, sampleRate, channels)
	if err != nil {
		return err
	}

	c, err := chain.New[F](max(p.BandCount(), 1), channels)
	if err != nil {
		return err
	}
	if err := c.Load(packed, p.Multiplier); err != nil {
		return err
	}
	return c.Process(planar)
}
