package audioeq

import (
	"github.com/tphakala/go-audio-eq/internal/apply"
	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/settings"
	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

// Model types.
type (
	// FilterType selects a band's response.
	FilterType = biquad.Type
	// Band is the parametric description of one filter band.
	Band = biquad.Descriptor
	// Preset is a named, ordered set of bands plus an output gain multiplier.
	Preset = settings.Preset
	// DeviceMatch holds the criteria identifying a physical device.
	DeviceMatch = settings.DeviceMatch
	// DeviceEntry is one configured device with its presets.
	DeviceEntry = settings.DeviceEntry
	// Schema maps settings document paths to value kinds.
	Schema = typecheck.Schema
)

// Device collaborator types.
type (
	Handle       = device.Handle
	DeviceInfo   = device.Info
	Host         = device.Host
	Event        = device.Event
	EventKind    = device.EventKind
	MemoryHost   = device.MemoryHost
	DeviceWriter = device.Writer
)

// Filter types.
const (
	Peaking   = biquad.Peaking
	Lowpass   = biquad.Lowpass
	Highpass  = biquad.Highpass
	Bandpass  = biquad.Bandpass
	Lowshelf  = biquad.Lowshelf
	Highshelf = biquad.Highshelf
)

// Error categories, for use with errors.Is.
var (
	ErrSchemaUnknownPath = typecheck.ErrUnknownPath
	ErrSchemaWrongType   = typecheck.ErrWrongType
	ErrSchemaUnknownType = typecheck.ErrUnknownType
	ErrLoad              = settings.ErrLoad
	ErrHardwareWrite     = apply.ErrHardwareWrite
)

// Typed errors, for use with errors.As.
type (
	SchemaError        = typecheck.SchemaError
	LoadError          = settings.LoadError
	HardwareWriteError = apply.HardwareWriteError
)

// NewBand validates and returns a band.
func NewBand(t FilterType, frequency, q, gain float64) (Band, error) {
	return biquad.NewDescriptor(t, frequency, q, gain)
}

// NewPreset validates and returns a preset.
func NewPreset(name string, multiplier float64, bands ...Band) (Preset, error) {
	return settings.NewPreset(name, multiplier, bands...)
}

// ParseFilterType parses a filter type name case-insensitively.
func ParseFilterType(s string) (FilterType, error) {
	return biquad.ParseType(s)
}

// DefaultSchema returns the schema of the settings document.
func DefaultSchema() Schema {
	return settings.DefaultSchema()
}

// NewMemoryHost returns an in-memory device host with slots filter slots
// per device.
func NewMemoryHost(slots int) *MemoryHost {
	return device.NewMemoryHost(slots)
}
