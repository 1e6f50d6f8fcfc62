package settings

import "github.com/tphakala/go-audio-eq/internal/typecheck"

// Document keys.
const (
	keyDevices      = "devices"
	keyName         = "name"
	keySymbol       = "symbol"
	keyHidden       = "hidden"
	keyMatch        = "match"
	keyDeviceUID    = "deviceUID"
	keyManufacturer = "manufacturer"
	keyModelUID     = "modelUID"
	keyPresets      = "presets"
	keyMultiplier   = "multiplier"
	keyBiquads      = "biquads"
	keyType         = "type"
	keyFrequency    = "frequency"
	keyQ            = "Q"
	keyGain         = "gain"
)

// DefaultSchema returns the schema of the settings document. Booleans are
// declared as Number, which accepts true and false.
func DefaultSchema() typecheck.Schema {
	return typecheck.Schema{
		"devices":                                 typecheck.TypeArray,
		"devices[].name":                          typecheck.TypeString,
		"devices[].symbol?":                       typecheck.TypeString,
		"devices[].hidden?":                       typecheck.TypeNumber,
		"devices[].match?":                        typecheck.TypeDictionary,
		"devices[].match.name?":                   typecheck.TypeString,
		"devices[].match.deviceUID?":              typecheck.TypeString,
		"devices[].match.manufacturer?":           typecheck.TypeString,
		"devices[].match.modelUID?":               typecheck.TypeString,
		"devices[].presets":                       typecheck.TypeArray,
		"devices[].presets[].name":                typecheck.TypeString,
		"devices[].presets[].multiplier?":         typecheck.TypeNumber,
		"devices[].presets[].biquads":             typecheck.TypeArray,
		"devices[].presets[].biquads[].type":      typecheck.TypeString,
		"devices[].presets[].biquads[].frequency": typecheck.TypeNumber,
		"devices[].presets[].biquads[].Q":         typecheck.TypeNumber,
		"devices[].presets[].biquads[].gain?":     typecheck.TypeNumber,
	}
}
