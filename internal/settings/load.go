package settings

import (
	"math"
	"strconv"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/document"
)

// Load builds device entries from a document that has passed typecheck
// against DefaultSchema. Entries and presets keep document order.
// Kinds are still checked through the accessors, so an unvalidated
// document yields a *LoadError rather than a panic.
func Load(doc document.Value) ([]DeviceEntry, error) {
	l := loader{}
	devices, ok := doc.Get(keyDevices)
	if !ok {
		return nil, l.fail(keyDevices, "missing", nil)
	}
	items, err := devices.AsArray()
	if err != nil {
		return nil, l.fail(keyDevices, "not an array", err)
	}

	entries := make([]DeviceEntry, 0, len(items))
	for i, item := range items {
		e, err := l.device(item, keyDevices+index(i))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type loader struct{}

func (loader) fail(path, reason string, err error) error {
	return &LoadError{Path: path, Reason: reason, Err: err}
}

func index(i int) string { return "[" + strconv.Itoa(i) + "]" }

func (l loader) str(obj document.Value, key, path string, required bool) (string, error) {
	v, ok := obj.Get(key)
	if !ok {
		if required {
			return "", l.fail(path+"."+key, "missing", nil)
		}
		return "", nil
	}
	s, err := v.AsString()
	if err != nil {
		return "", l.fail(path+"."+key, "not a string", err)
	}
	return s, nil
}

func (l loader) num(obj document.Value, key, path string, def float64, required bool) (float64, error) {
	v, ok := obj.Get(key)
	if !ok {
		if required {
			return 0, l.fail(path+"."+key, "missing", nil)
		}
		return def, nil
	}
	n, err := v.AsNumber()
	if err != nil {
		return 0, l.fail(path+"."+key, "not a number", err)
	}
	return n, nil
}

func (l loader) array(obj document.Value, key, path string) ([]document.Value, error) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, l.fail(path+"."+key, "missing", nil)
	}
	items, err := v.AsArray()
	if err != nil {
		return nil, l.fail(path+"."+key, "not an array", err)
	}
	return items, nil
}

func (l loader) device(v document.Value, path string) (DeviceEntry, error) {
	var e DeviceEntry
	var err error

	if e.Name, err = l.str(v, keyName, path, true); err != nil {
		return DeviceEntry{}, err
	}
	if e.Symbol, err = l.str(v, keySymbol, path, false); err != nil {
		return DeviceEntry{}, err
	}
	hidden, err := l.num(v, keyHidden, path, 0, false)
	if err != nil {
		return DeviceEntry{}, err
	}
	e.Hidden = hidden != 0

	if m, ok := v.Get(keyMatch); ok {
		if e.Match, err = l.match(m, path+"."+keyMatch); err != nil {
			return DeviceEntry{}, err
		}
	}

	presets, err := l.array(v, keyPresets, path)
	if err != nil {
		return DeviceEntry{}, err
	}
	seen := make(map[string]struct{}, len(presets))
	for i, pv := range presets {
		ppath := path + "." + keyPresets + index(i)
		p, err := l.preset(pv, ppath)
		if err != nil {
			return DeviceEntry{}, err
		}
		if _, dup := seen[p.Name]; dup {
			return DeviceEntry{}, l.fail(ppath+"."+keyName, "duplicate preset name "+strconv.Quote(p.Name), nil)
		}
		seen[p.Name] = struct{}{}
		e.Presets = append(e.Presets, p)
	}
	return e, nil
}

func (l loader) match(v document.Value, path string) (DeviceMatch, error) {
	if v.Kind() != document.KindObject {
		return DeviceMatch{}, l.fail(path, "not a dictionary", nil)
	}
	var m DeviceMatch
	var err error
	if m.Name, err = l.str(v, keyName, path, false); err != nil {
		return DeviceMatch{}, err
	}
	if m.DeviceUID, err = l.str(v, keyDeviceUID, path, false); err != nil {
		return DeviceMatch{}, err
	}
	if m.Manufacturer, err = l.str(v, keyManufacturer, path, false); err != nil {
		return DeviceMatch{}, err
	}
	if m.ModelUID, err = l.str(v, keyModelUID, path, false); err != nil {
		return DeviceMatch{}, err
	}
	return m, nil
}

func (l loader) preset(v document.Value, path string) (Preset, error) {
	name, err := l.str(v, keyName, path, true)
	if err != nil {
		return Preset{}, err
	}
	if name == "" {
		return Preset{}, l.fail(path+"."+keyName, "preset name is empty", nil)
	}
	mult, err := l.num(v, keyMultiplier, path, DefaultMultiplier, false)
	if err != nil {
		return Preset{}, err
	}
	if math.IsNaN(mult) || math.IsInf(mult, 0) || mult < 0 {
		return Preset{}, l.fail(path+"."+keyMultiplier,
			"multiplier must be finite and non-negative, got "+strconv.FormatFloat(mult, 'g', -1, 64), nil)
	}

	items, err := l.array(v, keyBiquads, path)
	if err != nil {
		return Preset{}, err
	}
	bands := make([]biquad.Descriptor, 0, len(items))
	for i, bv := range items {
		d, err := l.band(bv, path+"."+keyBiquads+index(i))
		if err != nil {
			return Preset{}, err
		}
		bands = append(bands, d)
	}

	p, err := NewPreset(name, mult, bands...)
	if err != nil {
		return Preset{}, l.fail(path, "invalid preset", err)
	}
	return p, nil
}

func (l loader) band(v document.Value, path string) (biquad.Descriptor, error) {
	typeName, err := l.str(v, keyType, path, true)
	if err != nil {
		return biquad.Descriptor{}, err
	}
	t, err := biquad.ParseType(typeName)
	if err != nil {
		return biquad.Descriptor{}, l.fail(path+"."+keyType, "unsupported filter type", err)
	}
	freq, err := l.num(v, keyFrequency, path, 0, true)
	if err != nil {
		return biquad.Descriptor{}, err
	}
	q, err := l.num(v, keyQ, path, 0, true)
	if err != nil {
		return biquad.Descriptor{}, err
	}
	gain, err := l.num(v, keyGain, path, 0, false)
	if err != nil {
		return biquad.Descriptor{}, err
	}

	d, err := biquad.NewDescriptor(t, freq, q, gain)
	if err != nil {
		return biquad.Descriptor{}, l.fail(path+"."+invalidField(freq, q), "invalid band", err)
	}
	return d, nil
}

// invalidField names the field NewDescriptor rejected.
func invalidField(freq, q float64) string {
	switch {
	case !(freq > 0) || math.IsInf(freq, 0):
		return keyFrequency
	case !(q > 0) || math.IsInf(q, 0):
		return keyQ
	default:
		return keyGain
	}
}
