// Package match maps attached devices to configured device entries.
//
// Policy: for each device, the first entry in document order whose
// non-empty criteria all equal the device's fields wins. Entries are not
// exclusive, an entry with no criteria matches nothing, and unmatched
// devices are simply absent from the result.
package match

import (
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/settings"
)

// Ambiguity records a device that satisfied more than one entry. It is
// informational: the first entry is used.
type Ambiguity struct {
	Handle device.Handle
	// Entries are the indices of every satisfied entry, in document order.
	Entries []int
}

// Result is the outcome of Resolve.
type Result struct {
	entries     map[device.Handle]int
	ambiguities []Ambiguity
}

// Entry returns the index of the entry matched to h.
func (r Result) Entry(h device.Handle) (int, bool) {
	i, ok := r.entries[h]
	return i, ok
}

// Len returns the number of matched devices.
func (r Result) Len() int { return len(r.entries) }

// Ambiguities lists devices that satisfied several entries, in device order.
func (r Result) Ambiguities() []Ambiguity {
	return append([]Ambiguity(nil), r.ambiguities...)
}

// Satisfies reports whether m selects the device. Empty criteria select nothing.
func Satisfies(m settings.DeviceMatch, d device.Info) bool {
	if m.IsEmpty() {
		return false
	}
	return (m.Name == "" || m.Name == d.Name) &&
		(m.DeviceUID == "" || m.DeviceUID == d.UID) &&
		(m.Manufacturer == "" || m.Manufacturer == d.Manufacturer) &&
		(m.ModelUID == "" || m.ModelUID == d.ModelUID)
}

// Resolve matches every device against entries. It is a pure function of
// its inputs.
func Resolve(entries []settings.DeviceEntry, devices []device.Info) Result {
	r := Result{entries: make(map[device.Handle]int, len(devices))}
	for _, d := range devices {
		var hits []int
		for i, e := range entries {
			if Satisfies(e.Match, d) {
				hits = append(hits, i)
			}
		}
		if len(hits) == 0 {
			continue
		}
		r.entries[d.Handle] = hits[0]
		if len(hits) > 1 {
			r.ambiguities = append(r.ambiguities, Ambiguity{Handle: d.Handle, Entries: hits})
		}
	}
	return r
}
