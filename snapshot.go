package audioeq

import (
	"time"

	"github.com/tphakala/go-audio-eq/internal/settings"
)

// DeviceState is the coordinator's view of one attached device.
type DeviceState struct {
	Info DeviceInfo

	// Mapped is false for devices no entry matched; they run pass-through.
	// It is also false, with ApplyError set, when settings changed but the
	// devices could not be re-enumerated; the next refresh maps them again.
	Mapped bool
	// EntryIndex is the index of the matched entry, or -1.
	EntryIndex int
	// Entry is the matched entry's name.
	Entry string
	// Hidden mirrors the matched entry's hidden flag.
	Hidden bool
	// Preset is the name of the applied preset. Empty for pass-through.
	Preset string
	// Presets lists the entry's preset names in document order.
	Presets []string
	// ApplyError is the last application error for this device, if any.
	ApplyError error
}

// Snapshot is an immutable view of the coordinator state. It is replaced,
// never modified, after every worker step.
type Snapshot struct {
	// Generation identifies the loaded settings. It changes on every
	// successful reload that altered the file.
	Generation string
	Settings   *settings.Snapshot
	Devices    []DeviceState
	// ReloadError is the error of the most recent reload, nil on success.
	ReloadError error
	UpdatedAt   time.Time
}

// Entries returns the active device entries, or nil before the first load.
func (s *Snapshot) Entries() []DeviceEntry {
	if s == nil || s.Settings == nil {
		return nil
	}
	return s.Settings.Entries
}

// Device returns the state of h.
func (s *Snapshot) Device(h Handle) (DeviceState, bool) {
	if s == nil {
		return DeviceState{}, false
	}
	for _, d := range s.Devices {
		if d.Info.Handle == h {
			return d, true
		}
	}
	return DeviceState{}, false
}
