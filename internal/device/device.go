// Package device defines the physical device collaborator: enumeration,
// change events and the write path for filter coefficients and gain.
package device

import (
	"context"
	"errors"
	"fmt"
)

// Handle is an opaque, host-assigned device reference. Handles are stable
// while a device stays attached.
type Handle uint32

func (h Handle) String() string { return fmt.Sprintf("dev#%d", uint32(h)) }

// Info describes one attached output device.
type Info struct {
	Handle       Handle
	Name         string
	UID          string
	Manufacturer string
	ModelUID     string
	SampleRate   float64
	Channels     int
	Volume       float64
	Muted        bool
	IsDefault    bool
}

// EventKind classifies host notifications.
type EventKind int

// Event kinds.
const (
	DevicesChanged EventKind = iota + 1
	DefaultDeviceChanged
	VolumeChanged
)

func (k EventKind) String() string {
	switch k {
	case DevicesChanged:
		return "devices-changed"
	case DefaultDeviceChanged:
		return "default-device-changed"
	case VolumeChanged:
		return "volume-changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a host notification. Handle is set for VolumeChanged and
// DefaultDeviceChanged.
type Event struct {
	Kind   EventKind
	Handle Handle
}

// Errors returned by hosts.
var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrClosed        = errors.New("device host closed")
	ErrWriteRejected = errors.New("device rejected write")
)

// Writer is the coefficient and gain write path of a device.
type Writer interface {
	// SlotCount returns the number of filter slots the device exposes.
	SlotCount(h Handle) (int, error)
	// WriteBand writes packed coefficients (channels·5 values) into slot.
	WriteBand(ctx context.Context, h Handle, slot int, packed []float64) error
	// WriteGain sets the linear output gain multiplier.
	WriteGain(ctx context.Context, h Handle, gain float64) error
}

// Host enumerates devices, delivers change events and accepts writes.
// Events are delivered in order on a single channel that is closed by Close.
type Host interface {
	Writer
	Devices(ctx context.Context) ([]Info, error)
	Events() <-chan Event
	SetVolume(ctx context.Context, h Handle, volume float64) error
	SetMuted(ctx context.Context, h Handle, muted bool) error
	Close() error
}
