package device

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/go-audio-eq/internal/chain"
)

// eventBuffer is the capacity of the host event channel. Events beyond it
// are dropped, which is safe because consumers re-enumerate on any event.
const eventBuffer = 64

// WriteHook can veto a write in a MemoryHost. Returning a non-nil error
// rejects the write.
type WriteHook func(h Handle, slot int) error

// GainSlot is passed to a WriteHook for gain writes.
const GainSlot = -1

type memoryDevice struct {
	info  Info
	chain *chain.Chain[float64]
}

// MemoryHost is an in-memory Host backed by software chains. It is used by
// tests and by dry runs of the command-line tool.
type MemoryHost struct {
	mu      sync.Mutex
	devices []*memoryDevice
	next    Handle
	slots   int
	events  chan Event
	closed  bool
	hook    WriteHook
}

// NewMemoryHost returns an empty host whose devices expose slots filter slots.
func NewMemoryHost(slots int) *MemoryHost {
	if slots <= 0 {
		slots = chain.DefaultSlots
	}
	return &MemoryHost{
		next:   1,
		slots:  slots,
		events: make(chan Event, eventBuffer),
	}
}

// SetWriteHook installs a hook consulted before every write.
func (m *MemoryHost) SetWriteHook(hook WriteHook) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

// Attach adds a device and emits DevicesChanged. info.Handle is assigned;
// zero Channels and SampleRate default to stereo at 48 kHz.
func (m *MemoryHost) Attach(info Info) (Handle, error) {
	if info.Channels == 0 {
		info.Channels = 2
	}
	if info.SampleRate == 0 {
		info.SampleRate = 48000
	}
	// A zero Info attaches at full volume; call SetVolume for silence.
	if info.Volume == 0 {
		info.Volume = 1
	}
	c, err := chain.New[float64](m.slots, info.Channels)
	if err != nil {
		return 0, err
	}
	if err := c.SetVolume(info.Volume); err != nil {
		return 0, err
	}
	c.SetMuted(info.Muted)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	info.Handle = m.next
	m.next++
	m.devices = append(m.devices, &memoryDevice{info: info, chain: c})
	m.mu.Unlock()

	m.emit(Event{Kind: DevicesChanged})
	return info.Handle, nil
}

// Detach removes a device and emits DevicesChanged.
func (m *MemoryHost) Detach(h Handle) error {
	m.mu.Lock()
	i := m.indexLocked(h)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrUnknownDevice, h)
	}
	m.devices = slices.Delete(m.devices, i, i+1)
	m.mu.Unlock()

	m.emit(Event{Kind: DevicesChanged})
	return nil
}

// SetSampleRate changes a device's nominal rate, as a driver would after a
// format change, and emits DevicesChanged.
func (m *MemoryHost) SetSampleRate(h Handle, rate float64) error {
	m.mu.Lock()
	d, err := m.getLocked(h)
	if err == nil {
		d.info.SampleRate = rate
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.emit(Event{Kind: DevicesChanged})
	return nil
}

// SetDefault marks h as the default output and emits DefaultDeviceChanged.
func (m *MemoryHost) SetDefault(h Handle) error {
	m.mu.Lock()
	if m.indexLocked(h) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrUnknownDevice, h)
	}
	for _, d := range m.devices {
		d.info.IsDefault = d.info.Handle == h
	}
	m.mu.Unlock()

	m.emit(Event{Kind: DefaultDeviceChanged, Handle: h})
	return nil
}

// Chain returns the processing chain of h.
func (m *MemoryHost) Chain(h Handle) (*chain.Chain[float64], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.getLocked(h)
	if err != nil {
		return nil, err
	}
	return d.chain, nil
}

// Devices implements Host.
func (m *MemoryHost) Devices(_ context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Info, len(m.devices))
	for i, d := range m.devices {
		info := d.info
		info.Volume = d.chain.Volume()
		info.Muted = d.chain.Muted()
		out[i] = info
	}
	return out, nil
}

// Events implements Host.
func (m *MemoryHost) Events() <-chan Event {
	return m.events
}

// SlotCount implements Writer.
func (m *MemoryHost) SlotCount(h Handle) (int, error) {
	c, err := m.Chain(h)
	if err != nil {
		return 0, err
	}
	return c.Slots(), nil
}

// WriteBand implements Writer.
func (m *MemoryHost) WriteBand(ctx context.Context, h Handle, slot int, packed []float64) error {
	c, err := m.writable(ctx, h, slot)
	if err != nil {
		return err
	}
	if err := c.SetBand(slot, packed); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteRejected, err)
	}
	return nil
}

// WriteGain implements Writer.
func (m *MemoryHost) WriteGain(ctx context.Context, h Handle, gain float64) error {
	c, err := m.writable(ctx, h, GainSlot)
	if err != nil {
		return err
	}
	if err := c.SetGain(gain); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteRejected, err)
	}
	return nil
}

// SetVolume implements Host and emits VolumeChanged.
func (m *MemoryHost) SetVolume(_ context.Context, h Handle, volume float64) error {
	c, err := m.Chain(h)
	if err != nil {
		return err
	}
	if err := c.SetVolume(volume); err != nil {
		return err
	}
	m.emit(Event{Kind: VolumeChanged, Handle: h})
	return nil
}

// SetMuted implements Host and emits VolumeChanged.
func (m *MemoryHost) SetMuted(_ context.Context, h Handle, muted bool) error {
	c, err := m.Chain(h)
	if err != nil {
		return err
	}
	c.SetMuted(muted)
	m.emit(Event{Kind: VolumeChanged, Handle: h})
	return nil
}

// Close implements Host. The event channel is closed.
func (m *MemoryHost) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

func (m *MemoryHost) writable(ctx context.Context, h Handle, slot int) (*chain.Chain[float64], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	hook := m.hook
	d, err := m.getLocked(h)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(h, slot); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteRejected, err)
		}
	}
	return d.chain, nil
}

func (m *MemoryHost) emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

func (m *MemoryHost) indexLocked(h Handle) int {
	return slices.IndexFunc(m.devices, func(d *memoryDevice) bool { return d.info.Handle == h })
}

func (m *MemoryHost) getLocked(h Handle) (*memoryDevice, error) {
	if m.closed {
		return nil, ErrClosed
	}
	i := m.indexLocked(h)
	if i < 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownDevice, h)
	}
	return m.devices[i], nil
}

var _ Host = (*MemoryHost)(nil)
