// Package malgohost implements device.Host on top of miniaudio playback
// enumeration. miniaudio exposes no driver-level EQ, so every device gets a
// software processing chain that receives the coefficient and gain writes.
//
// miniaudio reports only a device name and backend ID, so Info.Manufacturer
// and Info.ModelUID stay empty. Entries that match on manufacturer or model
// never bind to devices of this host; match on name or deviceUID instead.
package malgohost

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/go-audio-eq/internal/chain"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/logging"
)

// Defaults for Config fields left zero.
const (
	DefaultSampleRate   = 48000.0
	DefaultChannels     = 2
	DefaultPollInterval = 2 * time.Second
	eventBuffer         = 16
)

// nullDeviceMarker identifies miniaudio's discard device.
const nullDeviceMarker = "Discard all samples"

// Config configures a Host. Sample rate and channel count are the format
// the software chains run at; miniaudio enumeration does not report them.
type Config struct {
	SampleRate   float64
	Channels     int
	Slots        int
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.Slots <= 0 {
		c.Slots = chain.DefaultSlots
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// rawDevice is the subset of malgo.DeviceInfo the host uses.
type rawDevice struct {
	Name      string
	UID       string
	IsDefault bool
}

type enumerator func() ([]rawDevice, error)

type entry struct {
	info  device.Info
	chain *chain.Chain[float32]
}

// Host is a device.Host backed by miniaudio playback devices.
type Host struct {
	cfg    Config
	enum   enumerator
	uninit func()
	logger *slog.Logger

	mu      sync.Mutex
	entries []*entry // enumeration order
	handles map[string]device.Handle
	next    device.Handle
	closed  bool

	events chan device.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens a miniaudio context on the platform backend and starts polling
// for playback device changes.
func New(cfg Config) (*Host, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	enum := func() ([]rawDevice, error) {
		infos, err := mctx.Devices(malgo.Playback)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
		}
		out := make([]rawDevice, 0, len(infos))
		for i := range infos {
			name := infos[i].Name()
			if strings.Contains(name, nullDeviceMarker) {
				continue
			}
			out = append(out, rawDevice{
				Name:      name,
				UID:       decodeID(infos[i].ID.String()),
				IsDefault: infos[i].IsDefault == 1,
			})
		}
		return out, nil
	}

	h, err := newHost(cfg, enum, func() { _ = mctx.Uninit() })
	if err != nil {
		_ = mctx.Uninit()
		return nil, err
	}
	return h, nil
}

func newHost(cfg Config, enum enumerator, uninit func()) (*Host, error) {
	cfg.applyDefaults()
	h := &Host{
		cfg:     cfg,
		enum:    enum,
		uninit:  uninit,
		logger:  logging.Module(cfg.Logger, "malgohost"),
		handles: make(map[string]device.Handle),
		next:    1,
		events:  make(chan device.Event, eventBuffer),
	}
	if _, _, err := h.rescan(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go h.poll(ctx)
	return h, nil
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// decodeID turns miniaudio's hex device ID into text, keeping the raw form
// when it is not valid hex.
func decodeID(id string) string {
	b, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return strings.TrimRight(string(b), "\x00")
}

func (h *Host) poll(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			listChanged, defaultChanged, err := h.rescan()
			if err != nil {
				h.logger.Warn("device enumeration failed", "error", err)
				continue
			}
			if listChanged {
				h.emit(device.Event{Kind: device.DevicesChanged})
			}
			if defaultChanged != 0 {
				h.emit(device.Event{Kind: device.DefaultDeviceChanged, Handle: defaultChanged})
			}
		}
	}
}

// rescan enumerates devices and reconciles entries. Existing devices keep
// their handle and chain.
func (h *Host) rescan() (listChanged bool, newDefault device.Handle, err error) {
	raw, err := h.enum()
	if err != nil {
		return false, 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prevDefault := h.defaultLocked()
	byUID := make(map[string]*entry, len(h.entries))
	for _, e := range h.entries {
		byUID[e.info.UID] = e
	}

	next := make([]*entry, 0, len(raw))
	for _, r := range raw {
		e, ok := byUID[r.UID]
		if !ok {
			c, err := chain.New[float32](h.cfg.Slots, h.cfg.Channels)
			if err != nil {
				return false, 0, err
			}
			handle, known := h.handles[r.UID]
			if !known {
				handle = h.next
				h.next++
				h.handles[r.UID] = handle
			}
			e = &entry{
				// Manufacturer and ModelUID are not available from miniaudio.
				info: device.Info{
					Handle:     handle,
					UID:        r.UID,
					SampleRate: h.cfg.SampleRate,
					Channels:   h.cfg.Channels,
				},
				chain: c,
			}
			listChanged = true
			h.logger.Info("playback device attached", "name", r.Name, "uid", r.UID, "handle", handle)
		}
		e.info.Name = r.Name
		e.info.IsDefault = r.IsDefault
		next = append(next, e)
		delete(byUID, r.UID)
	}
	for uid := range byUID {
		listChanged = true
		h.logger.Info("playback device detached", "uid", uid)
	}
	h.entries = next

	if d := h.defaultLocked(); d != prevDefault && d != 0 {
		newDefault = d
	}
	return listChanged, newDefault, nil
}

func (h *Host) defaultLocked() device.Handle {
	for _, e := range h.entries {
		if e.info.IsDefault {
			return e.info.Handle
		}
	}
	return 0
}

func (h *Host) emit(ev device.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.logger.Debug("event dropped, consumer behind", "kind", ev.Kind.String())
	}
}

func (h *Host) get(handle device.Handle) (*entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, device.ErrClosed
	}
	i := slices.IndexFunc(h.entries, func(e *entry) bool { return e.info.Handle == handle })
	if i < 0 {
		return nil, fmt.Errorf("%w: %v", device.ErrUnknownDevice, handle)
	}
	return h.entries[i], nil
}

// Chain returns the software chain of a device, for the audio path.
func (h *Host) Chain(handle device.Handle) (*chain.Chain[float32], error) {
	e, err := h.get(handle)
	if err != nil {
		return nil, err
	}
	return e.chain, nil
}

// Devices implements device.Host.
func (h *Host) Devices(ctx context.Context) ([]device.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, device.ErrClosed
	}
	out := make([]device.Info, len(h.entries))
	for i, e := range h.entries {
		info := e.info
		info.Volume = e.chain.Volume()
		info.Muted = e.chain.Muted()
		out[i] = info
	}
	return out, nil
}

// Events implements device.Host.
func (h *Host) Events() <-chan device.Event { return h.events }

// SlotCount implements device.Writer.
func (h *Host) SlotCount(handle device.Handle) (int, error) {
	e, err := h.get(handle)
	if err != nil {
		return 0, err
	}
	return e.chain.Slots(), nil
}

// WriteBand implements device.Writer.
func (h *Host) WriteBand(ctx context.Context, handle device.Handle, slot int, packed []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := h.get(handle)
	if err != nil {
		return err
	}
	if err := e.chain.SetBand(slot, packed); err != nil {
		return fmt.Errorf("%w: %w", device.ErrWriteRejected, err)
	}
	return nil
}

// WriteGain implements device.Writer.
func (h *Host) WriteGain(ctx context.Context, handle device.Handle, gain float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := h.get(handle)
	if err != nil {
		return err
	}
	if err := e.chain.SetGain(gain); err != nil {
		return fmt.Errorf("%w: %w", device.ErrWriteRejected, err)
	}
	return nil
}

// SetVolume implements device.Host.
func (h *Host) SetVolume(_ context.Context, handle device.Handle, volume float64) error {
	e, err := h.get(handle)
	if err != nil {
		return err
	}
	if err := e.chain.SetVolume(volume); err != nil {
		return err
	}
	h.emit(device.Event{Kind: device.VolumeChanged, Handle: handle})
	return nil
}

// SetMuted implements device.Host.
func (h *Host) SetMuted(_ context.Context, handle device.Handle, muted bool) error {
	e, err := h.get(handle)
	if err != nil {
		return err
	}
	e.chain.SetMuted(muted)
	h.emit(device.Event{Kind: device.VolumeChanged, Handle: handle})
	return nil
}

// Close stops polling, releases the audio context and closes the event channel.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	if h.uninit != nil {
		h.uninit()
	}

	h.mu.Lock()
	close(h.events)
	h.mu.Unlock()
	return nil
}

// ErrNoDevices is returned by Default when nothing is attached.
var ErrNoDevices = errors.New("no playback devices")

// Default returns the default playback device, or the first one when the
// backend marks none as default.
func (h *Host) Default(ctx context.Context) (device.Info, error) {
	devs, err := h.Devices(ctx)
	if err != nil {
		return device.Info{}, err
	}
	if len(devs) == 0 {
		return device.Info{}, ErrNoDevices
	}
	for _, d := range devs {
		if d.IsDefault {
			return d, nil
		}
	}
	return devs[0], nil
}

var _ device.Host = (*Host)(nil)
