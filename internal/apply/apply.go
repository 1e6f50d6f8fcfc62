// Package apply writes presets into device processing chains.
//
// Every band is synthesized at the device's current sample rate and written
// to the slot equal to its position. Slots beyond the preset are written
// neutral, so nothing from an earlier preset survives, and the gain
// multiplier is written last. Writes are independent: a rejected band is
// logged and the remaining bands and the gain are still written.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/logging"
	"github.com/tphakala/go-audio-eq/internal/settings"
)

// DefaultWriteTimeout bounds a single hardware write.
const DefaultWriteTimeout = 500 * time.Millisecond

// passThroughGain is the gain written for unmapped devices.
const passThroughGain = 1.0

// ErrHardwareWrite is matched by every *HardwareWriteError.
var ErrHardwareWrite = errors.New("hardware write failed")

// ErrSlotCapacity marks a band that has no slot on the device.
var ErrSlotCapacity = errors.New("preset has more bands than the device has slots")

// GainSlot identifies the gain write in a BandError.
const GainSlot = -1

// BandError is one failed write. Slot is GainSlot for the gain write.
type BandError struct {
	Slot int
	Err  error
}

func (e *BandError) Error() string {
	if e.Slot == GainSlot {
		return fmt.Sprintf("gain: %v", e.Err)
	}
	return fmt.Sprintf("slot %d: %v", e.Slot, e.Err)
}

func (e *BandError) Unwrap() error { return e.Err }

// HardwareWriteError aggregates the failed writes of one application.
type HardwareWriteError struct {
	Device device.Handle
	Bands  []*BandError
}

func (e *HardwareWriteError) Error() string {
	return fmt.Sprintf("%v on %v: %d write(s) failed: %v", ErrHardwareWrite, e.Device, len(e.Bands), e.Unwrap())
}

// Is reports whether target is ErrHardwareWrite.
func (e *HardwareWriteError) Is(target error) bool {
	return target == ErrHardwareWrite
}

// Unwrap joins the per-write errors.
func (e *HardwareWriteError) Unwrap() error {
	errs := make([]error, len(e.Bands))
	for i, b := range e.Bands {
		errs[i] = b
	}
	return errors.Join(errs...)
}

// Observer receives application measurements. *metrics.EQMetrics satisfies it.
type Observer interface {
	ObserveSynthesis(d time.Duration)
	BandWriteFailed()
}

type nopObserver struct{}

func (nopObserver) ObserveSynthesis(time.Duration) {}
func (nopObserver) BandWriteFailed()               {}

// Applicator writes presets through a device.Writer. It keeps no state
// between calls.
type Applicator struct {
	writer       device.Writer
	writeTimeout time.Duration
	logger       *slog.Logger
	observer     Observer
}

// Option configures an Applicator.
type Option func(*Applicator)

// WithWriteTimeout bounds every write. Non-positive values keep the default.
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Applicator) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applicator) { a.logger = logging.Module(l, "apply") }
}

// WithObserver sets the measurement observer.
func WithObserver(o Observer) Option {
	return func(a *Applicator) {
		if o != nil {
			a.observer = o
		}
	}
}

// New returns an Applicator writing through w.
func New(w device.Writer, opts ...Option) *Applicator {
	a := &Applicator{
		writer:       w,
		writeTimeout: DefaultWriteTimeout,
		logger:       logging.Discard(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// plan is the full set of writes for one device.
type plan struct {
	slots [][]float64 // packed coefficients per slot
	gain  float64
	// overflow holds band positions with no slot.
	overflow []int
}

// Apply writes preset into dev. It returns nil, a *HardwareWriteError, or
// a setup error (unknown device, invalid sample rate or channel count)
// when nothing could be written.
func (a *Applicator) Apply(ctx context.Context, preset settings.Preset, dev device.Info) error {
	slots, err := a.writer.SlotCount(dev.Handle)
	if err != nil {
		return fmt.Errorf("failed to query slots of %v: %w", dev.Handle, err)
	}

	start := time.Now()
	p, err := buildPlan(preset.Bands(), preset.Multiplier, slots, dev)
	if err != nil {
		return err
	}
	a.observer.ObserveSynthesis(time.Since(start))

	a.logger.Debug("applying preset",
		"device", dev.Name, "handle", dev.Handle, "preset", preset.Name,
		"bands", preset.BandCount(), "slots", slots, "sample_rate", dev.SampleRate)

	return a.execute(ctx, dev.Handle, p)
}

// PassThrough writes neutral sections into every slot and unity gain.
func (a *Applicator) PassThrough(ctx context.Context, dev device.Info) error {
	slots, err := a.writer.SlotCount(dev.Handle)
	if err != nil {
		return fmt.Errorf("failed to query slots of %v: %w", dev.Handle, err)
	}
	p, err := buildPlan(nil, passThroughGain, slots, dev)
	if err != nil {
		return err
	}
	a.logger.Debug("applying pass-through", "device", dev.Name, "handle", dev.Handle)
	return a.execute(ctx, dev.Handle, p)
}

func buildPlan(bands []biquad.Descriptor, gain float64, slots int, dev device.Info) (plan, error) {
	if dev.Channels < 1 || dev.Channels > biquad.MaxChannels {
		return plan{}, fmt.Errorf("%w: %d", biquad.ErrInvalidChannels, dev.Channels)
	}

	used := min(len(bands), slots)
	p := plan{slots: make([][]float64, slots), gain: gain}
	for i := used; i < len(bands); i++ {
		p.overflow = append(p.overflow, i)
	}

	if used > 0 {
		packed, err := biquad.Pack(bands[:used], dev.SampleRate, dev.Channels)
		if err != nil {
			return plan{}, err
		}
		n := biquad.PackedLen(1, dev.Channels)
		for i := range used {
			p.slots[i] = packed[i*n : (i+1)*n]
		}
	}
	if used < slots {
		neutral := biquad.PackSection(biquad.Neutral(), dev.Channels)
		for i := used; i < slots; i++ {
			p.slots[i] = neutral
		}
	}
	return p, nil
}

func (a *Applicator) execute(ctx context.Context, h device.Handle, p plan) error {
	var failed []*BandError

	for slot, packed := range p.slots {
		if err := a.write(ctx, func(wctx context.Context) error {
			return a.writer.WriteBand(wctx, h, slot, packed)
		}); err != nil {
			failed = append(failed, a.fail(h, slot, err))
		}
	}
	for _, pos := range p.overflow {
		failed = append(failed, a.fail(h, pos, ErrSlotCapacity))
	}
	if err := a.write(ctx, func(wctx context.Context) error {
		return a.writer.WriteGain(wctx, h, p.gain)
	}); err != nil {
		failed = append(failed, a.fail(h, GainSlot, err))
	}

	if len(failed) > 0 {
		return &HardwareWriteError{Device: h, Bands: failed}
	}
	return nil
}

func (a *Applicator) fail(h device.Handle, slot int, err error) *BandError {
	be := &BandError{Slot: slot, Err: err}
	a.observer.BandWriteFailed()
	a.logger.Warn("device write failed, skipping", "handle", h, "slot", slot, "error", err)
	return be
}

func (a *Applicator) write(ctx context.Context, fn func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
	defer cancel()
	return fn(wctx)
}
