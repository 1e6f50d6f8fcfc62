package malgohost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/match"
	"github.com/tphakala/go-audio-eq/internal/settings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu   sync.Mutex
	devs []rawDevice
	err  error
}

func (f *fakeBackend) set(devs ...rawDevice) {
	f.mu.Lock()
	f.devs = devs
	f.mu.Unlock()
}

func (f *fakeBackend) enumerate() ([]rawDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]rawDevice(nil), f.devs...), nil
}

func newTestHost(t *testing.T, fb *fakeBackend) *Host {
	t.Helper()
	h, err := newHost(Config{PollInterval: 5 * time.Millisecond, Channels: 2, Slots: 4}, fb.enumerate, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func waitEvent(t *testing.T, h *Host, kind device.EventKind) device.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", kind)
			return device.Event{}
		}
	}
}

func TestHost_Enumerates(t *testing.T) {
	fb := &fakeBackend{}
	fb.set(rawDevice{Name: "USB DAC", UID: "hw:1,0"}, rawDevice{Name: "Speakers", UID: "hw:0,0", IsDefault: true})
	h := newTestHost(t, fb)

	devs, err := h.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "USB DAC", devs[0].Name)
	assert.Equal(t, "hw:1,0", devs[0].UID)
	assert.InDelta(t, DefaultSampleRate, devs[0].SampleRate, 0)
	assert.Equal(t, 2, devs[0].Channels)
	assert.InDelta(t, 1.0, devs[0].Volume, 0)

	def, err := h.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Speakers", def.Name)

	n, err := h.SlotCount(devs[0].Handle)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestHost_ModelCriteriaNeverMatch(t *testing.T) {
	fb := &fakeBackend{}
	fb.set(rawDevice{Name: "USB DAC", UID: "hw:1,0"})
	h := newTestHost(t, fb)

	devs, err := h.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Empty(t, devs[0].Manufacturer)
	assert.Empty(t, devs[0].ModelUID)

	assert.False(t, match.Satisfies(settings.DeviceMatch{Manufacturer: "Acme"}, devs[0]))
	assert.False(t, match.Satisfies(settings.DeviceMatch{ModelUID: "dac-1"}, devs[0]))
	assert.True(t, match.Satisfies(settings.DeviceMatch{Name: "USB DAC"}, devs[0]))
	assert.True(t, match.Satisfies(settings.DeviceMatch{DeviceUID: "hw:1,0"}, devs[0]))
}

func TestHost_PollDetectsChanges(t *testing.T) {
	fb := &fakeBackend{}
	fb.set(rawDevice{Name: "A", UID: "a"})
	h := newTestHost(t, fb)

	devs, err := h.Devices(context.Background())
	require.NoError(t, err)
	handleA := devs[0].Handle

	fb.set(rawDevice{Name: "A", UID: "a"}, rawDevice{Name: "B", UID: "b"})
	waitEvent(t, h, device.DevicesChanged)

	devs, err = h.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, handleA, devs[0].Handle)

	// Unplug and replug keeps the handle.
	fb.set(rawDevice{Name: "B", UID: "b"})
	waitEvent(t, h, device.DevicesChanged)
	_, err = h.SlotCount(handleA)
	require.ErrorIs(t, err, device.ErrUnknownDevice)

	fb.set(rawDevice{Name: "A", UID: "a", IsDefault: true}, rawDevice{Name: "B", UID: "b"})
	ev := waitEvent(t, h, device.DefaultDeviceChanged)
	assert.Equal(t, handleA, ev.Handle)
}

func TestHost_WritesReachChain(t *testing.T) {
	fb := &fakeBackend{}
	fb.set(rawDevice{Name: "A", UID: "a"})
	h := newTestHost(t, fb)
	ctx := context.Background()

	devs, err := h.Devices(ctx)
	require.NoError(t, err)
	handle := devs[0].Handle

	sec := biquad.Section{B0: 0.7, B1: 0.1}
	require.NoError(t, h.WriteBand(ctx, handle, 3, biquad.PackSection(sec, 2)))
	require.NoError(t, h.WriteGain(ctx, handle, 0.5))
	require.NoError(t, h.SetVolume(ctx, handle, 0.4))
	require.NoError(t, h.SetMuted(ctx, handle, true))

	c, err := h.Chain(handle)
	require.NoError(t, err)
	got, err := c.Band(3, 1)
	require.NoError(t, err)
	assert.Equal(t, sec, got)
	assert.InDelta(t, 0.5, c.Gain(), 0)

	devs, err = h.Devices(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, devs[0].Volume, 0)
	assert.True(t, devs[0].Muted)

	assert.ErrorIs(t, h.WriteBand(ctx, handle, 9, biquad.PackSection(sec, 2)), device.ErrWriteRejected)
	assert.ErrorIs(t, h.WriteGain(ctx, handle, -1), device.ErrWriteRejected)
}

func TestHost_EnumerationErrors(t *testing.T) {
	boom := errors.New("backend gone")
	_, err := newHost(Config{}, (&fakeBackend{err: boom}).enumerate, nil)
	assert.ErrorIs(t, err, boom)
}

func TestHost_Close(t *testing.T) {
	fb := &fakeBackend{}
	uninit := 0
	h, err := newHost(Config{PollInterval: time.Millisecond}, fb.enumerate, func() { uninit++ })
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 1, uninit)

	_, ok := <-h.Events()
	assert.False(t, ok)
	_, err = h.Devices(context.Background())
	assert.ErrorIs(t, err, device.ErrClosed)
}

func TestDecodeID(t *testing.T) {
	assert.Equal(t, "hw:1,0", decodeID("68773a312c30"))
	assert.Equal(t, "hw:1,0", decodeID("68773a312c300000"))
	assert.Equal(t, "not-hex", decodeID("not-hex"))
}
