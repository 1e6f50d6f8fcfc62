package audioeq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/device"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const studioSettings = `{
  "devices": [
    {
      "name": "Studio",
      "match": {"deviceUID": "usb-studio"},
      "presets": [
        {"name": "Warm", "multiplier": 0.5, "biquads": [
          {"type": "lowshelf", "frequency": 120, "Q": 0.7, "gain": 3},
          {"type": "peaking", "frequency": 1000, "Q": 1.4, "gain": -2}
        ]},
        {"name": "Bright", "biquads": [
          {"type": "highshelf", "frequency": 8000, "Q": 0.7, "gain": 4}
        ]}
      ]
    },
    {
      "name": "Empty",
      "match": {"name": "Empty Box"},
      "presets": []
    }
  ]
}`

const reorderedSettings = `{
  "devices": [
    {
      "name": "Studio",
      "match": {"deviceUID": "usb-studio"},
      "presets": [
        {"name": "Bright", "biquads": [
          {"type": "highshelf", "frequency": 8000, "Q": 0.7, "gain": 4}
        ]}
      ]
    }
  ]
}`

func writeSettings(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

type harness struct {
	svc    *Service
	host   *MemoryHost
	path   string
	cancel context.CancelFunc
	errc   chan error
}

// start runs a service over a MemoryHost with the given devices attached.
func start(t *testing.T, content string, mutate func(*Config), devices ...DeviceInfo) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	writeSettings(t, path, content)

	host := NewMemoryHost(4)
	for _, d := range devices {
		_, err := host.Attach(d)
		require.NoError(t, err)
	}

	cfg := Config{SettingsPath: path, Host: host, RefreshRate: 1000, RefreshBurst: 10}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{svc: svc, host: host, path: path, cancel: cancel, errc: make(chan error, 1)}
	go func() { h.errc <- svc.Run(ctx) }()
	t.Cleanup(h.stop)

	require.Eventually(t, func() bool {
		snap := svc.Snapshot()
		return (snap.Settings != nil || snap.ReloadError != nil) && len(snap.Devices) == len(devices)
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Refresh(context.Background()))
	return h
}

func (h *harness) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.errc
	h.cancel = nil
	_ = h.host.Close()
}

func studio() DeviceInfo { return DeviceInfo{Name: "Studio Monitor", UID: "usb-studio"} }

func TestConfig_Validate(t *testing.T) {
	host := NewMemoryHost(0)
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{SettingsPath: "x.json", Host: host}, true},
		{"missing path", Config{Host: host}, false},
		{"missing host", Config{SettingsPath: "x.json"}, false},
		{"negative timeout", Config{SettingsPath: "x.json", Host: host, WriteTimeout: -1}, false},
		{"negative rate", Config{SettingsPath: "x.json", Host: host, RefreshRate: -1}, false},
		{"negative burst", Config{SettingsPath: "x.json", Host: host, RefreshBurst: -1}, false},
		{"negative ttl", Config{SettingsPath: "x.json", Host: host, SelectionTTL: -time.Second}, false},
		{"bad schema", Config{SettingsPath: "x.json", Host: host, Schema: Schema{"devices": "Bogus"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestService_AppliesDefaultPresetOnStart(t *testing.T) {
	h := start(t, studioSettings, nil,
		studio(),
		DeviceInfo{Name: "Unknown DAC", UID: "usb-other"},
		DeviceInfo{Name: "Empty Box"},
	)

	snap := h.svc.Snapshot()
	assert.NotEmpty(t, snap.Generation)
	assert.NoError(t, snap.ReloadError)
	require.Len(t, snap.Entries(), 2)
	require.Len(t, snap.Devices, 3)

	st := snap.Devices[0]
	assert.True(t, st.Mapped)
	assert.Equal(t, 0, st.EntryIndex)
	assert.Equal(t, "Studio", st.Entry)
	assert.Equal(t, "Warm", st.Preset)
	assert.Equal(t, []string{"Warm", "Bright"}, st.Presets)
	assert.NoError(t, st.ApplyError)

	c, err := h.host.Chain(st.Info.Handle)
	require.NoError(t, err)
	state := c.State()
	assert.InDelta(t, 0.5, state.Gain, 0)
	assert.False(t, state.Sections[0][0].IsNeutral())
	assert.False(t, state.Sections[1][0].IsNeutral())
	assert.True(t, state.Sections[2][0].IsNeutral())
	assert.True(t, state.Sections[3][0].IsNeutral())

	unknown := snap.Devices[1]
	assert.False(t, unknown.Mapped)
	assert.Equal(t, -1, unknown.EntryIndex)
	assert.Empty(t, unknown.Preset)

	empty := snap.Devices[2]
	assert.True(t, empty.Mapped)
	assert.Equal(t, "Empty", empty.Entry)
	assert.Empty(t, empty.Preset)

	for _, d := range snap.Devices[1:] {
		c, err := h.host.Chain(d.Info.Handle)
		require.NoError(t, err)
		for _, slot := range c.State().Sections {
			assert.True(t, slot[0].IsNeutral())
		}
		assert.InDelta(t, 1, c.Gain(), 0)
	}
}

func TestService_SelectPreset(t *testing.T) {
	h := start(t, studioSettings, nil, studio(), DeviceInfo{Name: "Unknown DAC"})
	ctx := context.Background()
	snap := h.svc.Snapshot()
	dev := snap.Devices[0].Info.Handle

	require.NoError(t, h.svc.SelectPreset(ctx, dev, "Bright"))
	st, ok := h.svc.Snapshot().Device(dev)
	require.True(t, ok)
	assert.Equal(t, "Bright", st.Preset)

	c, err := h.host.Chain(dev)
	require.NoError(t, err)
	state := c.State()
	assert.InDelta(t, 1, state.Gain, 0)
	assert.False(t, state.Sections[0][0].IsNeutral())
	assert.True(t, state.Sections[1][0].IsNeutral(), "previous preset's second band must be cleared")

	// The selection survives a refresh.
	require.NoError(t, h.svc.Refresh(ctx))
	st, _ = h.svc.Snapshot().Device(dev)
	assert.Equal(t, "Bright", st.Preset)

	// Errors.
	assert.ErrorIs(t, h.svc.SelectPreset(ctx, dev, "Nope"), ErrUnknownPreset)
	assert.ErrorIs(t, h.svc.SelectPreset(ctx, snap.Devices[1].Info.Handle, "Warm"), ErrUnmappedDevice)
	assert.ErrorIs(t, h.svc.SelectPreset(ctx, Handle(999), "Warm"), ErrUnknownDevice)
}

func TestService_SelectionFollowsDeviceUID(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	ctx := context.Background()
	first := h.svc.Snapshot().Devices[0].Info.Handle
	require.NoError(t, h.svc.SelectPreset(ctx, first, "Bright"))

	require.NoError(t, h.host.Detach(first))
	second, err := h.host.Attach(studio())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.Eventually(t, func() bool {
		st, ok := h.svc.Snapshot().Device(second)
		return ok && st.Preset == "Bright"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_HotplugAppliesPreset(t *testing.T) {
	h := start(t, studioSettings, nil)
	handle, err := h.host.Attach(studio())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := h.svc.Snapshot().Device(handle)
		return ok && st.Preset == "Warm"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_ReloadKeepsLastKnownGood(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	ctx := context.Background()
	before := h.svc.Snapshot()

	writeSettings(t, h.path, `{"devices": [{"name": 3}]}`)
	err := h.svc.Reload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaWrongType)

	after := h.svc.Snapshot()
	assert.Equal(t, before.Generation, after.Generation)
	assert.Same(t, before.Settings, after.Settings)
	assert.ErrorIs(t, after.ReloadError, ErrSchemaWrongType)
	assert.Equal(t, "Warm", after.Devices[0].Preset)

	writeSettings(t, h.path, `{"devices": [{"name": "S", "presets": [{"name": "P", "biquads": [
		{"type": "peaking", "frequency": 0, "Q": 1, "gain": 1}]}]}]}`)
	err = h.svc.Reload(ctx)
	assert.ErrorIs(t, err, ErrLoad)
	assert.Same(t, before.Settings, h.svc.Snapshot().Settings)
}

func TestService_ReloadAppliesNewGeneration(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	ctx := context.Background()
	before := h.svc.Snapshot()

	// Unchanged content keeps the generation.
	require.NoError(t, h.svc.Reload(ctx))
	assert.Equal(t, before.Generation, h.svc.Snapshot().Generation)

	writeSettings(t, h.path, reorderedSettings)
	require.NoError(t, h.svc.Reload(ctx))

	after := h.svc.Snapshot()
	assert.NotEqual(t, before.Generation, after.Generation)
	assert.NoError(t, after.ReloadError)
	require.Len(t, after.Entries(), 1)
	assert.Equal(t, "Bright", after.Devices[0].Preset)
}

// flakyHost fails the next enumeration after failNext is set.
type flakyHost struct {
	*MemoryHost
	failNext atomic.Bool
}

var errEnumerate = errors.New("enumeration failed")

func (f *flakyHost) Devices(ctx context.Context) ([]DeviceInfo, error) {
	if f.failNext.CompareAndSwap(true, false) {
		return nil, errEnumerate
	}
	return f.MemoryHost.Devices(ctx)
}

const prependedSettings = `{
  "devices": [
    {
      "name": "Other",
      "match": {"name": "Other Box"},
      "presets": [
        {"name": "Warm", "multiplier": 0.1, "biquads": [
          {"type": "lowpass", "frequency": 200, "Q": 0.7}
        ]}
      ]
    },
    {
      "name": "Studio",
      "match": {"deviceUID": "usb-studio"},
      "presets": [
        {"name": "Warm", "multiplier": 0.5, "biquads": [
          {"type": "lowshelf", "frequency": 120, "Q": 0.7, "gain": 3}
        ]}
      ]
    }
  ]
}`

func TestService_ReloadWithFailedEnumerationUnmapsDevices(t *testing.T) {
	var flaky *flakyHost
	h := start(t, studioSettings, func(c *Config) {
		flaky = &flakyHost{MemoryHost: c.Host.(*MemoryHost)}
		c.Host = flaky
	}, studio())
	ctx := context.Background()
	before := h.svc.Snapshot()
	dev := before.Devices[0].Info.Handle

	c, err := h.host.Chain(dev)
	require.NoError(t, err)
	applied := c.State()

	// Let queued attach events drain so only the reload enumerates.
	require.Eventually(t, func() bool { return len(h.host.Events()) == 0 }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.svc.Refresh(ctx))

	writeSettings(t, h.path, prependedSettings)
	flaky.failNext.Store(true)
	require.NoError(t, h.svc.Reload(ctx))

	snap := h.svc.Snapshot()
	assert.NotEqual(t, before.Generation, snap.Generation)
	require.Len(t, snap.Entries(), 2)
	st, ok := snap.Device(dev)
	require.True(t, ok)
	assert.False(t, st.Mapped)
	assert.Equal(t, -1, st.EntryIndex)
	assert.ErrorIs(t, st.ApplyError, errEnumerate)

	// Entry 0 is now Other; its preset must never reach the Studio device.
	assert.ErrorIs(t, h.svc.SelectPreset(ctx, dev, "Warm"), ErrUnmappedDevice)
	assert.Equal(t, applied, c.State())

	require.NoError(t, h.svc.Refresh(ctx))
	st, _ = h.svc.Snapshot().Device(dev)
	assert.True(t, st.Mapped)
	assert.Equal(t, 1, st.EntryIndex)
	assert.Equal(t, "Studio", st.Entry)

	require.NoError(t, h.svc.SelectPreset(ctx, dev, "Warm"))
	assert.InDelta(t, 0.5, c.State().Gain, 0)
}

func TestService_WatchSettings(t *testing.T) {
	h := start(t, studioSettings, func(c *Config) {
		c.WatchSettings = true
		c.WatchDebounce = 20 * time.Millisecond
	}, studio())
	before := h.svc.Snapshot().Generation

	writeSettings(t, h.path, reorderedSettings)
	require.Eventually(t, func() bool {
		snap := h.svc.Snapshot()
		return snap.Generation != before && len(snap.Entries()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_InitialLoadFailureRunsPassThrough(t *testing.T) {
	h := start(t, `{"devices": "nope"}`, nil, studio())

	snap := h.svc.Snapshot()
	assert.Nil(t, snap.Settings)
	assert.Empty(t, snap.Generation)
	assert.ErrorIs(t, snap.ReloadError, ErrSchemaWrongType)
	require.Len(t, snap.Devices, 1)
	assert.False(t, snap.Devices[0].Mapped)

	writeSettings(t, h.path, studioSettings)
	require.NoError(t, h.svc.Reload(context.Background()))
	assert.Equal(t, "Warm", h.svc.Snapshot().Devices[0].Preset)
}

func TestService_HardwareFailureIsReported(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	h.host.SetWriteHook(func(_ device.Handle, slot int) error {
		if slot == 1 {
			return errors.New("i2c nack")
		}
		return nil
	})

	err := h.svc.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHardwareWrite)

	st := h.svc.Snapshot().Devices[0]
	var hw *HardwareWriteError
	require.ErrorAs(t, st.ApplyError, &hw)
	require.Len(t, hw.Bands, 1)
	assert.Equal(t, 1, hw.Bands[0].Slot)
}

func TestService_VolumeAndMute(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	ctx := context.Background()
	dev := h.svc.Snapshot().Devices[0].Info.Handle

	require.NoError(t, h.svc.SetVolume(ctx, dev, 0.25))
	require.NoError(t, h.svc.SetMuted(ctx, dev, true))

	st, ok := h.svc.Snapshot().Device(dev)
	require.True(t, ok)
	assert.InDelta(t, 0.25, st.Info.Volume, 0)
	assert.True(t, st.Info.Muted)
	assert.Equal(t, "Warm", st.Preset)

	assert.Error(t, h.svc.SetVolume(ctx, dev, 2))
	assert.ErrorIs(t, h.svc.SetMuted(ctx, Handle(999), true), ErrUnknownDevice)
}

func TestService_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	writeSettings(t, path, studioSettings)
	host := NewMemoryHost(0)
	defer func() { _ = host.Close() }()

	svc, err := New(Config{SettingsPath: path, Host: host})
	require.NoError(t, err)

	snap := svc.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Devices)
	assert.ErrorIs(t, svc.Reload(context.Background()), ErrNotRunning)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return svc.Snapshot().Settings != nil }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, svc.Run(ctx), ErrAlreadyRunning)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.ErrorIs(t, svc.Refresh(context.Background()), ErrNotRunning)

	// A stopped service can be run again.
	ctx2, cancel2 := context.WithCancel(context.Background())
	go func() { errc <- svc.Run(ctx2) }()
	require.Eventually(t, func() bool {
		return svc.Refresh(context.Background()) == nil
	}, 2*time.Second, 5*time.Millisecond)
	cancel2()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestService_RequestHonorsCallerContext(t *testing.T) {
	h := start(t, studioSettings, nil, studio())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.svc.Refresh(ctx), context.Canceled)
}

func TestSelectionKey(t *testing.T) {
	assert.Equal(t, "usb-1", selectionKey(DeviceInfo{UID: "usb-1", Handle: 3}))
	assert.Equal(t, "handle:dev#3", selectionKey(DeviceInfo{Handle: 3}))
}

func TestPresetNames(t *testing.T) {
	p1, err := NewPreset("A", 1)
	require.NoError(t, err)
	band, err := NewBand(biquad.Peaking, 1000, 1, 3)
	require.NoError(t, err)
	p2, err := NewPreset("B", 1, band)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, presetNames(DeviceEntry{Presets: []Preset{p1, p2}}))
}
