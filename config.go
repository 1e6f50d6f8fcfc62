package audioeq

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/metrics"
	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

// Config holds the coordinator configuration.
type Config struct {
	// SettingsPath is the JSON or YAML settings file. The extension selects
	// the format.
	SettingsPath string

	// Schema validates the settings document. Nil uses DefaultSchema.
	Schema Schema

	// Host is the device collaborator. Required. The service does not
	// close it.
	Host device.Host

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives counters and gauges. Nil keeps them on a private
	// registry.
	Metrics *metrics.EQMetrics

	// WriteTimeout bounds each hardware write. Zero uses DefaultWriteTimeout.
	WriteTimeout time.Duration

	// RefreshRate limits device-event driven refreshes per second. Bursts
	// of device events beyond the limit are coalesced into one refresh.
	// Zero uses DefaultRefreshRate.
	RefreshRate rate.Limit

	// RefreshBurst is the limiter burst. Zero uses DefaultRefreshBurst.
	RefreshBurst int

	// WatchSettings reloads the settings file when it changes on disk.
	WatchSettings bool

	// WatchDebounce coalesces bursts of file events. Zero uses the
	// watcher default.
	WatchDebounce time.Duration

	// SelectionTTL forgets per-device preset selections after this long.
	// Zero keeps them for the process lifetime.
	SelectionTTL time.Duration
}

// Common errors returned by the service.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid equalizer configuration")

	// ErrAlreadyRunning is returned by Run when the worker is active.
	ErrAlreadyRunning = errors.New("service already running")

	// ErrNotRunning is returned by requests made while Run is not active.
	ErrNotRunning = errors.New("service not running")

	// ErrUnknownDevice indicates a handle that is not attached.
	ErrUnknownDevice = device.ErrUnknownDevice

	// ErrUnmappedDevice indicates a device with no matching entry.
	ErrUnmappedDevice = errors.New("device has no matching entry")

	// ErrUnknownPreset indicates a preset name absent from the device's entry.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrUnknownEntry indicates a device entry name absent from the settings.
	ErrUnknownEntry = errors.New("unknown device entry")
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SettingsPath == "" {
		return fmt.Errorf("%w: settings path is required", ErrInvalidConfig)
	}
	if c.Host == nil {
		return fmt.Errorf("%w: device host is required", ErrInvalidConfig)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write timeout must not be negative", ErrInvalidConfig)
	}
	if c.RefreshRate < 0 {
		return fmt.Errorf("%w: refresh rate must not be negative", ErrInvalidConfig)
	}
	if c.RefreshBurst < 0 {
		return fmt.Errorf("%w: refresh burst must not be negative", ErrInvalidConfig)
	}
	if c.WatchDebounce < 0 || c.SelectionTTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.Schema != nil {
		if _, err := typecheck.Compile(c.Schema); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Schema == nil {
		out.Schema = DefaultSchema()
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = DefaultWriteTimeout
	}
	if out.RefreshRate == 0 {
		out.RefreshRate = DefaultRefreshRate
	}
	if out.RefreshBurst == 0 {
		out.RefreshBurst = DefaultRefreshBurst
	}
	return out
}
