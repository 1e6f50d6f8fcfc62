package audioeq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/tphakala/go-audio-eq/internal/apply"
	"github.com/tphakala/go-audio-eq/internal/device"
	"github.com/tphakala/go-audio-eq/internal/logging"
	"github.com/tphakala/go-audio-eq/internal/match"
	"github.com/tphakala/go-audio-eq/internal/metrics"
	"github.com/tphakala/go-audio-eq/internal/settings"
)

// Service coordinates settings reloads, device matching and preset
// application. All mutation happens on the single worker started by Run;
// Snapshot may be called from any goroutine.
type Service struct {
	cfg        Config
	store      *settings.Store
	applicator *apply.Applicator
	metrics    *metrics.EQMetrics
	logger     *slog.Logger
	selections *cache.Cache
	limiter    *rate.Limiter

	requests chan request
	running  atomic.Bool
	mu       sync.Mutex
	done     chan struct{} // closed when the current Run returns

	snapshot atomic.Pointer[Snapshot]

	// Worker-owned state.
	generation string
	states     []DeviceState
	resolved   *settings.Snapshot // settings states were matched against
	reloadErr  error
}

type request struct {
	ctx   context.Context
	fn    func(context.Context) error
	reply chan error
}

// New validates cfg and returns a stopped service.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.withDefaults()

	store, err := settings.NewStore(c.Schema, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	m := c.Metrics
	if m == nil {
		if m, err = metrics.NewEQMetrics(prometheus.NewRegistry()); err != nil {
			return nil, err
		}
	}

	ttl := cache.NoExpiration
	if c.SelectionTTL > 0 {
		ttl = c.SelectionTTL
	}

	s := &Service{
		cfg:     c,
		store:   store,
		metrics: m,
		logger:  logging.Module(c.Logger, "coordinator"),
		// No janitor: expired selections are ignored on lookup.
		selections: cache.New(ttl, 0),
		limiter:    rate.NewLimiter(c.RefreshRate, c.RefreshBurst),
		requests:   make(chan request, requestQueue),
	}
	s.applicator = apply.New(c.Host,
		apply.WithWriteTimeout(c.WriteTimeout),
		apply.WithLogger(c.Logger),
		apply.WithObserver(m),
	)
	s.publish()
	return s, nil
}

// Snapshot returns the latest published state. It never returns nil.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Run loads the settings, applies presets to every attached device and then
// serves device events, settings file changes and requests until ctx is
// done. A failed initial load is logged; devices run pass-through until a
// reload succeeds.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.done = nil
		s.mu.Unlock()
		close(done)
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var changes <-chan struct{}
	if s.cfg.WatchSettings {
		w, err := settings.NewWatcher(s.cfg.SettingsPath, s.cfg.WatchDebounce, s.cfg.Logger)
		if err != nil {
			s.logger.Warn("settings watch disabled", "error", err)
		} else {
			changes = w.Changes()
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(runCtx)
			}()
		}
	}

	if err := s.reload(runCtx, true); err != nil {
		s.logger.Warn("initial settings load failed, devices run pass-through", "error", err)
	}

	events := s.cfg.Host.Events()
	throttle := time.NewTimer(time.Hour)
	throttle.Stop()
	defer throttle.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("coordinator stopped")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.logger.Warn("device host closed its event channel")
				events = nil
				continue
			}
			s.logger.Debug("device event", "kind", ev.Kind.String(), "handle", ev.Handle)
			switch ev.Kind {
			case device.DevicesChanged, device.DefaultDeviceChanged:
				if pending {
					continue
				}
				if delay := s.limiter.Reserve().Delay(); delay > 0 {
					pending = true
					throttle.Reset(delay)
					continue
				}
				_ = s.refresh(runCtx)
			case device.VolumeChanged:
				s.syncDevices(runCtx)
			}

		case <-throttle.C:
			pending = false
			_ = s.refresh(runCtx)

		case <-changes:
			_ = s.reload(runCtx, false)

		case req := <-s.requests:
			if err := req.ctx.Err(); err != nil {
				req.reply <- err
				continue
			}
			req.reply <- req.fn(req.ctx)
		}
	}
}

// submit runs fn on the worker and waits for its result.
func (s *Service) submit(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}

	req := request{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload re-reads the settings file. On failure the previous entries stay
// active and the error is returned and recorded in the snapshot.
func (s *Service) Reload(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) error {
		return s.reload(ctx, false)
	})
}

// Refresh re-enumerates devices, re-resolves matches and reapplies presets.
// The returned error joins the per-device application errors.
func (s *Service) Refresh(ctx context.Context) error {
	return s.submit(ctx, s.refresh)
}

// SelectPreset applies the named preset of the device's entry and
// remembers the choice for the device across refreshes and reloads.
func (s *Service) SelectPreset(ctx context.Context, h Handle, name string) error {
	return s.submit(ctx, func(ctx context.Context) error {
		i := s.stateIndex(h)
		if i < 0 {
			return fmt.Errorf("%w: %v", ErrUnknownDevice, h)
		}
		st := s.states[i]
		if !st.Mapped {
			return fmt.Errorf("%w: %s", ErrUnmappedDevice, st.Info.Name)
		}
		entry, ok := s.resolved.Entry(st.EntryIndex)
		if !ok {
			return fmt.Errorf("%w: index %d", ErrUnknownEntry, st.EntryIndex)
		}
		p, ok := entry.Preset(name)
		if !ok {
			return fmt.Errorf("%w: %q on %q", ErrUnknownPreset, name, entry.Name)
		}

		s.selections.Set(selectionKey(st.Info), name, cache.DefaultExpiration)
		err := s.applicator.Apply(ctx, p, st.Info)
		s.metrics.RecordApply(err)

		st.Preset = name
		st.ApplyError = err
		s.states = slices.Clone(s.states)
		s.states[i] = st
		s.publish()
		s.logger.Info("preset selected", "device", st.Info.Name, "preset", name, "error", err)
		return err
	})
}

// SetVolume sets a device's volume in [0, 1].
func (s *Service) SetVolume(ctx context.Context, h Handle, volume float64) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.cfg.Host.SetVolume(ctx, h, volume); err != nil {
			return err
		}
		s.syncDevices(ctx)
		return nil
	})
}

// SetMuted mutes or unmutes a device.
func (s *Service) SetMuted(ctx context.Context, h Handle, muted bool) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.cfg.Host.SetMuted(ctx, h, muted); err != nil {
			return err
		}
		s.syncDevices(ctx)
		return nil
	})
}

// reload runs on the worker. force refreshes devices even when the file is
// unchanged or failed to load.
func (s *Service) reload(ctx context.Context, force bool) error {
	snap, changed, err := s.store.Reload(s.cfg.SettingsPath)
	s.metrics.RecordReload(changed, err)
	s.reloadErr = err

	if err == nil && changed {
		s.generation = uuid.NewString()
		s.logger.Info("settings generation loaded",
			"generation", s.generation, "entries", len(snap.Entries), "digest", snap.Digest)
	}
	if force || (err == nil && changed) {
		_ = s.refresh(ctx)
	} else {
		s.publish()
	}
	return err
}

// refresh runs on the worker.
func (s *Service) refresh(ctx context.Context) error {
	cur := s.store.Current()
	devs, err := s.cfg.Host.Devices(ctx)
	if err != nil {
		s.logger.Warn("device enumeration failed", "error", err)
		if s.resolved != cur {
			// Entry indexes refer to the previous settings.
			s.states = unmapped(s.states, err)
			s.resolved = cur
			s.publish()
		}
		return err
	}

	var entries []settings.DeviceEntry
	if cur != nil {
		entries = cur.Entries
	}
	res := match.Resolve(entries, devs)
	for _, a := range res.Ambiguities() {
		s.logger.Info("device matches several entries, using the first",
			"handle", a.Handle, "entries", a.Entries)
	}

	var errs []error
	states := make([]DeviceState, 0, len(devs))
	for _, d := range devs {
		st := DeviceState{Info: d, EntryIndex: -1}
		if i, ok := res.Entry(d.Handle); ok {
			e := entries[i]
			st.Mapped = true
			st.EntryIndex = i
			st.Entry = e.Name
			st.Hidden = e.Hidden
			st.Presets = presetNames(e)
			if p, ok := s.selectedPreset(d, e); ok {
				st.Preset = p.Name
				st.ApplyError = s.applicator.Apply(ctx, p, d)
			} else {
				st.ApplyError = s.applicator.PassThrough(ctx, d)
			}
		} else {
			st.ApplyError = s.applicator.PassThrough(ctx, d)
		}

		s.metrics.RecordApply(st.ApplyError)
		if st.ApplyError != nil {
			s.logger.Warn("preset application incomplete",
				"device", d.Name, "handle", d.Handle, "preset", st.Preset, "error", st.ApplyError)
			errs = append(errs, st.ApplyError)
		}
		states = append(states, st)
	}

	s.metrics.SetDevices(len(devs), res.Len(), len(res.Ambiguities()))
	s.states = states
	s.resolved = cur
	s.publish()
	logging.Trace(s.logger, "devices refreshed", "attached", len(devs), "matched", res.Len())
	return errors.Join(errs...)
}

// syncDevices refreshes device info (volume, mute, default) without
// reapplying presets.
func (s *Service) syncDevices(ctx context.Context) {
	devs, err := s.cfg.Host.Devices(ctx)
	if err != nil {
		s.logger.Warn("device enumeration failed", "error", err)
		return
	}
	states := slices.Clone(s.states)
	for i := range states {
		for _, d := range devs {
			if d.Handle == states[i].Info.Handle {
				states[i].Info = d
				break
			}
		}
	}
	s.states = states
	s.publish()
}

func (s *Service) selectedPreset(d device.Info, e settings.DeviceEntry) (settings.Preset, bool) {
	if v, found := s.selections.Get(selectionKey(d)); found {
		if name, ok := v.(string); ok {
			if p, ok := e.Preset(name); ok {
				return p, true
			}
		}
	}
	return e.DefaultPreset()
}

func (s *Service) stateIndex(h Handle) int {
	return slices.IndexFunc(s.states, func(st DeviceState) bool { return st.Info.Handle == h })
}

func (s *Service) publish() {
	s.snapshot.Store(&Snapshot{
		Generation:  s.generation,
		Settings:    s.store.Current(),
		Devices:     s.states,
		ReloadError: s.reloadErr,
		UpdatedAt:   time.Now(),
	})
}

// unmapped returns states detached from any entry, each carrying err.
func unmapped(states []DeviceState, err error) []DeviceState {
	out := make([]DeviceState, len(states))
	for i, st := range states {
		out[i] = DeviceState{Info: st.Info, EntryIndex: -1, ApplyError: err}
	}
	return out
}

func selectionKey(d device.Info) string {
	if d.UID != "" {
		return d.UID
	}
	return selectionKeyPrefix + d.Handle.String()
}

func presetNames(e settings.DeviceEntry) []string {
	names := make([]string, len(e.Presets))
	for i, p := range e.Presets {
		names[i] = p.Name
	}
	return names
}
