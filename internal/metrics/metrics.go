// Package metrics provides Prometheus metrics for the equalizer service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusUnchanged = "unchanged"
)

// EQMetrics contains all metrics of the equalizer service.
type EQMetrics struct {
	ReloadTotal         *prometheus.CounterVec
	ApplyTotal          *prometheus.CounterVec
	BandWriteErrors     prometheus.Counter
	SynthesisDuration   prometheus.Histogram
	MatchedDevicesGauge prometheus.Gauge
	AttachedDevices     prometheus.Gauge
	AmbiguousMatches    prometheus.Counter
}

// NewEQMetrics creates the metrics and registers them with registry.
func NewEQMetrics(registry prometheus.Registerer) (*EQMetrics, error) {
	m := &EQMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register equalizer metrics: %w", err)
	}
	return m, nil
}

func (m *EQMetrics) initMetrics() {
	m.ReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioeq_settings_reloads_total",
			Help: "Settings reload attempts partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.ApplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioeq_preset_applies_total",
			Help: "Preset and pass-through applications partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.BandWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audioeq_band_write_errors_total",
			Help: "Coefficient or gain writes rejected by a device.",
		},
	)
	m.SynthesisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audioeq_synthesis_duration_seconds",
			Help:    "Time taken to synthesize and pack the coefficients of one preset.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 8), // 1µs to ~16ms
		},
	)
	m.MatchedDevicesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audioeq_matched_devices",
			Help: "Attached devices matched to a configured entry.",
		},
	)
	m.AttachedDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audioeq_attached_devices",
			Help: "Attached output devices.",
		},
	)
	m.AmbiguousMatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audioeq_ambiguous_matches_total",
			Help: "Devices that satisfied more than one configured entry during a resolve.",
		},
	)
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordReload counts a reload attempt.
func (m *EQMetrics) RecordReload(changed bool, err error) {
	status := statusOf(err)
	if err == nil && !changed {
		status = StatusUnchanged
	}
	m.ReloadTotal.WithLabelValues(status).Inc()
}

// RecordApply counts one device application.
func (m *EQMetrics) RecordApply(err error) {
	m.ApplyTotal.WithLabelValues(statusOf(err)).Inc()
}

// ObserveSynthesis records the synthesis time of one preset.
func (m *EQMetrics) ObserveSynthesis(d time.Duration) {
	m.SynthesisDuration.Observe(d.Seconds())
}

// BandWriteFailed counts one rejected write.
func (m *EQMetrics) BandWriteFailed() {
	m.BandWriteErrors.Inc()
}

// SetDevices updates the device gauges after a resolve.
func (m *EQMetrics) SetDevices(attached, matched, ambiguous int) {
	m.AttachedDevices.Set(float64(attached))
	m.MatchedDevicesGauge.Set(float64(matched))
	m.AmbiguousMatches.Add(float64(ambiguous))
}

// Describe implements the prometheus.Collector interface.
func (m *EQMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ReloadTotal.Describe(ch)
	m.ApplyTotal.Describe(ch)
	ch <- m.BandWriteErrors.Desc()
	ch <- m.SynthesisDuration.Desc()
	ch <- m.MatchedDevicesGauge.Desc()
	ch <- m.AttachedDevices.Desc()
	ch <- m.AmbiguousMatches.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *EQMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ReloadTotal.Collect(ch)
	m.ApplyTotal.Collect(ch)
	ch <- m.BandWriteErrors
	ch <- m.SynthesisDuration
	ch <- m.MatchedDevicesGauge
	ch <- m.AttachedDevices
	ch <- m.AmbiguousMatches
}
