package metrics

import (
	"time"
)

// ChordMetrics holds the classifier's metrics. A nil *ChordMetrics is valid
// and records nothing.
type ChordMetrics struct {
	registry *Registry

	// Counters
	EventsTotal      *Counter
	ChordsTotal      *Counter
	SingleTotal      *Counter
	UnsupportedTotal *Counter
	NoOpChordsTotal  *Counter
	StrayUpsTotal    *Counter
	RepeatsTotal     *Counter

	// Gauges
	HeldKeys      *Gauge
	PendingEvents *Gauge

	// Histograms
	ChordOverlap *Histogram
}

// holdBuckets straddle the accepted overlap window.
var holdBuckets = []float64{0.025, 0.05, 0.1, 0.125, 0.15, 0.175, 0.2, 0.25, 0.5, 1}

// NewChordMetrics creates and registers the classifier metrics.
func NewChordMetrics(registry *Registry) *ChordMetrics {
	if registry == nil {
		registry = Default()
	}

	return &ChordMetrics{
		registry: registry,

		EventsTotal: registry.RegisterCounter(
			"key_events_total",
			"Total number of key transitions classified",
			nil,
		),
		ChordsTotal: registry.RegisterCounter(
			"chords_total",
			"Total number of bursts emitted as chords",
			nil,
		),
		SingleTotal: registry.RegisterCounter(
			"single_strokes_total",
			"Total number of keys emitted through the single key table",
			nil,
		),
		UnsupportedTotal: registry.RegisterCounter(
			"unsupported_keys_total",
			"Total number of keys with no single key stroke",
			nil,
		),
		NoOpChordsTotal: registry.RegisterCounter(
			"noop_chords_total",
			"Total number of accepted bursts with no bound keys",
			nil,
		),
		StrayUpsTotal: registry.RegisterCounter(
			"stray_releases_total",
			"Total number of releases of keys not known to be held",
			nil,
		),
		RepeatsTotal: registry.RegisterCounter(
			"repeated_presses_total",
			"Total number of presses of keys already held",
			nil,
		),

		HeldKeys: registry.RegisterGauge(
			"held_keys",
			"Number of keys currently held",
			nil,
		),
		PendingEvents: registry.RegisterGauge(
			"pending_events",
			"Number of buffered undecided key transitions",
			nil,
		),

		ChordOverlap: registry.RegisterHistogram(
			"chord_overlap_seconds",
			"Time all keys of a burst were held together",
			nil,
			holdBuckets,
		),
	}
}

// RecordEvent records one classified transition.
func (m *ChordMetrics) RecordEvent() {
	if m == nil {
		return
	}
	m.EventsTotal.Inc()
}

// RecordChord records an emitted chord and its hold time.
func (m *ChordMetrics) RecordChord(overlap time.Duration) {
	if m == nil {
		return
	}
	m.ChordsTotal.Inc()
	m.ChordOverlap.ObserveDuration(overlap)
}

// RecordSingle records an emitted single key stroke.
func (m *ChordMetrics) RecordSingle() {
	if m == nil {
		return
	}
	m.SingleTotal.Inc()
}

// RecordUnsupported records a key skipped by the single key table.
func (m *ChordMetrics) RecordUnsupported() {
	if m == nil {
		return
	}
	m.UnsupportedTotal.Inc()
}

// RecordNoOpChord records an accepted burst that bound to nothing.
func (m *ChordMetrics) RecordNoOpChord() {
	if m == nil {
		return
	}
	m.NoOpChordsTotal.Inc()
}

// RecordStrayUp records a release of a key that was not held.
func (m *ChordMetrics) RecordStrayUp() {
	if m == nil {
		return
	}
	m.StrayUpsTotal.Inc()
}

// RecordRepeat records a press of a key already held.
func (m *ChordMetrics) RecordRepeat() {
	if m == nil {
		return
	}
	m.RepeatsTotal.Inc()
}

// RecordRejection records a burst that failed a timing check.
func (m *ChordMetrics) RecordRejection(check string) {
	if m == nil {
		return
	}
	m.registry.RegisterCounter(
		"burst_rejections_total",
		"Total number of bursts rejected as chords, by failed check",
		Labels{"check": check},
	).Inc()
}

// SetState records the engine's buffer sizes.
func (m *ChordMetrics) SetState(held, pending int) {
	if m == nil {
		return
	}
	m.HeldKeys.Set(int64(held))
	m.PendingEvents.Set(int64(pending))
}
