// Package metrics exposes halfkbd's classifier counters in the Prometheus
// text format.
//
// Metrics are grouped into families. A family has one name, help text and
// type, and one series per distinct label set, so rejections can be counted
// per failed check under a single burst_rejections_total family.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Labels are the label pairs of one series.
type Labels map[string]string

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// String renders the labels as {a="1",b="2"} with sorted names, or "" when
// there are none.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `%s="%s"`, name, labelEscaper.Replace(l[name]))
	}
	b.WriteByte('}')
	return b.String()
}

// with returns the labels plus one more pair, rendered.
func (l Labels) with(name, value string) string {
	out := make(Labels, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	out[name] = value
	return out.String()
}

// Counter only goes up.
type Counter struct {
	name  string
	value atomic.Uint64
}

// NewCounter creates an unregistered counter.
func NewCounter(name, help string, labels Labels) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Inc()           { c.value.Add(1) }
func (c *Counter) Add(v uint64)   { c.value.Add(v) }
func (c *Counter) Value() uint64  { return c.value.Load() }
func (c *Counter) Name() string   { return c.name }
func (c *Counter) sample() string { return fmt.Sprint(c.Value()) }

// Gauge goes up and down.
type Gauge struct {
	name  string
	value atomic.Int64
}

// NewGauge creates an unregistered gauge.
func NewGauge(name, help string, labels Labels) *Gauge {
	return &Gauge{name: name}
}

func (g *Gauge) Set(v int64)    { g.value.Store(v) }
func (g *Gauge) Inc()           { g.value.Add(1) }
func (g *Gauge) Dec()           { g.value.Add(-1) }
func (g *Gauge) Value() int64   { return g.value.Load() }
func (g *Gauge) Name() string   { return g.name }
func (g *Gauge) sample() string { return fmt.Sprint(g.Value()) }

// counterFunc is a counter read from elsewhere at scrape time.
type counterFunc func() uint64

func (f counterFunc) sample() string { return fmt.Sprint(f()) }

// Histogram counts observations into buckets with inclusive upper bounds.
type Histogram struct {
	name   string
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // one per bound, then +Inf
	sum    float64
	count  uint64
}

// DefaultBuckets suit durations in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewHistogram creates an unregistered histogram. Bounds need not be
// sorted; nil means DefaultBuckets.
func NewHistogram(name, help string, labels Labels, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = DefaultBuckets
	}
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{
		name:   name,
		bounds: sorted,
		counts: make([]uint64, len(sorted)+1),
	}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Cumulative returns the number of observations at or below each bound,
// then the total.
func (h *Histogram) Cumulative() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, len(h.counts))
	var running uint64
	for i, n := range h.counts {
		running += n
		out[i] = running
	}
	return out
}

func (h *Histogram) write(w io.Writer, labels Labels) {
	cumulative := h.Cumulative()
	for i, bound := range h.bounds {
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, labels.with("le", fmt.Sprintf("%g", bound)), cumulative[i])
	}
	fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, labels.with("le", "+Inf"), cumulative[len(h.bounds)])
	fmt.Fprintf(w, "%s_sum%s %g\n", h.name, labels, h.Sum())
	fmt.Fprintf(w, "%s_count%s %d\n", h.name, labels, h.Count())
}

type series struct {
	labels Labels
	metric any
}

type family struct {
	name   string
	help   string
	kind   kind
	series map[string]*series
}

// Registry holds metric families.
type Registry struct {
	prefix string

	mu       sync.RWMutex
	families map[string]*family
}

// NewRegistry creates a registry whose metric names start with
// namespace_subsystem_. Either part may be empty.
func NewRegistry(namespace, subsystem string) *Registry {
	var prefix string
	for _, part := range []string{namespace, subsystem} {
		if part != "" {
			prefix += part + "_"
		}
	}
	return &Registry{prefix: prefix, families: make(map[string]*family)}
}

// register returns the series for name and labels, creating it with
// create on first use.
func (r *Registry) register(name, help string, k kind, labels Labels, create func(full string) any) any {
	full := r.prefix + name
	id := labels.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.families[full]
	if !ok {
		f = &family{name: full, help: help, kind: k, series: make(map[string]*series)}
		r.families[full] = f
	} else if f.kind != k {
		panic(fmt.Sprintf("metrics: %s registered as %s and %s", full, f.kind, k))
	}

	if s, ok := f.series[id]; ok {
		return s.metric
	}
	m := create(full)
	f.series[id] = &series{labels: labels, metric: m}
	return m
}

// RegisterCounter returns the counter for name and labels, creating it on
// first use.
func (r *Registry) RegisterCounter(name, help string, labels Labels) *Counter {
	return r.register(name, help, kindCounter, labels, func(full string) any {
		return NewCounter(full, help, labels)
	}).(*Counter)
}

// RegisterCounterFunc exposes fn as a counter. fn is called on every scrape
// and must be safe for concurrent use. A second registration of the same
// series keeps the first fn.
func (r *Registry) RegisterCounterFunc(name, help string, labels Labels, fn func() uint64) {
	r.register(name, help, kindCounter, labels, func(string) any {
		return counterFunc(fn)
	})
}

// RegisterGauge returns the gauge for name and labels, creating it on first
// use.
func (r *Registry) RegisterGauge(name, help string, labels Labels) *Gauge {
	return r.register(name, help, kindGauge, labels, func(full string) any {
		return NewGauge(full, help, labels)
	}).(*Gauge)
}

// RegisterHistogram returns the histogram for name and labels, creating it
// with bounds on first use.
func (r *Registry) RegisterHistogram(name, help string, labels Labels, bounds []float64) *Histogram {
	return r.register(name, help, kindHistogram, labels, func(full string) any {
		return NewHistogram(full, help, labels, bounds)
	}).(*Histogram)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes every family in the text exposition format.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.families) {
		f := r.families[name]
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind); err != nil {
			return err
		}
		for _, id := range sortedKeys(f.series) {
			s := f.series[id]
			switch m := s.metric.(type) {
			case *Histogram:
				m.write(w, s.labels)
			case interface{ sample() string }:
				fmt.Fprintf(w, "%s%s %s\n", f.name, id, m.sample())
			}
		}
	}
	return nil
}

// Snapshot returns the value of every counter and gauge series, keyed by
// full name followed by its labels.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64)
	for _, f := range r.families {
		for id, s := range f.series {
			switch m := s.metric.(type) {
			case *Counter:
				out[f.name+id] = int64(m.Value())
			case counterFunc:
				out[f.name+id] = int64(m())
			case *Gauge:
				out[f.name+id] = m.Value()
			}
		}
	}
	return out
}

// HTTPHandler serves the registry for scraping.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

var defaultRegistry = NewRegistry("halfkbd", "")

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}
