package chord

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"halfkbd/internal/keystroke"
	"halfkbd/internal/logging"
	"halfkbd/internal/metrics"
)

// Sink receives the engine's decisions. EmitStroke runs on the engine's
// goroutine and must return promptly.
type Sink interface {
	EmitStroke(Stroke)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Stroke)

// EmitStroke calls f(s).
func (f SinkFunc) EmitStroke(s Stroke) {
	f(s)
}

// Clock is the engine's source of time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock is a Clock that only moves when told to. Sleep advances it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock reading t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the clock's reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d and returns immediately.
func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMetrics records classification counters into m.
func WithMetrics(m *metrics.ChordMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine is the classifier. It consumes transitions from a queue, keeps
// track of which keys are physically held, buffers the current burst and
// hands each decision to a Sink.
//
// All classification state is owned by the goroutine running Run.
type Engine struct {
	queue    *keystroke.Queue
	bindings BindingSource
	sink     Sink
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.ChordMetrics

	pressed      map[string]struct{}
	pending      []keystroke.Event
	mightBeChord bool

	done chan struct{}
}

// NewEngine creates an engine reading q, resolving chords through bindings
// and emitting to sink.
func NewEngine(q *keystroke.Queue, bindings BindingSource, sink Sink, opts ...Option) *Engine {
	if bindings == nil {
		bindings = NewTable(nil)
	}
	if sink == nil {
		sink = SinkFunc(func(Stroke) {})
	}
	e := &Engine{
		queue:        q,
		bindings:     bindings,
		sink:         sink,
		clock:        systemClock{},
		logger:       logging.Discard(),
		pressed:      make(map[string]struct{}),
		mightBeChord: true,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes the queue until it delivers keystroke.Shutdown. Whatever is
// still buffered at that point is resolved key by key before Run returns.
// Run must be called at most once.
func (e *Engine) Run() {
	defer close(e.done)

	for {
		if len(e.pressed) > 0 {
			// A key is held: give its partners a moment, then take
			// everything that arrived meanwhile.
			e.clock.Sleep(DelayTime)
			for {
				it, ok := e.queue.TryGet()
				if !ok {
					break
				}
				if e.handle(it) {
					return
				}
			}
		} else if e.handle(e.queue.Get()) {
			return
		}

		e.check(e.clock.Now())
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// handle applies one queue item and reports whether the engine must stop.
func (e *Engine) handle(it keystroke.Item) bool {
	switch it := it.(type) {
	case keystroke.Shutdown:
		e.flush()
		e.metrics.SetState(0, 0)
		return true
	case keystroke.Event:
		e.process(it)
	}
	return false
}

func (e *Engine) process(ev keystroke.Event) {
	e.metrics.RecordEvent()
	e.pending = append(e.pending, ev)

	_, held := e.pressed[ev.Key]
	switch {
	case ev.IsDown() && held:
		e.logger.Debug("repeated press", "key", ev.Key)
		e.metrics.RecordRepeat()
		e.mightBeChord = false
		e.flush()

	case ev.IsDown():
		e.pressed[ev.Key] = struct{}{}

	case held:
		delete(e.pressed, ev.Key)
		if len(e.pressed) == 0 {
			e.endBurst(e.clock.Now())
		}

	default:
		e.logger.Warn("release of a key that is not held",
			"key", ev.Key,
			"held", len(e.pressed),
		)
		e.metrics.RecordStrayUp()
		e.mightBeChord = false
		e.flush()
	}

	e.metrics.SetState(len(e.pressed), len(e.pending))
}

// endBurst decides a burst once its last key is released.
func (e *Engine) endBurst(now time.Time) {
	defer func() { e.mightBeChord = true }()

	if !e.mightBeChord {
		e.flush()
		return
	}
	if err := Verify(e.pending, now); err != nil {
		e.reject(err)
		e.flush()
		return
	}
	e.emitChord(now)
}

// emitChord emits the buffered burst as one chord, or falls back if no key
// in it is bound.
func (e *Engine) emitChord(now time.Time) {
	bindings := e.bindings.Bindings()

	var symbols, sources []string
	for _, ev := range e.pending {
		if !ev.IsDown() {
			continue
		}
		sources = append(sources, ev.Key)
		if sym, ok := bindings.Lookup(ev.Key); ok {
			symbols = append(symbols, sym)
		}
	}

	keys := symbolSet(symbols)
	if len(keys) == 0 {
		e.logger.Debug("chord bound to nothing", "keys", sources)
		e.metrics.RecordNoOpChord()
		e.flush()
		return
	}

	overlap, _ := overlapOf(e.pending)
	e.logger.Debug("chord",
		"symbols", keys,
		"keys", sources,
		"overlap", overlap,
	)
	e.metrics.RecordChord(overlap)
	e.pending = nil
	e.sink.EmitStroke(Stroke{
		Kind:    KindChord,
		Keys:    keys,
		Sources: sources,
		Time:    now,
	})
}

// flush resolves every buffered press through the single key table, in
// order, and empties the buffer.
func (e *Engine) flush() {
	if len(e.pending) == 0 {
		return
	}
	pending := e.pending
	e.pending = nil

	now := e.clock.Now()
	for _, ev := range pending {
		if !ev.IsDown() {
			continue
		}
		keys, ok := SingleKeyStroke(ev.Key)
		if !ok {
			e.logger.Info("no single key stroke", "key", ev.Key)
			e.metrics.RecordUnsupported()
			continue
		}
		e.metrics.RecordSingle()
		e.sink.EmitStroke(Stroke{
			Kind:    KindSingle,
			Keys:    keys,
			Sources: []string{ev.Key},
			Time:    now,
		})
	}
}

// check abandons the chord hypothesis as soon as the buffer stops
// qualifying, without waiting for the next event.
func (e *Engine) check(now time.Time) {
	if !e.mightBeChord || len(e.pending) == 0 {
		return
	}
	if err := Verify(e.pending, now); err != nil {
		e.reject(err)
		e.mightBeChord = false
		e.flush()
		e.metrics.SetState(len(e.pressed), len(e.pending))
	}
}

func (e *Engine) reject(err error) {
	e.logger.Debug("not a chord", "reason", err, "events", len(e.pending))
	var r *Rejection
	if errors.As(err, &r) {
		e.metrics.RecordRejection(r.Check.String())
	}
}
