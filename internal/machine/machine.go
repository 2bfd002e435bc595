// Package machine runs the chord classifier against a live capture backend
// and manages its lifecycle: starting and stopping capture, swapping the
// keymap, and toggling key suppression.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"halfkbd/internal/chord"
	"halfkbd/internal/keymap"
	"halfkbd/internal/keystroke"
	"halfkbd/internal/logging"
	"halfkbd/internal/metrics"
)

// State is the machine's lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateInitializing
	StateReady
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for the machine and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records classifier metrics.
func WithMetrics(cm *metrics.ChordMetrics) Option {
	return func(m *Machine) {
		m.metrics = cm
	}
}

// WithEngineOptions passes extra options to each engine the machine
// creates.
func WithEngineOptions(opts ...chord.Option) Option {
	return func(m *Machine) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithCaptureHook wraps the handler the capture backend delivers to, for
// example with a keystroke.TraceRecorder.
func WithCaptureHook(wrap func(keystroke.Handler) keystroke.Handler) Option {
	return func(m *Machine) {
		m.hook = wrap
	}
}

// Machine connects a capture backend to a chord engine.
type Machine struct {
	capture    keystroke.Capture
	sink       chord.Sink
	logger     *slog.Logger
	metrics    *metrics.ChordMetrics
	engineOpts []chord.Option
	hook       func(keystroke.Handler) keystroke.Handler

	table   *chord.Table
	actions atomic.Pointer[map[string]string]

	state     atomic.Int32
	lastDowns atomic.Int64

	// mu serialises lifecycle operations.
	mu         sync.Mutex
	keymap     *keymap.Keymap
	suppressed bool
	listeners  []func(State)
	queue      *keystroke.Queue
	engine     *chord.Engine
}

// New creates a stopped machine.
func New(capture keystroke.Capture, km *keymap.Keymap, sink chord.Sink, opts ...Option) *Machine {
	if km == nil {
		km = keymap.Default()
	}
	if sink == nil {
		sink = chord.SinkFunc(func(chord.Stroke) {})
	}
	m := &Machine{
		capture: capture,
		sink:    sink,
		logger:  logging.Discard(),
		keymap:  km,
		table:   chord.NewTable(km.ChordBindings()),
	}
	actions := km.ActionKeys()
	m.actions.Store(&actions)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnStateChange registers a listener for state changes. Listeners run with
// the lifecycle lock held and must not start or stop the machine.
func (m *Machine) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
	m.logger.Info("machine state", "state", s.String())
	for _, fn := range m.listeners {
		fn(s)
	}
}

// Keymap returns the keymap in effect.
func (m *Machine) Keymap() *keymap.Keymap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keymap
}

// StartCapture starts the capture backend and the engine.
func (m *Machine) StartCapture(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine != nil {
		return keystroke.ErrAlreadyRunning
	}
	m.setState(StateInitializing)

	queue := keystroke.NewQueue()
	opts := append([]chord.Option{
		chord.WithLogger(m.logger),
		chord.WithMetrics(m.metrics),
	}, m.engineOpts...)
	engine := chord.NewEngine(queue, m.table, chord.SinkFunc(m.emit), opts...)

	if err := m.capture.Suppress(m.suppressedKeys()); err != nil {
		m.setState(StateError)
		return fmt.Errorf("suppress keys: %w", err)
	}
	var handler keystroke.Handler = &filter{
		machine:  m,
		recorder: keystroke.NewRecorder(queue, nil),
	}
	if m.hook != nil {
		handler = m.hook(handler)
	}
	if err := m.capture.Start(ctx, handler); err != nil {
		m.setState(StateError)
		return fmt.Errorf("start capture: %w", err)
	}

	m.queue = queue
	m.engine = engine
	go engine.Run()

	m.setState(StateReady)
	return nil
}

// StopCapture releases suppression, stops the backend, lets the engine
// resolve whatever it has buffered and waits for it to exit.
func (m *Machine) StopCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		m.setState(StateStopped)
		return nil
	}

	var errs []error
	m.suppressed = false
	if err := m.capture.Suppress(nil); err != nil {
		errs = append(errs, fmt.Errorf("release suppression: %w", err))
	}
	if err := m.capture.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop capture: %w", err))
	}

	m.queue.Put(keystroke.Shutdown{})
	<-m.engine.Done()
	m.queue = nil
	m.engine = nil

	m.setState(StateStopped)
	return errors.Join(errs...)
}

// SetKeymap replaces the keymap. The engine uses the new bindings from its
// next decision on.
func (m *Machine) SetKeymap(km *keymap.Keymap) error {
	if km == nil {
		return errors.New("nil keymap")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.keymap = km
	m.table.Swap(km.ChordBindings())
	actions := km.ActionKeys()
	m.actions.Store(&actions)
	m.logger.Info("keymap updated", "name", km.Name, "keys", len(km.Keys()))

	if m.engine == nil {
		return nil
	}
	return m.capture.Suppress(m.suppressedKeys())
}

// SetSuppression turns suppression of the keymap's keys on or off.
func (m *Machine) SetSuppression(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.suppressed = enabled
	if m.engine == nil {
		return nil
	}
	return m.capture.Suppress(m.suppressedKeys())
}

func (m *Machine) suppressedKeys() []string {
	if !m.suppressed {
		return nil
	}
	return m.keymap.Keys()
}

// SuppressLastStroke undoes the output of the most recent stroke by calling
// sendBackspaces with the number of key presses it consumed. A second call
// without a new stroke in between sends zero.
func (m *Machine) SuppressLastStroke(sendBackspaces func(n int)) {
	sendBackspaces(int(m.lastDowns.Swap(0)))
}

// Bindings returns the bindings currently in effect.
func (m *Machine) Bindings() chord.Bindings {
	return m.table.Bindings()
}

func (m *Machine) emit(s chord.Stroke) {
	m.lastDowns.Store(int64(s.Downs()))
	m.sink.EmitStroke(s)
}

func (m *Machine) action(key string) (string, bool) {
	actions := m.actions.Load()
	if actions == nil {
		return "", false
	}
	a, ok := (*actions)[key]
	return a, ok
}

// filter drops action keys and records everything else.
type filter struct {
	machine  *Machine
	recorder *keystroke.Recorder
}

func (f *filter) KeyDown(key string) {
	if action, ok := f.machine.action(key); ok {
		f.machine.logger.Info("special action pressed", "key", key, "action", action)
		return
	}
	f.recorder.KeyDown(key)
}

func (f *filter) KeyUp(key string) {
	if _, ok := f.machine.action(key); ok {
		return
	}
	f.recorder.KeyUp(key)
}
