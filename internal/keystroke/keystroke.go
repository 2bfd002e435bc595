// Package keystroke provides raw key transitions and the plumbing that moves
// them from a capture backend to the chord classifier.
//
// A capture backend reports every physical key-down and key-up by name
// ("a", "space", "BackSpace", ...). Each report becomes an Event stamped with
// the current time and is pushed onto a Queue. The classifier is the only
// consumer of that queue.
//
// Platform support:
//   - Linux: reads /dev/input/event* (requires input group or root)
//   - Other platforms: only the simulated backend is available
package keystroke

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Direction is the kind of transition a key made.
type Direction bool

const (
	// Up is a key release.
	Up Direction = false
	// Down is a key press (or a hardware repeat of one).
	Down Direction = true
)

// String returns "down" or "up".
func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Event is a single timestamped key transition. Events are values and are
// never modified after construction.
type Event struct {
	Direction Direction
	Key       string
	Time      time.Time
}

// KeyDown creates a press event for key at t.
func KeyDown(key string, t time.Time) Event {
	return Event{Direction: Down, Key: key, Time: t}
}

// KeyUp creates a release event for key at t.
func KeyUp(key string, t time.Time) Event {
	return Event{Direction: Up, Key: key, Time: t}
}

// IsDown reports whether the event is a press.
func (e Event) IsDown() bool {
	return e.Direction == Down
}

// Handler receives key transitions from a capture backend. Implementations
// must return quickly; they are called on the backend's own goroutine.
type Handler interface {
	KeyDown(key string)
	KeyUp(key string)
}

// Capture is a source of physical key transitions.
type Capture interface {
	// Start begins delivering transitions to h.
	Start(ctx context.Context, h Handler) error

	// Stop stops delivery. It is safe to call Stop more than once.
	Stop() error

	// Suppress asks the backend to keep the given keys from reaching other
	// applications. An empty list releases all suppression.
	Suppress(keys []string) error

	// Available returns true if the backend can run on this platform with
	// current permissions, along with a human readable reason.
	Available() (bool, string)
}

// ErrNotAvailable is returned when a capture backend cannot run here.
var ErrNotAvailable = errors.New("keyboard capture not available on this platform")

// ErrPermissionDenied is returned when permissions are insufficient.
var ErrPermissionDenied = errors.New("insufficient permissions for keyboard capture")

// ErrAlreadyRunning is returned when Start is called while already running.
var ErrAlreadyRunning = errors.New("capture already running")

// BaseCapture provides the bookkeeping shared by backends.
type BaseCapture struct {
	mu         sync.RWMutex
	running    bool
	handler    Handler
	suppressed map[string]struct{}
}

// SetRunning records the running state and the handler to deliver to.
func (b *BaseCapture) SetRunning(running bool, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
	b.handler = h
}

// IsRunning returns the running state.
func (b *BaseCapture) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// SetSuppressed replaces the suppressed key set.
func (b *BaseCapture) SetSuppressed(keys []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(keys) == 0 {
		b.suppressed = nil
		return
	}
	b.suppressed = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		b.suppressed[k] = struct{}{}
	}
}

// Suppressed returns the suppressed keys in sorted order.
func (b *BaseCapture) Suppressed() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.suppressed))
	for k := range b.suppressed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSuppressed reports whether key is currently suppressed.
func (b *BaseCapture) IsSuppressed(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.suppressed[key]
	return ok
}

// Deliver forwards a transition to the registered handler, if running.
func (b *BaseCapture) Deliver(dir Direction, key string) {
	b.mu.RLock()
	h, running := b.handler, b.running
	b.mu.RUnlock()
	if !running || h == nil {
		return
	}
	if dir == Down {
		h.KeyDown(key)
	} else {
		h.KeyUp(key)
	}
}

// SimulatedCapture is a capture backend for testing that doesn't hook the
// real keyboard.
type SimulatedCapture struct {
	BaseCapture
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSimulated creates a capture backend for testing.
func NewSimulated() *SimulatedCapture {
	return &SimulatedCapture{}
}

// Start begins the simulated capture.
func (s *SimulatedCapture) Start(ctx context.Context, h Handler) error {
	if s.IsRunning() {
		return ErrAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.SetRunning(true, h)
	return nil
}

// Stop stops the simulated capture.
func (s *SimulatedCapture) Stop() error {
	if !s.IsRunning() {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.SetRunning(false, nil)
	return nil
}

// Suppress records the suppressed key set.
func (s *SimulatedCapture) Suppress(keys []string) error {
	s.SetSuppressed(keys)
	return nil
}

// Press simulates a physical key press.
func (s *SimulatedCapture) Press(key string) {
	s.Deliver(Down, key)
}

// Release simulates a physical key release.
func (s *SimulatedCapture) Release(key string) {
	s.Deliver(Up, key)
}

// Tap simulates a press immediately followed by a release.
func (s *SimulatedCapture) Tap(key string) {
	s.Press(key)
	s.Release(key)
}

// Available returns true (simulated is always available).
func (s *SimulatedCapture) Available() (bool, string) {
	return true, "simulated capture (for testing)"
}

// New creates the capture backend for the current platform.
func New(devices []string) Capture {
	return newPlatformCapture(devices)
}
