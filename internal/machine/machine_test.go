package machine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halfkbd/internal/chord"
	"halfkbd/internal/keymap"
	"halfkbd/internal/keystroke"
)

type collector struct {
	mu      sync.Mutex
	strokes []chord.Stroke
}

func (c *collector) EmitStroke(s chord.Stroke) {
	c.mu.Lock()
	c.strokes = append(c.strokes, s)
	c.mu.Unlock()
}

func (c *collector) keys() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.strokes))
	for i, s := range c.strokes {
		out[i] = s.Keys
	}
	return out
}

func testKeymap() *keymap.Keymap {
	return &keymap.Keymap{
		Name: "test",
		Bindings: map[string][]string{
			"S-":                    {"s"},
			"T-":                    {"t"},
			keymap.NoOp:             {"z"},
			keymap.ActionMarkAsKeys: {"F1", "a"},
		},
	}
}

type failingCapture struct {
	keystroke.SimulatedCapture
}

func (f *failingCapture) Start(context.Context, keystroke.Handler) error {
	return keystroke.ErrPermissionDenied
}

func TestLifecycleStates(t *testing.T) {
	sim := keystroke.NewSimulated()
	m := New(sim, testKeymap(), &collector{})

	var states []State
	m.OnStateChange(func(s State) { states = append(states, s) })

	assert.Equal(t, StateStopped, m.State())
	require.NoError(t, m.StartCapture(context.Background()))
	assert.Equal(t, StateReady, m.State())
	assert.True(t, sim.IsRunning())

	err := m.StartCapture(context.Background())
	assert.ErrorIs(t, err, keystroke.ErrAlreadyRunning)

	require.NoError(t, m.StopCapture())
	assert.Equal(t, StateStopped, m.State())
	assert.False(t, sim.IsRunning())

	assert.Equal(t, []State{StateInitializing, StateReady, StateStopped}, states)
}

func TestStartFailureReportsError(t *testing.T) {
	m := New(&failingCapture{}, testKeymap(), nil)

	var states []State
	m.OnStateChange(func(s State) { states = append(states, s) })

	err := m.StartCapture(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, keystroke.ErrPermissionDenied))
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, []State{StateInitializing, StateError}, states)

	// Stopping a machine that never started is harmless.
	assert.NoError(t, m.StopCapture())
	assert.Equal(t, StateStopped, m.State())
}

func TestStopFlushesBufferedKeys(t *testing.T) {
	sim := keystroke.NewSimulated()
	sink := &collector{}
	m := New(sim, testKeymap(), sink)
	require.NoError(t, m.StartCapture(context.Background()))

	sim.Press("s")
	sim.Press("t")
	require.NoError(t, m.StopCapture())

	assert.Equal(t, [][]string{{"S-", "*"}, {"T-", "*"}}, sink.keys())
}

func TestTapsFallBack(t *testing.T) {
	sim := keystroke.NewSimulated()
	sink := &collector{}
	m := New(sim, testKeymap(), sink)
	require.NoError(t, m.StartCapture(context.Background()))

	sim.Tap("s")
	sim.Tap("h")
	require.NoError(t, m.StopCapture())

	assert.Equal(t, [][]string{{"S-", "*"}, {"H-", "*"}}, sink.keys())
}

func TestChordThroughCapture(t *testing.T) {
	sim := keystroke.NewSimulated()
	sink := &collector{}
	m := New(sim, testKeymap(), sink)
	require.NoError(t, m.StartCapture(context.Background()))

	sim.Press("s")
	sim.Press("t")
	time.Sleep(140 * time.Millisecond)
	sim.Release("s")
	sim.Release("t")
	require.NoError(t, m.StopCapture())

	assert.Equal(t, [][]string{{"S-", "T-"}}, sink.keys())
}

func TestActionKeysAreDropped(t *testing.T) {
	sim := keystroke.NewSimulated()
	sink := &collector{}
	m := New(sim, testKeymap(), sink)
	require.NoError(t, m.StartCapture(context.Background()))

	// "a" is bound to an action, so its single key stroke never appears.
	sim.Tap("a")
	sim.Tap("F1")
	sim.Tap("t")
	require.NoError(t, m.StopCapture())

	assert.Equal(t, [][]string{{"T-", "*"}}, sink.keys())
}

func TestSuppression(t *testing.T) {
	sim := keystroke.NewSimulated()
	m := New(sim, testKeymap(), nil)

	require.NoError(t, m.SetSuppression(true))
	assert.Empty(t, sim.Suppressed(), "nothing is suppressed before capture starts")

	require.NoError(t, m.StartCapture(context.Background()))
	assert.Equal(t, []string{"F1", "a", "s", "t", "z"}, sim.Suppressed())

	require.NoError(t, m.SetKeymap(&keymap.Keymap{Bindings: map[string][]string{"S-": {"q"}}}))
	assert.Equal(t, []string{"q"}, sim.Suppressed())

	require.NoError(t, m.SetSuppression(false))
	assert.Empty(t, sim.Suppressed())

	require.NoError(t, m.SetSuppression(true))
	require.NoError(t, m.StopCapture())
	assert.Empty(t, sim.Suppressed(), "stop releases suppression")
}

func TestSetKeymapSwapsBindings(t *testing.T) {
	m := New(keystroke.NewSimulated(), testKeymap(), nil)

	sym, ok := m.Bindings().Lookup("s")
	require.True(t, ok)
	assert.Equal(t, "S-", sym)

	require.NoError(t, m.SetKeymap(&keymap.Keymap{Name: "right", Bindings: map[string][]string{"-S": {"s"}}}))
	sym, ok = m.Bindings().Lookup("s")
	require.True(t, ok)
	assert.Equal(t, "-S", sym)
	assert.Equal(t, "right", m.Keymap().Name)

	assert.Error(t, m.SetKeymap(nil))
}

func TestSuppressLastStroke(t *testing.T) {
	m := New(keystroke.NewSimulated(), testKeymap(), &collector{})

	var sent []int
	send := func(n int) { sent = append(sent, n) }

	m.SuppressLastStroke(send)
	m.emit(chord.Stroke{Kind: chord.KindChord, Keys: []string{"S-", "T-"}, Sources: []string{"s", "t"}})
	m.SuppressLastStroke(send)
	m.SuppressLastStroke(send)

	assert.Equal(t, []int{0, 2, 0}, sent)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestCaptureHookSeesRawKeys(t *testing.T) {
	sim := keystroke.NewSimulated()
	var trace *keystroke.TraceRecorder
	m := New(sim, testKeymap(), &collector{}, WithCaptureHook(func(h keystroke.Handler) keystroke.Handler {
		trace = keystroke.NewTraceRecorder(h, nil)
		return trace
	}))
	require.NoError(t, m.StartCapture(context.Background()))

	sim.Tap("F1")
	sim.Tap("s")
	require.NoError(t, m.StopCapture())

	require.NotNil(t, trace)
	var keys []string
	for _, e := range trace.Events() {
		keys = append(keys, e.Direction.String()+" "+e.Key)
	}
	assert.Equal(t, []string{"down F1", "up F1", "down s", "up s"}, keys)
}
