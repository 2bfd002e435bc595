package keystroke

import (
	"context"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Tests for Event
// =============================================================================

func TestEventConstructors(t *testing.T) {
	now := time.Now()

	down := KeyDown("a", now)
	if !down.IsDown() || down.Key != "a" || !down.Time.Equal(now) {
		t.Errorf("unexpected down event: %+v", down)
	}

	up := KeyUp("a", now)
	if up.IsDown() || up.Direction != Up {
		t.Errorf("unexpected up event: %+v", up)
	}
}

func TestDirectionString(t *testing.T) {
	if Down.String() != "down" {
		t.Errorf("expected down, got %s", Down.String())
	}
	if Up.String() != "up" {
		t.Errorf("expected up, got %s", Up.String())
	}
}

// =============================================================================
// Tests for SimulatedCapture
// =============================================================================

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) KeyDown(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "+"+key)
}

func (h *recordingHandler) KeyUp(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "-"+key)
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func TestSimulatedCaptureStartStop(t *testing.T) {
	sc := NewSimulated()
	h := &recordingHandler{}

	if sc.IsRunning() {
		t.Error("should not be running initially")
	}

	if err := sc.Start(context.Background(), h); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sc.IsRunning() {
		t.Error("should be running after Start")
	}

	if err := sc.Start(context.Background(), h); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := sc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if sc.IsRunning() {
		t.Error("should not be running after Stop")
	}

	// Stopping twice is fine.
	if err := sc.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestSimulatedCaptureDelivers(t *testing.T) {
	sc := NewSimulated()
	h := &recordingHandler{}

	// Nothing is delivered before Start.
	sc.Press("x")

	if err := sc.Start(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	sc.Press("s")
	sc.Press("t")
	sc.Release("s")
	sc.Release("t")
	sc.Tap("a")
	sc.Stop()

	// Nothing is delivered after Stop.
	sc.Press("y")

	got := h.snapshot()
	want := []string{"+s", "+t", "-s", "-t", "+a", "-a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSimulatedCaptureSuppress(t *testing.T) {
	sc := NewSimulated()

	if err := sc.Suppress([]string{"t", "s"}); err != nil {
		t.Fatal(err)
	}
	got := sc.Suppressed()
	if len(got) != 2 || got[0] != "s" || got[1] != "t" {
		t.Errorf("expected [s t], got %v", got)
	}
	if !sc.IsSuppressed("s") || sc.IsSuppressed("a") {
		t.Error("IsSuppressed mismatch")
	}

	sc.Suppress(nil)
	if len(sc.Suppressed()) != 0 {
		t.Error("expected suppression to be released")
	}
}

func TestSimulatedAvailable(t *testing.T) {
	ok, reason := NewSimulated().Available()
	if !ok {
		t.Error("simulated capture should always be available")
	}
	if reason == "" {
		t.Error("expected a reason")
	}
}

// =============================================================================
// Tests for key names
// =============================================================================

func TestKeyNameRoundTrip(t *testing.T) {
	for _, name := range []string{"a", "s", "t", "space", "BackSpace", "Return", ";", "F12"} {
		code, ok := KeyCode(name)
		if !ok {
			t.Errorf("no code for %q", name)
			continue
		}
		back, ok := KeyName(code)
		if !ok || back != name {
			t.Errorf("code %d: expected %q, got %q", code, name, back)
		}
	}
}

func TestKeyNameKnownCodes(t *testing.T) {
	tests := []struct {
		code uint16
		name string
	}{
		{30, "a"},
		{57, "space"},
		{14, "BackSpace"},
		{16, "q"},
		{44, "z"},
	}
	for _, test := range tests {
		name, ok := KeyName(test.code)
		if !ok || name != test.name {
			t.Errorf("code %d: expected %q, got %q", test.code, test.name, name)
		}
	}

	// Left shift is a modifier and has no name.
	if _, ok := KeyName(42); ok {
		t.Error("modifier should not have a key name")
	}
}

func TestSupportedKeys(t *testing.T) {
	keys := SupportedKeys()
	if len(keys) != len(codeToName) {
		t.Errorf("expected %d keys, got %d", len(codeToName), len(keys))
	}
	if !SupportedKey("a") || SupportedKey("Hyper_L") {
		t.Error("SupportedKey mismatch")
	}
}
