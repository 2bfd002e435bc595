//go:build linux

package keystroke

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEvents writes raw input_event records to a regular file that stands
// in for a /dev/input device. Reads hit EOF once the records are consumed.
func writeEvents(t *testing.T, events ...inputEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event0")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, ev := range events {
		require.NoError(t, binary.Write(f, binary.LittleEndian, ev))
	}
	return path
}

func keyEvent(code uint16, value int32) inputEvent {
	return inputEvent{Type: evKey, Code: code, Value: value}
}

const (
	codeA         = 30
	codeLeftShift = 42
)

func TestEvdevCaptureDecodesKeyEvents(t *testing.T) {
	path := writeEvents(t,
		keyEvent(codeA, keyPress),
		inputEvent{Type: 0}, // EV_SYN
		keyEvent(codeA, keyAutoRepeat),
		keyEvent(codeLeftShift, keyPress),
		keyEvent(codeA, keyRelease),
	)

	c := &EvdevCapture{devices: []string{path}}
	h := &recordingHandler{}
	require.NoError(t, c.Start(context.Background(), h))
	defer c.Stop()

	want := []string{"+a", "+a", "-a"}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, h.snapshot())
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
}

func TestEvdevCaptureLifecycle(t *testing.T) {
	path := writeEvents(t)
	c := &EvdevCapture{devices: []string{path}}
	h := &recordingHandler{}

	require.NoError(t, c.Start(context.Background(), h))
	assert.True(t, c.IsRunning())
	assert.ErrorIs(t, c.Start(context.Background(), h), ErrAlreadyRunning)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	assert.Nil(t, c.files)
	require.NoError(t, c.Stop())

	// Restart after a clean stop.
	require.NoError(t, c.Start(context.Background(), h))
	require.NoError(t, c.Stop())
}

func TestEvdevCaptureMissingDevice(t *testing.T) {
	c := &EvdevCapture{devices: []string{filepath.Join(t.TempDir(), "missing")}}
	assert.ErrorIs(t, c.Start(context.Background(), &recordingHandler{}), ErrPermissionDenied)
	assert.False(t, c.IsRunning())
}

func TestEvdevCaptureSuppressWhileStopped(t *testing.T) {
	c := &EvdevCapture{devices: []string{writeEvents(t)}}

	require.NoError(t, c.Suppress([]string{"a", "s"}))
	assert.Equal(t, []string{"a", "s"}, c.Suppressed())
	assert.False(t, c.grabbed)
}

// A regular file rejects EVIOCGRAB, which stands in for a device another
// process already holds.
func TestEvdevCaptureGrabFailureOnStart(t *testing.T) {
	c := &EvdevCapture{devices: []string{writeEvents(t, keyEvent(codeA, keyPress))}}
	h := &recordingHandler{}
	require.NoError(t, c.Suppress([]string{"a"}))

	err := c.Start(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grab")
	assert.False(t, c.IsRunning())
	assert.Nil(t, c.files)
	assert.False(t, c.grabbed)
	assert.Empty(t, h.snapshot())

	// The failed Start left nothing running, so a retry fails the same way.
	err = c.Start(context.Background(), h)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), "grab")

	// Clearing suppression lets the capture start without a grab.
	require.NoError(t, c.Suppress(nil))
	require.NoError(t, c.Start(context.Background(), h))
	require.NoError(t, c.Stop())
}

func TestEvdevCaptureGrabFailureWhileRunning(t *testing.T) {
	c := &EvdevCapture{devices: []string{writeEvents(t)}}
	require.NoError(t, c.Start(context.Background(), &recordingHandler{}))
	defer c.Stop()

	err := c.Suppress([]string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grab")
	assert.False(t, c.grabbed)
	assert.True(t, c.IsRunning())
	assert.Equal(t, []string{"a"}, c.Suppressed())
}
