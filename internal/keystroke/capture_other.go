//go:build !linux

package keystroke

import (
	"context"
)

// StubCapture is used on unsupported platforms.
type StubCapture struct {
	BaseCapture
}

func newPlatformCapture(devices []string) Capture {
	return &StubCapture{}
}

// Available returns false on unsupported platforms.
func (s *StubCapture) Available() (bool, string) {
	return false, "keyboard capture not implemented for this platform"
}

// Start returns an error on unsupported platforms.
func (s *StubCapture) Start(ctx context.Context, h Handler) error {
	return ErrNotAvailable
}

// Stop is a no-op on unsupported platforms.
func (s *StubCapture) Stop() error {
	return nil
}

// Suppress records the request; there is nothing to suppress.
func (s *StubCapture) Suppress(keys []string) error {
	s.SetSuppressed(keys)
	return nil
}

// FindKeyboardDevices is not supported on this platform.
func FindKeyboardDevices() ([]string, error) {
	return nil, ErrNotAvailable
}

// ListKeyboards is not supported on this platform.
func ListKeyboards() ([]KeyboardDevice, error) {
	return nil, ErrNotAvailable
}
