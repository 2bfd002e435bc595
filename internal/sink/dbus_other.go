//go:build !linux

package sink

import (
	"errors"

	"halfkbd/internal/chord"
)

// ErrDBusUnsupported is returned where no session bus is expected.
var ErrDBusUnsupported = errors.New("D-Bus sink is only supported on Linux")

// DBus is unavailable on this platform.
type DBus struct{}

// ConnectDBus always fails on this platform.
func ConnectDBus(busName, path string) (*DBus, error) {
	return nil, ErrDBusUnsupported
}

// EmitStroke implements chord.Sink.
func (d *DBus) EmitStroke(chord.Stroke) {}

// Err always returns nil.
func (d *DBus) Err() error { return nil }

// Close does nothing.
func (d *DBus) Close() error { return nil }
