//go:build linux

package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"halfkbd/internal/chord"
)

// DBus publishes strokes on the session bus. Each stroke is broadcast as a
// Stroke(kind, symbols, keys, unix_nanos) signal; the most recent one can
// also be fetched with the LastStroke method.
type DBus struct {
	conn  *dbus.Conn
	path  dbus.ObjectPath
	owned bool

	mu   sync.Mutex
	last chord.Stroke
	err  error
}

// ConnectDBus opens a private session bus connection, claims busName and
// exports the stroke service at path.
func ConnectDBus(busName, path string) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	d, err := NewDBus(conn, busName, path)
	if err != nil {
		conn.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

// NewDBus exports the stroke service on an existing connection.
func NewDBus(conn *dbus.Conn, busName, path string) (*DBus, error) {
	if busName == "" {
		busName = DefaultBusName
	}
	if path == "" {
		path = DefaultObjectPath
	}
	objPath := dbus.ObjectPath(path)
	if !objPath.IsValid() {
		return nil, fmt.Errorf("invalid object path %q", path)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s already taken", busName)
	}

	d := &DBus{conn: conn, path: objPath}
	if err := conn.Export(&dbusObject{sink: d}, objPath, Interface); err != nil {
		return nil, fmt.Errorf("export stroke service: %w", err)
	}
	return d, nil
}

// EmitStroke implements chord.Sink.
func (d *DBus) EmitStroke(s chord.Stroke) {
	d.mu.Lock()
	d.last = s
	d.mu.Unlock()

	err := d.conn.Emit(d.path, Interface+".Stroke",
		s.Kind.String(), nonNil(s.Keys), nonNil(s.Sources), s.Time.UnixNano())
	if err != nil {
		d.mu.Lock()
		if d.err == nil {
			d.err = err
		}
		d.mu.Unlock()
	}
}

// Err returns the first emit error, if any.
func (d *DBus) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close unexports the service and closes the connection if ConnectDBus
// opened it.
func (d *DBus) Close() error {
	var errs []error
	if err := d.conn.Export(nil, d.path, Interface); err != nil {
		errs = append(errs, err)
	}
	if d.owned {
		if err := d.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dbusObject holds the exported methods so they do not leak onto DBus.
type dbusObject struct {
	sink *DBus
}

// LastStroke returns the kind, symbols and keys of the most recent stroke.
func (o *dbusObject) LastStroke() (string, []string, []string, *dbus.Error) {
	o.sink.mu.Lock()
	defer o.sink.mu.Unlock()
	s := o.sink.last
	if s.Keys == nil {
		return "", []string{}, []string{}, nil
	}
	return s.Kind.String(), s.Keys, nonNil(s.Sources), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
