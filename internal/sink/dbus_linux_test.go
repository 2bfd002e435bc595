//go:build linux

package sink

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionBus(t *testing.T) *dbus.Conn {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no session bus")
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		t.Skipf("no session bus: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDBusBroadcastsStrokes(t *testing.T) {
	listener := sessionBus(t)

	name := fmt.Sprintf("%s.test%d", DefaultBusName, os.Getpid())
	d, err := ConnectDBus(name, DefaultObjectPath)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, listener.AddMatchSignal(
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("Stroke"),
	))
	signals := make(chan *dbus.Signal, 4)
	listener.Signal(signals)

	d.EmitStroke(chordStroke())
	require.NoError(t, d.Err())

	select {
	case sig := <-signals:
		require.Len(t, sig.Body, 4)
		assert.Equal(t, "chord", sig.Body[0])
		assert.Equal(t, []string{"S-", "T-"}, sig.Body[1])
		assert.Equal(t, []string{"s", "t"}, sig.Body[2])
		assert.Equal(t, when.UnixNano(), sig.Body[3])
	case <-time.After(2 * time.Second):
		t.Fatal("no Stroke signal received")
	}

	var (
		kind          string
		symbols, keys []string
	)
	obj := listener.Object(name, DefaultObjectPath)
	require.NoError(t, obj.Call(Interface+".LastStroke", 0).Store(&kind, &symbols, &keys))
	assert.Equal(t, "chord", kind)
	assert.Equal(t, []string{"S-", "T-"}, symbols)
}

func TestDBusNameTaken(t *testing.T) {
	sessionBus(t)

	name := fmt.Sprintf("%s.taken%d", DefaultBusName, os.Getpid())
	first, err := ConnectDBus(name, "")
	require.NoError(t, err)
	defer first.Close()

	_, err = ConnectDBus(name, "")
	assert.Error(t, err)
}

func TestDBusInvalidPath(t *testing.T) {
	conn := sessionBus(t)
	_, err := NewDBus(conn, "", "not/a/path")
	assert.Error(t, err)
}
