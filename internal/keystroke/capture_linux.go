//go:build linux

package keystroke

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// evdevGrab is EVIOCGRAB, _IOW('E', 0x90, int).
const evdevGrab = 0x40044590

// EvdevCapture reads key transitions from /dev/input on Linux.
type EvdevCapture struct {
	BaseCapture
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	devices []string

	filesMu sync.Mutex
	files   []*os.File
	grabbed bool
}

func newPlatformCapture(devices []string) Capture {
	return &EvdevCapture{devices: devices}
}

// Available checks if we can read input devices.
func (l *EvdevCapture) Available() (bool, string) {
	devices, err := l.resolveDevices()
	if err != nil {
		return false, fmt.Sprintf("cannot find keyboard devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard devices found"
	}

	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found keyboard device: %s", dev)
		}
	}

	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

func (l *EvdevCapture) resolveDevices() ([]string, error) {
	if len(l.devices) > 0 {
		return l.devices, nil
	}
	return FindKeyboardDevices()
}

// ListKeyboards returns the keyboards the kernel reports.
func ListKeyboards() ([]KeyboardDevice, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseInputDevices(f)
}

// FindKeyboardDevices finds /dev/input devices that are keyboards.
func FindKeyboardDevices() ([]string, error) {
	keyboards, err := ListKeyboards()
	if err != nil {
		return nil, err
	}

	devices := make([]string, 0, len(keyboards))
	for _, kb := range keyboards {
		devices = append(devices, kb.Path)
	}
	if len(devices) == 0 {
		matches, _ := filepath.Glob("/dev/input/by-id/*-kbd")
		devices = append(devices, matches...)
	}
	return devices, nil
}

// Start opens every readable keyboard device and begins reading.
func (l *EvdevCapture) Start(ctx context.Context, h Handler) error {
	if l.IsRunning() {
		return ErrAlreadyRunning
	}

	devices, err := l.resolveDevices()
	if err != nil || len(devices) == 0 {
		return ErrNotAvailable
	}

	var files []*os.File
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err != nil {
			if errors.Is(err, os.ErrPermission) && len(devices) == 1 {
				return ErrPermissionDenied
			}
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return ErrPermissionDenied
	}

	l.filesMu.Lock()
	l.files = files
	l.filesMu.Unlock()

	// Grab before any reader runs so a failed grab leaves nothing behind.
	if keys := l.Suppressed(); len(keys) > 0 {
		if err := l.setGrab(true); err != nil {
			l.closeFiles()
			return err
		}
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.SetRunning(true, h)

	for _, f := range files {
		l.wg.Add(1)
		go l.readLoop(f)
	}

	return nil
}

// inputEvent matches the Linux input_event struct.
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

const (
	evKey         = 1
	keyRelease    = 0
	keyPress      = 1
	keyAutoRepeat = 2
)

func (l *EvdevCapture) readLoop(f *os.File) {
	defer l.wg.Done()

	eventSize := binary.Size(inputEvent{})
	buf := make([]byte, eventSize)

	for {
		n, err := f.Read(buf)
		if err != nil {
			// Closing the file in Stop unblocks the read.
			return
		}
		select {
		case <-l.ctx.Done():
			return
		default:
		}
		if n < eventSize {
			continue
		}

		typ := binary.LittleEndian.Uint16(buf[eventSize-8 : eventSize-6])
		code := binary.LittleEndian.Uint16(buf[eventSize-6 : eventSize-4])
		value := int32(binary.LittleEndian.Uint32(buf[eventSize-4 : eventSize]))
		if typ != evKey {
			continue
		}

		key, ok := KeyName(code)
		if !ok {
			continue
		}

		switch value {
		case keyPress, keyAutoRepeat:
			// Repeats are forwarded as presses; the classifier treats a
			// press of a held key as the end of any chord attempt.
			l.Deliver(Down, key)
		case keyRelease:
			l.Deliver(Up, key)
		}
	}
}

// Suppress grabs every open device exclusively while keys is non-empty.
// evdev can only grab whole devices, so suppression is all or nothing.
func (l *EvdevCapture) Suppress(keys []string) error {
	l.SetSuppressed(keys)
	if !l.IsRunning() {
		return nil
	}
	return l.setGrab(len(keys) > 0)
}

func (l *EvdevCapture) setGrab(grab bool) error {
	l.filesMu.Lock()
	defer l.filesMu.Unlock()

	if grab == l.grabbed {
		return nil
	}
	value := 0
	if grab {
		value = 1
	}
	for _, f := range l.files {
		// SyscallConn keeps the descriptor non-blocking, so Close can still
		// interrupt the reader.
		rc, err := f.SyscallConn()
		if err != nil {
			return fmt.Errorf("grab %s: %w", f.Name(), err)
		}
		var ioctlErr error
		if err := rc.Control(func(fd uintptr) {
			ioctlErr = unix.IoctlSetInt(int(fd), evdevGrab, value)
		}); err != nil {
			return fmt.Errorf("grab %s: %w", f.Name(), err)
		}
		if ioctlErr != nil {
			return fmt.Errorf("grab %s: %w", f.Name(), ioctlErr)
		}
	}
	l.grabbed = grab
	return nil
}

// Stop releases any grab, closes the devices, and waits for the readers.
func (l *EvdevCapture) Stop() error {
	if !l.IsRunning() {
		return nil
	}

	grabErr := l.setGrab(false)

	if l.cancel != nil {
		l.cancel()
	}

	l.closeFiles()

	l.wg.Wait()
	l.SetRunning(false, nil)

	return grabErr
}

// closeFiles closes every open device. Closing a device drops its grab.
func (l *EvdevCapture) closeFiles() {
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	for _, f := range l.files {
		f.Close()
	}
	l.files = nil
	l.grabbed = false
}
