package keystroke

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Connection is how a keyboard is attached.
type Connection int

const (
	ConnectionUnknown Connection = iota
	ConnectionUSB
	ConnectionBluetooth
	ConnectionPS2
	ConnectionInternal
	ConnectionVirtual
)

// String returns the connection name.
func (c Connection) String() string {
	switch c {
	case ConnectionUSB:
		return "usb"
	case ConnectionBluetooth:
		return "bluetooth"
	case ConnectionPS2:
		return "ps2"
	case ConnectionInternal:
		return "internal"
	case ConnectionVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// KeyboardDevice describes one keyboard input device.
type KeyboardDevice struct {
	Path       string // /dev/input/eventN
	Name       string
	Phys       string
	Vendor     uint16
	Product    uint16
	Connection Connection
}

// ParseInputDevices reads the /proc/bus/input/devices format and returns
// the devices that look like full keyboards, in file order. Devices without
// an event handler are skipped.
func ParseInputDevices(r io.Reader) ([]KeyboardDevice, error) {
	var (
		devices    []KeyboardDevice
		current    KeyboardDevice
		isKeyboard bool
	)
	seen := make(map[string]bool)

	finish := func() {
		if isKeyboard && current.Path != "" && !seen[current.Path] {
			if current.Connection == ConnectionUnknown {
				current.Connection = physConnection(current.Phys)
			}
			devices = append(devices, current)
			seen[current.Path] = true
		}
		current = KeyboardDevice{}
		isKeyboard = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			finish()

		// I: Bus=0003 Vendor=046d Product=c52b Version=0111
		case strings.HasPrefix(line, "I:"):
			for _, part := range strings.Fields(line) {
				name, value, ok := strings.Cut(part, "=")
				if !ok {
					continue
				}
				switch name {
				case "Bus":
					current.Connection = busConnection(value)
				case "Vendor":
					current.Vendor = parseHex16(value)
				case "Product":
					current.Product = parseHex16(value)
				}
			}

		case strings.HasPrefix(line, "N: Name="):
			current.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)

		case strings.HasPrefix(line, "P: Phys="):
			current.Phys = strings.TrimPrefix(line, "P: Phys=")

		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					current.Path = "/dev/input/" + part
				}
			}

		// A full keyboard reports a long KEY capability bitmap. Mice and
		// power buttons report a short one.
		case strings.HasPrefix(line, "B: KEY=") && len(line) > 30:
			isKeyboard = true
		}
	}
	finish()

	return devices, scanner.Err()
}

func parseHex16(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

// busConnection maps a Linux BUS_* code.
func busConnection(bus string) Connection {
	switch strings.ToLower(bus) {
	case "0003":
		return ConnectionUSB
	case "0005":
		return ConnectionBluetooth
	case "0011":
		return ConnectionPS2
	case "0019", "001f":
		return ConnectionInternal
	case "0006":
		return ConnectionVirtual
	default:
		return ConnectionUnknown
	}
}

func physConnection(phys string) Connection {
	phys = strings.ToLower(phys)
	switch {
	case strings.HasPrefix(phys, "usb-"):
		return ConnectionUSB
	case strings.Contains(phys, "bluetooth"), strings.HasPrefix(phys, "bt-"):
		return ConnectionBluetooth
	case strings.HasPrefix(phys, "isa"), strings.Contains(phys, "i8042"), strings.Contains(phys, "serio"):
		return ConnectionPS2
	case phys == "", strings.HasPrefix(phys, "virtual"):
		return ConnectionVirtual
	default:
		return ConnectionUnknown
	}
}
