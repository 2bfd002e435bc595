package keystroke

// Key names follow the names the keymap uses: single printable characters
// for character keys, X11 keysym names for the rest.
var codeToName = map[uint16]string{
	1: "Escape",
	2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9", 11: "0",
	12: "-", 13: "=",
	14: "BackSpace",
	15: "Tab",
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t", 21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	26: "[", 27: "]",
	28: "Return",
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g", 35: "h", 36: "j", 37: "k", 38: "l",
	39: ";", 40: "'", 41: "`",
	43: "\\",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b", 49: "n", 50: "m",
	51: ",", 52: ".", 53: "/",
	57: "space",
	59: "F1", 60: "F2", 61: "F3", 62: "F4", 63: "F5", 64: "F6",
	65: "F7", 66: "F8", 67: "F9", 68: "F10", 87: "F11", 88: "F12",
	102: "Home", 103: "Up", 104: "Page_Up", 105: "Left", 106: "Right",
	107: "End", 108: "Down", 109: "Page_Down", 110: "Insert", 111: "Delete",
}

var nameToCode = func() map[string]uint16 {
	m := make(map[string]uint16, len(codeToName))
	for code, name := range codeToName {
		m[name] = code
	}
	return m
}()

// KeyName returns the key name for a Linux input event code. Modifiers and
// keys with no name are not reported.
func KeyName(code uint16) (string, bool) {
	name, ok := codeToName[code]
	return name, ok
}

// KeyCode returns the Linux input event code for a key name.
func KeyCode(name string) (uint16, bool) {
	code, ok := nameToCode[name]
	return code, ok
}

// SupportedKey reports whether name is a key a backend can report.
func SupportedKey(name string) bool {
	_, ok := nameToCode[name]
	return ok
}

// SupportedKeys returns every key name a backend can report.
func SupportedKeys() []string {
	keys := make([]string, 0, len(nameToCode))
	for name := range nameToCode {
		keys = append(keys, name)
	}
	return keys
}
