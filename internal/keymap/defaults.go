package keymap

// Default returns the stock QWERTY layout: the left half of the keyboard
// plays the left bank, the right half the right bank, and the vowels sit on
// c, v, n and m.
func Default() *Keymap {
	return &Keymap{
		Name: "qwerty",
		Bindings: map[string][]string{
			"#":  {"1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "="},
			"S-": {"q", "a"},
			"T-": {"w"},
			"K-": {"s"},
			"P-": {"e"},
			"W-": {"d"},
			"H-": {"r"},
			"R-": {"f"},
			"A-": {"c"},
			"O-": {"v"},
			"*":  {"t", "g", "y", "h"},
			"-E": {"n"},
			"-U": {"m"},
			"-F": {"u"},
			"-R": {"j"},
			"-P": {"i"},
			"-B": {"k"},
			"-L": {"o"},
			"-G": {"l"},
			"-T": {"p"},
			"-S": {";"},
			"-D": {"["},
			"-Z": {"'"},

			NoOp: {"z", "x", "b", ",", ".", "/", "]", "\\"},
		},
	}
}
