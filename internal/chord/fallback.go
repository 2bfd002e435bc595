package chord

// singleKeyStrokes spells each supported key as the steno stroke for its
// letter, starred so a dictionary treats it as fingerspelling.
var singleKeyStrokes = map[string][]string{
	"a": {"A-", "*"},
	"b": {"P-", "W-", "*"},
	"c": {"K-", "R-", "*"},
	"d": {"T-", "K-", "*"},
	"e": {"*", "-E"},
	"f": {"T-", "P-", "*"},
	"g": {"T-", "K-", "P-", "W-", "*"},
	"h": {"H-", "*"},
	"i": {"*", "-E", "-U"},
	"j": {"S-", "K-", "W-", "R-", "*"},
	"k": {"K-", "*"},
	"l": {"H-", "R-", "*"},
	"m": {"P-", "H-", "*"},
	"n": {"T-", "P-", "H-", "*"},
	"o": {"O-", "*"},
	"p": {"P-", "*"},
	"q": {"K-", "W-", "*"},
	"r": {"R-", "*"},
	"s": {"S-", "*"},
	"t": {"T-", "*"},
	"u": {"*", "-U"},
	"v": {"S-", "R-", "*"},
	"w": {"W-", "*"},
	"x": {"K-", "P-", "*"},
	"y": {"K-", "W-", "R-", "*"},
	"z": {"S-", "T-", "K-", "P-", "W-", "*"},

	"BackSpace": {"P-", "W-", "-F", "-P"},
	"space":     {"S-", "-P"},
}

// SingleKeyStroke returns the ordered stroke a key produces on its own. The
// returned slice is a copy.
func SingleKeyStroke(key string) ([]string, bool) {
	keys, ok := singleKeyStrokes[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), keys...), true
}
