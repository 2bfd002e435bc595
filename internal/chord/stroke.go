package chord

import (
	"sort"
	"strings"
	"time"
)

// Kind says how a stroke was produced.
type Kind int

const (
	// KindChord is a set of symbols from keys pressed together.
	KindChord Kind = iota
	// KindSingle is the fallback stroke for one key.
	KindSingle
)

// String returns "chord" or "single".
func (k Kind) String() string {
	if k == KindChord {
		return "chord"
	}
	return "single"
}

// Stroke is one decision of the engine.
type Stroke struct {
	Kind Kind

	// Keys are the output symbols. For a chord they are distinct and
	// sorted; for a single key stroke their order is significant.
	Keys []string

	// Sources are the physical keys whose presses produced the stroke, in
	// press order.
	Sources []string

	// Time is when the decision was made.
	Time time.Time
}

// Downs returns the number of key presses the stroke consumed.
func (s Stroke) Downs() int {
	return len(s.Sources)
}

// String renders the symbols joined by spaces.
func (s Stroke) String() string {
	return strings.Join(s.Keys, " ")
}

// symbolSet returns the distinct symbols of keys in sorted order.
func symbolSet(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
