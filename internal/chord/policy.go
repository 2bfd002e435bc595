// Package chord classifies bursts of raw key transitions as either a single
// chorded stroke or a run of individual keystrokes.
//
// A burst is everything between two moments when no key is held. A burst is
// a chord when its keys go down together, stay down together for a while,
// and come up together:
//
//	down  a b c        (spread <= MaxDownGap)
//	hold               (MinOverlap <= last down -> first up <= MaxOverlap)
//	up    a b c        (spread <= MaxUpGap)
//
// Anything else is resolved key by key through a fixed fallback table.
package chord

import (
	"fmt"
	"time"

	"halfkbd/internal/keystroke"
)

// Timing windows. These are fixed; they are not user configurable.
const (
	// MaxDownGap bounds the spread of the initial presses.
	MaxDownGap = 50 * time.Millisecond

	// MinOverlap is the shortest time all keys must be held together.
	MinOverlap = 100 * time.Millisecond

	// MaxOverlap is the longest time all keys may be held together.
	MaxOverlap = 200 * time.Millisecond

	// MaxUpGap bounds the spread of the releases.
	MaxUpGap = 50 * time.Millisecond

	// DelayTime is how long the engine sleeps between polls while a key is
	// held.
	DelayTime = 20 * time.Millisecond

	// StaleAfter is how long a burst may go without a new event before it
	// is abandoned.
	StaleAfter = max(MaxOverlap, MaxUpGap) + 2*DelayTime
)

// Check identifies which timing rule a burst failed.
type Check int

const (
	CheckLeadingUp Check = iota + 1
	CheckDownGap
	CheckStale
	CheckInterleaved
	CheckUpGap
	CheckOverlap
)

// String returns the check name used in logs and metrics.
func (c Check) String() string {
	switch c {
	case CheckLeadingUp:
		return "leading_up"
	case CheckDownGap:
		return "down_gap"
	case CheckStale:
		return "stale"
	case CheckInterleaved:
		return "interleaved"
	case CheckUpGap:
		return "up_gap"
	case CheckOverlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// Rejection explains why a burst cannot be a chord.
type Rejection struct {
	Check Check
	// Span is the measured interval that broke the rule. It is zero for
	// structural failures.
	Span time.Duration
}

func (r *Rejection) Error() string {
	if r.Span == 0 {
		return fmt.Sprintf("not a chord: %s", r.Check)
	}
	return fmt.Sprintf("not a chord: %s=%s", r.Check, r.Span)
}

// Verify reports whether events, observed at now, can still be (or already
// are) a chord. It returns nil if so and a *Rejection otherwise.
//
// Verify only reads events. Calling it twice with the same arguments gives
// the same answer.
func Verify(events []keystroke.Event, now time.Time) error {
	if len(events) == 0 {
		return nil
	}
	if !events[0].IsDown() {
		return &Rejection{Check: CheckLeadingUp}
	}

	firstUp := len(events)
	for i, ev := range events {
		if !ev.IsDown() {
			firstUp = i
			break
		}
	}

	downGap := events[firstUp-1].Time.Sub(events[0].Time)
	if downGap > MaxDownGap {
		return &Rejection{Check: CheckDownGap, Span: downGap}
	}

	idle := now.Sub(events[len(events)-1].Time)
	if idle > StaleAfter {
		return &Rejection{Check: CheckStale, Span: idle}
	}

	if firstUp == len(events) {
		return nil
	}

	for _, ev := range events[firstUp:] {
		if ev.IsDown() {
			return &Rejection{Check: CheckInterleaved}
		}
	}

	upGap := events[len(events)-1].Time.Sub(events[firstUp].Time)
	if upGap > MaxUpGap {
		return &Rejection{Check: CheckUpGap, Span: upGap}
	}

	overlap := events[firstUp].Time.Sub(events[firstUp-1].Time)
	if overlap < MinOverlap || overlap > MaxOverlap {
		return &Rejection{Check: CheckOverlap, Span: overlap}
	}

	return nil
}

// CanBeChord is Verify as a predicate.
func CanBeChord(events []keystroke.Event, now time.Time) bool {
	return Verify(events, now) == nil
}

// overlapOf returns the hold time of a complete burst: last press to first
// release. It returns false if the burst has no release.
func overlapOf(events []keystroke.Event) (time.Duration, bool) {
	for i, ev := range events {
		if !ev.IsDown() {
			if i == 0 {
				return 0, false
			}
			return ev.Time.Sub(events[i-1].Time), true
		}
	}
	return 0, false
}
