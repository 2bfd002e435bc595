package keystroke

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ParseTrace reads a recorded key trace. Each line is
//
//	down|up KEY SECONDS
//
// where SECONDS is the offset from base. Blank lines and lines starting
// with '#' are skipped. Offsets are taken as given, in file order.
func ParseTrace(r io.Reader, base time.Time) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: want \"down|up KEY SECONDS\", got %q", line, text)
		}

		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return nil, fmt.Errorf("line %d: bad offset %q", line, fields[2])
		}
		t := base.Add(time.Duration(math.Round(secs * float64(time.Second))))

		switch strings.ToLower(fields[0]) {
		case "down":
			events = append(events, KeyDown(fields[1], t))
		case "up":
			events = append(events, KeyUp(fields[1], t))
		default:
			return nil, fmt.Errorf("line %d: unknown direction %q", line, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return events, nil
}

// WriteTrace writes events in the form ParseTrace reads, with offsets from
// base to the microsecond.
func WriteTrace(w io.Writer, events []Event, base time.Time) error {
	bw := bufio.NewWriter(w)
	for _, e := range events {
		fmt.Fprintf(bw, "%-4s %s %.6f\n", e.Direction, e.Key, e.Time.Sub(base).Seconds())
	}
	return bw.Flush()
}

// TraceRecorder is a Handler that keeps every transition it sees, stamped
// with now, and passes it on to next.
type TraceRecorder struct {
	next Handler
	now  func() time.Time

	mu     sync.Mutex
	events []Event
}

// NewTraceRecorder wraps next. A nil now uses time.Now.
func NewTraceRecorder(next Handler, now func() time.Time) *TraceRecorder {
	if now == nil {
		now = time.Now
	}
	return &TraceRecorder{next: next, now: now}
}

// KeyDown implements Handler.
func (r *TraceRecorder) KeyDown(key string) {
	r.record(KeyDown(key, r.now()))
	r.next.KeyDown(key)
}

// KeyUp implements Handler.
func (r *TraceRecorder) KeyUp(key string) {
	r.record(KeyUp(key, r.now()))
	r.next.KeyUp(key)
}

func (r *TraceRecorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded transitions.
func (r *TraceRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
