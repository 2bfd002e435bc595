package chord

import (
	"halfkbd/internal/keystroke"
)

// Replay classifies a recorded sequence of transitions and returns the
// strokes the engine would have emitted live. It runs the same loop as Run
// on a virtual clock: while a key is held time advances in DelayTime steps
// and every event due by then is taken; while idle the clock jumps to the
// next event. Any WithClock option is ignored.
func Replay(events []keystroke.Event, bindings Bindings, opts ...Option) []Stroke {
	if len(events) == 0 {
		return nil
	}

	var strokes []Stroke
	clock := NewManualClock(events[0].Time)
	sink := SinkFunc(func(s Stroke) {
		strokes = append(strokes, s)
	})

	opts = append(opts, WithClock(clock))
	e := NewEngine(nil, NewTable(bindings), sink, opts...)

	next := 0
	for next < len(events) {
		if len(e.pressed) > 0 {
			clock.Sleep(DelayTime)
			for next < len(events) && !events[next].Time.After(clock.Now()) {
				e.handle(events[next])
				next++
			}
		} else {
			if ev := events[next]; ev.Time.After(clock.Now()) {
				clock.Set(ev.Time)
			}
			e.handle(events[next])
			next++
		}

		e.check(clock.Now())
	}

	e.handle(keystroke.Shutdown{})
	return strokes
}
