// Package sink holds the destinations a stroke can be emitted to.
//
// Every sink here satisfies chord.Sink. Sinks run on the classifier's
// goroutine, so anything slow (disk, bus) is pushed behind a queue.
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"halfkbd/internal/chord"
)

// Multi returns a sink that emits to each of sinks in order.
func Multi(sinks ...chord.Sink) chord.Sink {
	var live []chord.Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return chord.SinkFunc(func(s chord.Stroke) {
		for _, dst := range live {
			dst.EmitStroke(s)
		}
	})
}

// Log returns a sink that logs each stroke at info.
func Log(logger *slog.Logger) chord.Sink {
	return chord.SinkFunc(func(s chord.Stroke) {
		logger.Info("stroke",
			"kind", s.Kind.String(),
			"symbols", s.Keys,
			"keys", s.Sources,
		)
	})
}

// Text writes one line per stroke: the kind followed by the symbols.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText creates a Text sink writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// EmitStroke implements chord.Sink.
func (t *Text) EmitStroke(s chord.Stroke) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%-6s %s\n", s.Kind, strings.Join(s.Keys, " "))
}

// Record is the JSON form of a stroke.
type Record struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Symbols []string  `json:"symbols"`
	Keys    []string  `json:"keys"`
}

// NewRecord converts a stroke.
func NewRecord(s chord.Stroke) Record {
	return Record{
		Time:    s.Time,
		Kind:    s.Kind.String(),
		Symbols: s.Keys,
		Keys:    s.Sources,
	}
}

// JSONLines writes each stroke as one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONLines creates a JSONLines sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// EmitStroke implements chord.Sink.
func (j *JSONLines) EmitStroke(s chord.Stroke) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(NewRecord(s)); err != nil && j.err == nil {
		j.err = err
	}
}

// Err returns the first write error, if any.
func (j *JSONLines) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
