package sink

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"halfkbd/internal/chord"
	"halfkbd/internal/logging"
)

// DefaultJournalBuffer is the number of strokes a JournalSink holds while
// the database catches up.
const DefaultJournalBuffer = 1024

// ErrClosed is returned by Close when the sink was already closed.
var ErrClosed = errors.New("sink closed")

// Appender stores strokes. *journal.Journal implements it.
type Appender interface {
	Append(sessionID int64, s chord.Stroke) (int64, error)
}

// JournalSink writes strokes to an Appender on its own goroutine. If the
// buffer is full the stroke is dropped from the journal and counted; the
// classifier is never held up.
type JournalSink struct {
	store     Appender
	sessionID int64
	logger    *slog.Logger

	mu      sync.RWMutex
	closed  bool
	strokes chan chord.Stroke
	done    chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewJournalSink starts a writer for session sessionID. A nil logger
// discards.
func NewJournalSink(store Appender, sessionID int64, buffer int, logger *slog.Logger) *JournalSink {
	if buffer <= 0 {
		buffer = DefaultJournalBuffer
	}
	if logger == nil {
		logger = logging.Discard()
	}
	j := &JournalSink{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		strokes:   make(chan chord.Stroke, buffer),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *JournalSink) run() {
	defer close(j.done)
	for s := range j.strokes {
		if _, err := j.store.Append(j.sessionID, s); err != nil {
			j.failed.Add(1)
			j.logger.Error("journal write failed", "error", err)
			continue
		}
		j.written.Add(1)
	}
}

// EmitStroke implements chord.Sink.
func (j *JournalSink) EmitStroke(s chord.Stroke) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.strokes <- s:
	default:
		j.dropped.Add(1)
		j.logger.Warn("journal buffer full, stroke not recorded", "symbols", s.Keys)
	}
}

// Close stops accepting strokes and waits until every buffered stroke is
// written.
func (j *JournalSink) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.strokes)
	j.mu.Unlock()

	<-j.done
	return nil
}

// Stats returns how many strokes were written, dropped and failed.
func (j *JournalSink) Stats() (written, dropped, failed uint64) {
	return j.written.Load(), j.dropped.Load(), j.failed.Load()
}
