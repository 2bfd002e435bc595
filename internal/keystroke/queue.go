package keystroke

import (
	"sync"
	"time"
)

// Item is a value carried by a Queue: either an Event or Shutdown.
type Item interface {
	queueItem()
}

func (Event) queueItem() {}

// Shutdown is the in-band termination signal. It is delivered after every
// item enqueued before it and before every item enqueued after it.
type Shutdown struct{}

func (Shutdown) queueItem() {}

// Queue is an unbounded FIFO shared by any number of producers and a single
// consumer. Put never blocks, so a capture callback can never stall on a
// slow classifier and no keystroke is ever dropped.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Item
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends an item.
func (q *Queue) Put(it Item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.cond.Signal()
}

// Get removes and returns the oldest item, blocking until one is available.
func (q *Queue) Get() Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	return q.pop()
}

// TryGet removes and returns the oldest item if one is available.
func (q *Queue) TryGet() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.pop(), true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() Item {
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Let the backing array be reclaimed after a burst.
		q.items = nil
	}
	return it
}

// Recorder is a Handler that stamps each transition with the current time
// and enqueues it.
type Recorder struct {
	queue *Queue
	now   func() time.Time
}

// NewRecorder creates a Recorder feeding q. A nil now uses time.Now.
func NewRecorder(q *Queue, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{queue: q, now: now}
}

// KeyDown enqueues a press of key.
func (r *Recorder) KeyDown(key string) {
	r.queue.Put(KeyDown(key, r.now()))
}

// KeyUp enqueues a release of key.
func (r *Recorder) KeyUp(key string) {
	r.queue.Put(KeyUp(key, r.now()))
}
