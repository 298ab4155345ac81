package event

import "errors"

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 32

// ErrQueueFull is returned by Push when every slot is taken.
var ErrQueueFull = errors.New("event: queue full")

// Queue is a fixed-capacity FIFO ring of events. Slots are allocated once at
// construction, so Push never allocates and never blocks; when full it fails
// with ErrQueueFull instead.
//
// Queue is not synchronized. Callers serialize access through the interrupt
// mask (see package critical).
type Queue struct {
	buf  []Event
	head int // index of the oldest event
	n    int
}

// NewQueue returns an empty queue with room for capacity events.
// Non-positive capacities fall back to DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Event, capacity)}
}

// Push copies ev in at the tail.
func (q *Queue) Push(ev Event) error {
	if q.n == len(q.buf) {
		return ErrQueueFull
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	return nil
}

// Pop removes the oldest event. ok is false when the queue is empty.
func (q *Queue) Pop() (ev Event, ok bool) {
	if q.n == 0 {
		return Event{}, false
	}
	ev = q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ev, true
}

// Peek returns the oldest event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if q.n == 0 {
		return Event{}, false
	}
	return q.buf[q.head], true
}

func (q *Queue) Len() int    { return q.n }
func (q *Queue) Cap() int    { return len(q.buf) }
func (q *Queue) Empty() bool { return q.n == 0 }
func (q *Queue) Full() bool  { return q.n == len(q.buf) }
