package backtest

// Queue is the FIFO of pending events. It is owned by one run and is not
// safe for concurrent use.
type Queue struct {
	events []Event
	head   int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an event.
func (q *Queue) Push(ev Event) {
	q.events = append(q.events, ev)
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	if q.head >= len(q.events) {
		return nil, false
	}
	ev := q.events[q.head]
	q.events[q.head] = nil
	q.head++
	if q.head == len(q.events) {
		q.events = q.events[:0]
		q.head = 0
	}
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.events) - q.head
}

// Clear drops every queued event.
func (q *Queue) Clear() {
	clear(q.events)
	q.events = q.events[:0]
	q.head = 0
}
