package workers

import "sync"

// Queue is a FIFO of pending port numbers shared by all workers of a scan.
//
// Every pushed port is handed to exactly one caller of Pop. Wait blocks until
// each pushed port has been popped and acknowledged with Done, so it also
// covers ports that are still being processed after the queue looks empty.
type Queue struct {
	mu      sync.Mutex
	items   []uint16
	head    int
	pending sync.WaitGroup
}

// NewQueue creates an empty queue with room for capacity ports.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{items: make([]uint16, 0, capacity)}
}

// Push appends a port and counts it as an outstanding task.
// All pushes must happen before Wait is called.
func (q *Queue) Push(port uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Add(1)
	q.items = append(q.items, port)
}

// Pop removes and returns the next port. ok is false when the queue is empty.
func (q *Queue) Pop() (port uint16, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return 0, false
	}
	port = q.items[q.head]
	q.head++
	return port, true
}

// Done marks one popped port as fully processed.
func (q *Queue) Done() {
	q.pending.Done()
}

// Wait blocks until every pushed port has been popped and marked done.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Len returns the number of ports not yet popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
