package daemon

import (
	"context"
	"sync"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/syncer"
)

// workQueue is the unbounded FIFO hand-off between the watcher (multiple
// uncontrolled producer goroutines) and the coordinator (single consumer).
//
// Push never blocks, so OS event delivery is never stalled by a busy
// consumer. Pop blocks until an item arrives, the queue is closed, or the
// context is cancelled. Items come out strictly in arrival order.
type workQueue struct {
	mu     sync.Mutex
	items  []syncer.WorkItem
	closed bool

	// signal carries at most one wake-up token for the consumer.
	signal chan struct{}
}

// newWorkQueue creates an empty open queue.
func newWorkQueue() *workQueue {
	return &workQueue{
		signal: make(chan struct{}, 1),
	}
}

// Push appends an item. Returns false if the queue has been closed.
func (q *workQueue) Push(item syncer.WorkItem) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.wake()
	return true
}

// Pop removes the oldest item, blocking while the queue is empty.
// The second return is false when the queue is closed and drained, or the
// context is cancelled.
func (q *workQueue) Pop(ctx context.Context) (syncer.WorkItem, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return syncer.WorkItem{}, false
		}

		select {
		case <-ctx.Done():
			return syncer.WorkItem{}, false
		case <-q.signal:
		}
	}
}

// Close marks the queue closed. Queued items remain poppable; further
// pushes are rejected. Safe to call twice.
func (q *workQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// Len returns the number of queued items.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// wake nudges a blocked consumer without ever blocking the producer.
func (q *workQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
