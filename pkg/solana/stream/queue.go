package stream

import (
	"sync"

	"snipewatch/pkg/metrics"
)

// notificationQueue is an unbounded FIFO between the connection loop and the
// dispatcher. push never blocks, so a slow handler cannot stall heartbeats.
type notificationQueue struct {
	mu     sync.Mutex
	items  []notification
	signal chan struct{}
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{signal: make(chan struct{}, 1)}
}

func (q *notificationQueue) push(n notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	depth := len(q.items)
	q.mu.Unlock()

	metrics.StreamQueueDepth.Set(float64(depth))
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest notification.
func (q *notificationQueue) pop() (notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return notification{}, false
	}
	n := q.items[0]
	q.items[0] = notification{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	metrics.StreamQueueDepth.Set(float64(len(q.items)))
	return n, true
}

func (q *notificationQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
