package telemetry

import (
	"sync"
	"time"
)

// Stats are monotonic counters exposed read-only for diagnostics.
type Stats struct {
	Tracked       uint64
	Dropped       uint64
	Flushed       uint64
	FlushAttempts uint64
	FailedFlushes uint64
	Persisted     uint64
	QueueLen      int
	QueueCap      int
}

// Queue is a thread-safe bounded FIFO of telemetry items. At capacity the
// oldest item is evicted and the drop counter incremented.
type Queue struct {
	mu       sync.Mutex
	items    []Item
	capacity int
	closed   bool

	tracked       uint64
	dropped       uint64
	flushed       uint64
	flushAttempts uint64
	failedFlushes uint64
	persisted     uint64
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items:    make([]Item, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue inserts an item, evicting the oldest entry when full.
// It returns false only when the queue is closed.
func (q *Queue) Enqueue(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, item)
	q.tracked++
	return true
}

// DrainAll removes and returns every queued item. Ownership transfers to
// the caller.
func (q *Queue) DrainAll() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	drained := q.items
	q.items = make([]Item, 0, q.capacity)
	return drained
}

// Requeue puts back as many items as fit in the remaining capacity,
// preferring the newest (the tail of the slice). It returns the items
// that did not fit, oldest first, preserving their original order.
func (q *Queue) Requeue(items []Item) (overflow []Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	free := q.capacity - len(q.items)
	if q.closed {
		free = 0
	}
	if free >= len(items) {
		q.items = append(q.items, items...)
		return nil
	}
	cut := len(items) - free
	if free > 0 {
		q.items = append(q.items, items[cut:]...)
	}
	return items[:cut]
}

// Snapshot returns a copy of the queued items without draining them.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// OldestAge reports how long the oldest queued item has been waiting.
func (q *Queue) OldestAge(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return 0
	}
	return now.Sub(q.items[0].OccurredAt())
}

// Occupancy returns the fill ratio in [0, 1].
func (q *Queue) Occupancy() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return float64(len(q.items)) / float64(q.capacity)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Cap() int { return q.capacity }

// Close marks the queue closed; further enqueues fail.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *Queue) addDropped(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped += uint64(n)
}

func (q *Queue) addFlushed(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushed += uint64(n)
}

func (q *Queue) addPersisted(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.persisted += uint64(n)
}

func (q *Queue) recordFlushAttempt(failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushAttempts++
	if failed {
		q.failedFlushes++
	}
}

// Stats returns a copy of the counters plus current occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Tracked:       q.tracked,
		Dropped:       q.dropped,
		Flushed:       q.flushed,
		FlushAttempts: q.flushAttempts,
		FailedFlushes: q.failedFlushes,
		Persisted:     q.persisted,
		QueueLen:      len(q.items),
		QueueCap:      q.capacity,
	}
}
