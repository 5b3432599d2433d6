// Package queue holds the bounded FIFOs that buffer visits and pixel events
// between the recording API and the dispatcher.
//
// When a queue is full the oldest entry is evicted to admit the newest one:
// stale unsent telemetry is worth less than fresh telemetry.
package queue

import "sync"

// Bounded is a fixed-capacity FIFO safe for concurrent use.
type Bounded[T any] struct {
	mu       sync.Mutex
	entries  []T
	capacity int
	evicted  int64
}

// New creates a queue holding at most capacity entries (minimum 1).
func New[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v at the back and returns the new depth.
// If the queue was full the oldest entry is dropped first.
func (q *Bounded[T]) Push(v T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		var zero T
		q.entries[0] = zero
		q.entries = q.entries[1:]
		q.evicted++
	}
	q.entries = append(q.entries, v)
	return len(q.entries)
}

// PushFront re-inserts v ahead of everything queued, as the oldest entry.
// On a full queue v is itself the entry eviction would pick, so it is
// dropped and PushFront reports false.
func (q *Bounded[T]) PushFront(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		q.evicted++
		return false
	}
	q.entries = append(q.entries, v)
	copy(q.entries[1:], q.entries[:len(q.entries)-1])
	q.entries[0] = v
	return true
}

// Drain removes and returns every queued entry, oldest first.
// Whoever drains owns the returned entries.
func (q *Bounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	out := q.entries
	q.entries = make([]T, 0, q.capacity)
	return out
}

// Snapshot returns a copy of the queued entries, oldest first.
func (q *Bounded[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Bounded[T]) Cap() int { return q.capacity }

// Evicted counts entries lost to overflow since the queue was created.
func (q *Bounded[T]) Evicted() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}
