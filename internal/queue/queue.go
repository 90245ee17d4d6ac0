// Package queue provides a mutex-guarded FIFO used to hand items between the
// simulation and the goroutines that persist them.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO queue.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the back of the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// PushFront puts items back at the front of the queue, keeping their order.
// Used to retry a batch that could not be written.
func (q *Queue[T]) PushFront(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	q.items = append(merged, q.items...)
}

// PushBounded appends item while keeping at most capacity items. When the
// queue is full the oldest item for which evictable returns true is removed
// first. It reports whether an item was evicted and whether item was added;
// item is rejected when nothing can be evicted. A capacity <= 0 is unbounded.
func (q *Queue[T]) PushBounded(item T, capacity int, evictable func(T) bool) (evicted, added bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if capacity > 0 && len(q.items) >= capacity {
		idx := -1
		for i, it := range q.items {
			if evictable == nil || evictable(it) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, false
		}
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		evicted = true
	}
	q.items = append(q.items, item)
	return evicted, true
}

// Pop removes and returns the first item. Returns zero value if empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
