package powermate

import (
	"context"
	"sync"
	"time"
)

// Forever makes Queue.Get block until an item arrives or ctx is done.
const Forever time.Duration = -1

// Queue is an unbounded FIFO. Put never blocks; Get blocks with an optional timeout.
//
// Thread-safe: capture, classification and caller goroutines share queues.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T

	// ready holds at most one wake-up token; a consumer that leaves items
	// behind passes the token on.
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0, 16),
		ready: make(chan struct{}, 1),
	}
}

// Put appends v.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue[T]) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.wake()
	}
	return v, true
}

// Get pops the oldest item.
//
// timeout semantics:
//   - Forever (any negative value): wait until an item arrives or ctx is done
//   - 0: non-blocking poll
//   - > 0: wait at most timeout
//
// The boolean is false when nothing was available ("empty after timeout").
func (q *Queue[T]) Get(ctx context.Context, timeout time.Duration) (T, bool) {
	if v, ok := q.tryPop(); ok || timeout == 0 {
		return v, ok
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-timer:
			// One last look: an item may have landed just as the timer fired.
			return q.tryPop()
		case <-q.ready:
			if v, ok := q.tryPop(); ok {
				return v, true
			}
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
