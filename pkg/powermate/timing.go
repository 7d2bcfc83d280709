package powermate

import (
	"sync"
	"time"
)

// Default timing.
const (
	defaultLongPress   = 500 * time.Millisecond
	defaultDoubleClick = 300 * time.Millisecond
	defaultTurnDelay   = 0
	defaultReadDelay   = 0 // wait indefinitely

	defaultBrightness = 255

	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 5 * time.Second
)

// Timing holds every tunable the classification loop reads.
// Changes apply to the next decision, never retroactively.
type Timing struct {
	// LongPress is how long the button must stay down to register a long click.
	LongPress time.Duration

	// DoubleClick is the window after a short release in which a second press
	// turns a single click into a double click.
	DoubleClick time.Duration

	// TurnDelay is the minimum spacing between two emitted turn events.
	TurnDelay time.Duration

	// ReadDelay bounds every idle wait (device readiness, raw queue pops).
	// Zero or negative waits indefinitely: lowest CPU use, but Stop only
	// completes after the next device event.
	ReadDelay time.Duration

	// TurnClock selects which clock marks the last emitted turn.
	TurnClock ClockSource
}

// DefaultTiming returns the default timing parameters.
func DefaultTiming() Timing {
	return Timing{
		LongPress:   defaultLongPress,
		DoubleClick: defaultDoubleClick,
		TurnDelay:   defaultTurnDelay,
		ReadDelay:   defaultReadDelay,
		TurnClock:   ClockMixed,
	}
}

// queueTimeout maps ReadDelay onto Queue.Get semantics.
func (t Timing) queueTimeout() time.Duration {
	if t.ReadDelay <= 0 {
		return Forever
	}
	return t.ReadDelay
}

// deviceTimeout maps ReadDelay onto WaitReadable semantics.
func (t Timing) deviceTimeout() time.Duration {
	if t.ReadDelay <= 0 {
		return -1
	}
	return t.ReadDelay
}

// timingStore is the single owner of Timing; setters and the classifier both
// go through it.
type timingStore struct {
	mu sync.RWMutex
	t  Timing
}

func (s *timingStore) snapshot() Timing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t
}

func (s *timingStore) update(fn func(t *Timing)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.t)
}
