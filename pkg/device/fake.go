package device

import (
	"errors"
	"sync"
	"time"

	"powermate/pkg/input"
)

// Fake is a test double that serves scripted input records and records LED writes.
// Safe for concurrent use: the capture loop reads while tests push.
type Fake struct {
	mu      sync.Mutex
	pending []input.RawEvent
	ready   chan struct{}

	disconnected bool
	closed       bool
	writes       []uint8

	// WriteError, if set, is returned by WriteBrightness.
	WriteError error
}

// NewFake creates a Fake with the given records already queued.
func NewFake(events ...input.RawEvent) *Fake {
	f := &Fake{ready: make(chan struct{}, 1)}
	f.Push(events...)
	return f
}

// Push queues records for the reader.
func (f *Fake) Push(events ...input.RawEvent) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	f.pending = append(f.pending, events...)
	f.mu.Unlock()
	f.signal()
}

// Disconnect makes every subsequent wait, read and write fail with ErrDisconnected.
func (f *Fake) Disconnect() {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
	f.signal()
}

func (f *Fake) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// WaitReadable reports whether a record is queued, waiting up to timeout.
// A negative timeout waits indefinitely.
func (f *Fake) WaitReadable(timeout time.Duration) (bool, error) {
	var timer <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		f.mu.Lock()
		switch {
		case f.disconnected || f.closed:
			f.mu.Unlock()
			return false, ErrDisconnected
		case len(f.pending) > 0:
			f.mu.Unlock()
			return true, nil
		}
		f.mu.Unlock()

		if timeout == 0 {
			return false, nil
		}
		select {
		case <-f.ready:
		case <-timer:
			return false, nil
		}
	}
}

// ReadOne pops the next queued record, or returns (nil, nil) when none is queued.
func (f *Fake) ReadOne() (*input.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disconnected || f.closed {
		return nil, ErrDisconnected
	}
	if len(f.pending) == 0 {
		return nil, nil
	}
	ev := f.pending[0]
	f.pending = f.pending[1:]
	if len(f.pending) > 0 {
		f.signal()
	}
	return &ev, nil
}

// WriteBrightness records the level.
func (f *Fake) WriteBrightness(level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	if f.disconnected {
		return ErrDisconnected
	}
	f.writes = append(f.writes, level)
	return nil
}

// LEDWrites returns a copy of every level written so far.
func (f *Fake) LEDWrites() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint8, len(f.writes))
	copy(out, f.writes)
	return out
}

// LastBrightness returns the most recent level written, if any.
func (f *Fake) LastBrightness() (uint8, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return 0, false
	}
	return f.writes[len(f.writes)-1], true
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fake device already closed")
	}
	f.closed = true
	f.signal()
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Path() string { return "fake" }
func (f *Fake) Name() string { return NameMatch + " (fake)" }
