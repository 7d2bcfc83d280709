package powermate

import (
	"fmt"
	"strings"
	"time"

	"powermate/pkg/input"
)

// ClockSource selects how the debouncer records the time of the last emitted turn.
//
// Incoming turns are always compared using their device timestamp. The marker
// can be taken from the wall clock at emission (ClockMixed, the historical
// behaviour) or from the emitted record itself (ClockDevice). The two agree as
// long as evdev stamps records with CLOCK_REALTIME and records are processed
// promptly; they drift apart when turns queue up behind a click classification.
type ClockSource uint8

const (
	ClockMixed ClockSource = iota
	ClockDevice
)

func (c ClockSource) String() string {
	switch c {
	case ClockDevice:
		return "device"
	default:
		return "mixed"
	}
}

// ParseClockSource accepts "mixed" or "device".
func ParseClockSource(s string) (ClockSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mixed":
		return ClockMixed, nil
	case "device":
		return ClockDevice, nil
	default:
		return ClockMixed, fmt.Errorf("invalid clock source: %s (must be mixed or device)", s)
	}
}

// turnDebouncer suppresses knob records arriving within TurnDelay of the last
// emitted turn. Mechanical chatter from one detent often yields several deltas.
//
// Not safe for concurrent use: only the classification goroutine touches it.
type turnDebouncer struct {
	now func() time.Time

	last    int64 // ms
	emitted bool
}

func newTurnDebouncer(now func() time.Time) *turnDebouncer {
	if now == nil {
		now = time.Now
	}
	return &turnDebouncer{now: now}
}

// observe returns the turn to emit for ev, if any.
func (d *turnDebouncer) observe(ev input.RawEvent, t Timing) (input.Consolidated, bool) {
	at := ev.Millis()
	if d.emitted && at-t.TurnDelay.Milliseconds() <= d.last {
		return 0, false
	}

	turn := input.LeftTurn
	if ev.Pressed() {
		turn = input.RightTurn
	}

	d.emitted = true
	switch t.TurnClock {
	case ClockDevice:
		d.last = at
	default:
		d.last = d.now().UnixMilli()
	}
	return turn, true
}
