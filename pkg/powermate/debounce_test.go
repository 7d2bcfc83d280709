package powermate

import (
	"testing"
	"time"

	"powermate/pkg/input"
)

func TestTurnDebouncer_Direction(t *testing.T) {
	d := newTurnDebouncer(nil)
	tm := Timing{TurnClock: ClockDevice}

	if got, ok := d.observe(knob(0, 1), tm); !ok || got != input.RightTurn {
		t.Fatalf("expected right_turn, got %v (ok=%v)", got, ok)
	}
	if got, ok := d.observe(knob(10, -1), tm); !ok || got != input.LeftTurn {
		t.Fatalf("expected left_turn, got %v (ok=%v)", got, ok)
	}
}

func TestTurnDebouncer_DeviceClockSpacing(t *testing.T) {
	d := newTurnDebouncer(nil)
	tm := Timing{TurnDelay: 50 * time.Millisecond, TurnClock: ClockDevice}

	var emitted []int
	for _, ms := range []int{0, 10, 40, 70, 120, 121} {
		if _, ok := d.observe(knob(ms, 1), tm); ok {
			emitted = append(emitted, ms)
		}
	}

	want := []int{0, 70, 121}
	if len(emitted) != len(want) {
		t.Fatalf("expected turns at %v, got %v", want, emitted)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("expected turns at %v, got %v", want, emitted)
		}
	}
}

// A turn exactly TurnDelay after the last emitted one is still suppressed.
func TestTurnDebouncer_BoundaryIsSuppressed(t *testing.T) {
	d := newTurnDebouncer(nil)
	tm := Timing{TurnDelay: 50 * time.Millisecond, TurnClock: ClockDevice}

	var emitted []int
	for _, ms := range []int{0, 10, 40, 70, 120} {
		if _, ok := d.observe(knob(ms, 1), tm); ok {
			emitted = append(emitted, ms)
		}
	}

	if len(emitted) != 2 || emitted[0] != 0 || emitted[1] != 70 {
		t.Fatalf("expected turns at [0 70], got %v", emitted)
	}
}

func TestTurnDebouncer_ZeroDelayPassesDistinctTimestamps(t *testing.T) {
	d := newTurnDebouncer(nil)
	tm := Timing{TurnClock: ClockDevice}

	for i, ms := range []int{0, 1, 2, 3} {
		if _, ok := d.observe(knob(ms, -1), tm); !ok {
			t.Fatalf("turn %d at %dms suppressed with zero delay", i, ms)
		}
	}
}

func TestTurnDebouncer_MixedClockMarksWallTime(t *testing.T) {
	wall := at(1000)
	d := newTurnDebouncer(func() time.Time { return wall })
	tm := Timing{TurnClock: ClockMixed}

	if _, ok := d.observe(knob(0, 1), tm); !ok {
		t.Fatal("first turn must always be emitted")
	}
	// Device stamps behind the wall-clock marker are suppressed.
	if _, ok := d.observe(knob(900, 1), tm); ok {
		t.Fatal("expected turn stamped before the wall-clock marker to be suppressed")
	}
	if _, ok := d.observe(knob(1001, 1), tm); !ok {
		t.Fatal("expected turn after the marker to be emitted")
	}
}

func TestParseClockSource(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockSource
		wantErr bool
	}{
		{"", ClockMixed, false},
		{"mixed", ClockMixed, false},
		{"Device", ClockDevice, false},
		{"monotonic", ClockMixed, true},
	}
	for _, tt := range tests {
		got, err := ParseClockSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClockSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClockSource(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
