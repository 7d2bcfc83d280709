package powermate

import (
	"context"
	"log/slog"
	"time"

	"powermate/pkg/input"
)

// clickState is a step of the click classification state machine.
//
//	LongPressRace --(deadline)--> DrainUntilEdge --(edge)--> done   [LongClick]
//	LongPressRace --(edge)------> SwallowQuirk --> DoubleClickWindow
//	DoubleClickWindow --(deadline)--> done [SingleClick]
//	DoubleClickWindow --(edge)------> done [DoubleClick]
//	DoubleClickWindow --(knob)------> done [turn forwarded]
type clickState uint8

const (
	stateLongPressRace clickState = iota
	stateDrainUntilEdge
	stateSwallowQuirk
	stateDoubleClickWindow
	stateDone
)

func (s clickState) String() string {
	switch s {
	case stateLongPressRace:
		return "long_press_race"
	case stateDrainUntilEdge:
		return "drain_until_edge"
	case stateSwallowQuirk:
		return "swallow_quirk"
	case stateDoubleClickWindow:
		return "double_click_window"
	default:
		return "done"
	}
}

// clickClassifier resolves one button-down into exactly one click event. It
// pulls further raw records itself, so the classification goroutine is fully
// occupied until the click is resolved.
//
// All countdowns are deadlines on the monotonic clock; the remaining time is
// derived from the deadline on every pop, never accumulated.
type clickClassifier struct {
	pop    func(ctx context.Context, timeout time.Duration) (input.RawEvent, bool)
	emit   func(input.Consolidated)
	turn   func(input.RawEvent)
	timing func() Timing

	// swallowQuirk drops the one spurious record the device sends after a
	// release (in practice the trailing sync report).
	swallowQuirk bool

	logger *slog.Logger
}

// resolve runs the state machine for the button-down record down. It returns
// without emitting anything if ctx is cancelled mid-classification.
func (c *clickClassifier) resolve(ctx context.Context, down input.RawEvent) {
	state := stateLongPressRace
	deadline := time.Now().Add(c.timing().LongPress)
	c.logger.Debug("classifying button press", "at_ms", down.Millis())

	for state != stateDone {
		if ctx.Err() != nil {
			c.logger.Debug("click classification abandoned", "state", state.String())
			return
		}

		switch state {
		case stateLongPressRace:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				c.emit(input.LongClick)
				state = stateDrainUntilEdge
				continue
			}
			ev, ok := c.pop(ctx, remaining)
			if !ok || ev.Kind() != input.KindButton {
				continue
			}
			// The edge that ended the race is the release.
			if c.swallowQuirk {
				state = stateSwallowQuirk
			} else {
				state = stateDoubleClickWindow
				deadline = time.Now().Add(c.timing().DoubleClick)
			}

		case stateDrainUntilEdge:
			// Turns while the button is held are not meaningful.
			ev, ok := c.pop(ctx, c.timing().queueTimeout())
			if ok && ev.Kind() == input.KindButton {
				state = stateDone
			}

		case stateSwallowQuirk:
			window := c.timing().DoubleClick
			ev, ok := c.pop(ctx, window)
			if ctx.Err() != nil {
				continue
			}
			if !ok {
				// Nothing at all followed the release within the window.
				c.emit(input.SingleClick)
				state = stateDone
				continue
			}
			c.logger.Debug("dropped record after release", "event", ev.String())
			state = stateDoubleClickWindow
			deadline = time.Now().Add(window)

		case stateDoubleClickWindow:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				c.emit(input.SingleClick)
				state = stateDone
				continue
			}
			ev, ok := c.pop(ctx, remaining)
			if !ok {
				continue
			}
			switch ev.Kind() {
			case input.KindButton:
				c.emit(input.DoubleClick)
				state = stateDone
			case input.KindKnob:
				// A turn right after a quick click is not part of the click.
				c.turn(ev)
				state = stateDone
			}
		}
	}
}
