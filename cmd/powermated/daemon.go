package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"powermate/pkg/input"
	"powermate/pkg/powermate"
)

// ============================================================================
// Daemon Loop
// ============================================================================
// The daemon owns the knob handler. It pulls events from the handler and fans
// them out to every sink (WS hub, MQTT). Control commands from the IPC socket
// and MQTT arrive through execute/setBrightness; the handler serialises LED
// access itself, so those run on the caller's goroutine.
// ============================================================================

// knobEvent is the externally-consumable form of an input.Event.
type knobEvent struct {
	Event string    `json:"event"`
	Raw   *rawEvent `json:"raw,omitempty"`
	At    time.Time `json:"-"`
}

// rawEvent is the JSON view of an input.RawEvent (raw capture mode).
type rawEvent struct {
	Type   uint16 `json:"type"`
	Code   uint16 `json:"code"`
	Value  int32  `json:"value"`
	TimeMS int64  `json:"time_ms"`
}

// newKnobEvent converts a handler event. Consolidated events are stamped with
// now; raw records keep their device timestamp.
func newKnobEvent(ev input.Event, now time.Time) (knobEvent, bool) {
	switch ev := ev.(type) {
	case input.Consolidated:
		if !ev.Valid() {
			return knobEvent{}, false
		}
		return knobEvent{Event: ev.String(), At: now}, true

	case input.RawEvent:
		return knobEvent{
			Event: "raw",
			Raw: &rawEvent{
				Type:   ev.Type,
				Code:   ev.Code,
				Value:  ev.Value,
				TimeMS: ev.Millis(),
			},
			At: time.UnixMilli(ev.Millis()),
		}, true

	default:
		return knobEvent{}, false
	}
}

// eventSink receives every knob event and remembered brightness change.
// Implementations must not block for long: the daemon loop calls them inline.
type eventSink interface {
	PublishEvent(ev knobEvent) error
	PublishBrightness(level int) error
}

type daemon struct {
	knob    *powermate.Handler
	rawOnly bool
	flash   powermate.FlashConfig
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	sinks []eventSink
}

func newDaemon(knob *powermate.Handler, rawOnly bool, flash powermate.FlashConfig, logger *slog.Logger) *daemon {
	return &daemon{
		knob:    knob,
		rawOnly: rawOnly,
		flash:   flash,
		logger:  logger,
		now:     time.Now,
	}
}

func (d *daemon) addSink(s eventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

func (d *daemon) sinkList() []eventSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]eventSink(nil), d.sinks...)
}

// run pulls events until ctx is canceled. The handler must already be started.
func (d *daemon) run(ctx context.Context) error {
	for ctx.Err() == nil {
		ev, err := d.knob.Next(true, nextPollTimeout)
		if err != nil {
			if errors.Is(err, powermate.ErrCaptureNotStarted) {
				if ctx.Err() != nil {
					break
				}
				return err
			}
			d.logger.Warn("reading knob event failed", "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		d.publish(ev)
	}

	d.logger.Info("daemon stopping (context canceled)")
	return nil
}

func (d *daemon) publish(ev input.Event) {
	ke, ok := newKnobEvent(ev, d.now().UTC())
	if !ok {
		d.logger.Debug("dropping unknown event", "event", fmt.Sprintf("%v", ev))
		return
	}

	// Turns arrive in bursts; only clicks are worth an info line.
	if c, ok := ev.(input.Consolidated); ok && !c.IsTurn() {
		d.logger.Info("knob click", "event", ke.Event)
	} else {
		d.logger.Debug("knob event", "event", ke.Event)
	}
	for _, s := range d.sinkList() {
		if err := s.PublishEvent(ke); err != nil {
			d.logger.Warn("publish knob event failed", "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}

// setBrightness changes the remembered LED level and announces it. A failed
// write (device unplugged) still announces the level, which is restored on
// reconnect.
func (d *daemon) setBrightness(v int) error {
	err := d.knob.SetBrightness(v)
	level := d.knob.Brightness()

	for _, s := range d.sinkList() {
		if perr := s.PublishBrightness(level); perr != nil {
			d.logger.Warn("publish brightness failed", "sink", fmt.Sprintf("%T", s), "error", perr)
		}
	}
	return err
}

func (d *daemon) status() statusData {
	return statusData{
		Brightness: d.knob.Brightness(),
		Running:    d.knob.Running(),
		RawOnly:    d.rawOnly,
		Timing:     newTimingData(d.knob.Timing()),
	}
}

// execute runs one control command and returns the reply payload, if any.
func (d *daemon) execute(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case SetBrightness:
		if err := d.setBrightness(c.Value); err != nil {
			return nil, err
		}
		return statusData{Brightness: d.knob.Brightness()}, nil

	case Flash:
		cfg, err := d.flashConfig(c)
		if err != nil {
			return nil, err
		}
		return nil, d.knob.Flash(ctx, cfg)

	case SetTiming:
		if err := d.setTiming(c); err != nil {
			return nil, err
		}
		return newTimingData(d.knob.Timing()), nil

	case Status:
		return d.status(), nil

	default:
		return nil, fmt.Errorf("unsupported command: %T", cmd)
	}
}

func (d *daemon) flashConfig(c Flash) (powermate.FlashConfig, error) {
	cfg := d.flash
	if c.Count != nil {
		cfg.Count = *c.Count
	}
	if c.Brightness != nil {
		cfg.Brightness = *c.Brightness
	}
	if c.OnMS != nil {
		cfg.On = msDuration(*c.OnMS)
	}
	if c.OffMS != nil {
		cfg.Off = msDuration(*c.OffMS)
	}

	if cfg.Count < 0 || cfg.On < 0 || cfg.Off < 0 {
		return cfg, errors.New("flash count and durations must be >= 0")
	}
	return cfg, nil
}

// setTiming validates every field before applying any of them.
func (d *daemon) setTiming(c SetTiming) error {
	// Same bounds as Config.Validate.
	for _, f := range []struct {
		name string
		v    *int
		min  int
	}{
		{"long_press_ms", c.LongPressMS, 1},
		{"double_click_ms", c.DoubleClickMS, 1},
		{"turn_delay_ms", c.TurnDelayMS, 0},
		{"read_delay_ms", c.ReadDelayMS, 0},
	} {
		if f.v == nil || *f.v >= f.min {
			continue
		}
		if f.min > 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
		return fmt.Errorf("%s must be >= 0", f.name)
	}

	var clock *powermate.ClockSource
	if c.ClockSource != nil {
		cs, err := powermate.ParseClockSource(*c.ClockSource)
		if err != nil {
			return err
		}
		clock = &cs
	}

	if c.LongPressMS != nil {
		d.knob.SetLongPressTime(msDuration(*c.LongPressMS))
	}
	if c.DoubleClickMS != nil {
		d.knob.SetDoubleClickTime(msDuration(*c.DoubleClickMS))
	}
	if c.TurnDelayMS != nil {
		d.knob.SetTurnDelay(msDuration(*c.TurnDelayMS))
	}
	if c.ReadDelayMS != nil {
		d.knob.SetReadDelay(msDuration(*c.ReadDelayMS))
	}
	if clock != nil {
		d.knob.SetClockSource(*clock)
	}

	d.logger.Info("timing updated", "timing", fmt.Sprintf("%+v", newTimingData(d.knob.Timing())))
	return nil
}
