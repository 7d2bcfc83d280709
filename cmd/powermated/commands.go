package main

import (
	"encoding/json"
	"fmt"

	"powermate/pkg/powermate"
)

// ============================================================================
// IPC Commands
// ============================================================================
// Commands arrive on the control socket as {"type": "...", "data": {...}}.
// Optional fields are pointers: nil means "keep the configured value".
// ============================================================================

// Command is a marker interface for control commands.
type Command interface {
	commandMarker()
}

// SetBrightness sets (and remembers) the LED level, clamped to 0..255.
type SetBrightness struct {
	Value int `json:"value"`
}

func (SetBrightness) commandMarker() {}

// Flash blinks the LED; unset fields fall back to led.flash from the config.
type Flash struct {
	Count      *int `json:"count,omitempty"`
	Brightness *int `json:"brightness,omitempty"`
	OnMS       *int `json:"on_ms,omitempty"`
	OffMS      *int `json:"off_ms,omitempty"`
}

func (Flash) commandMarker() {}

// SetTiming changes classification timing at runtime.
type SetTiming struct {
	LongPressMS   *int    `json:"long_press_ms,omitempty"`
	DoubleClickMS *int    `json:"double_click_ms,omitempty"`
	TurnDelayMS   *int    `json:"turn_delay_ms,omitempty"`
	ReadDelayMS   *int    `json:"read_delay_ms,omitempty"`
	ClockSource   *string `json:"clock_source,omitempty"`
}

func (SetTiming) commandMarker() {}

// Status requests a state snapshot.
type Status struct{}

func (Status) commandMarker() {}

// CommandEnvelope is the wire format for IPC commands.
type CommandEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalCommand decodes a command envelope.
func UnmarshalCommand(b []byte) (Command, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_brightness":
		var c SetBrightness
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SetBrightness: %w", err)
		}
		return c, nil

	case "flash":
		var c Flash
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &c); err != nil {
				return nil, fmt.Errorf("unmarshal Flash: %w", err)
			}
		}
		return c, nil

	case "set_timing":
		var c SetTiming
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SetTiming: %w", err)
		}
		return c, nil

	case "status":
		return Status{}, nil

	default:
		return nil, fmt.Errorf("unknown command type: %q", env.Type)
	}
}

// MarshalCommand serializes a command into its envelope.
func MarshalCommand(c Command) ([]byte, error) {
	var env CommandEnvelope

	switch c := c.(type) {
	case SetBrightness:
		env.Type = "set_brightness"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SetBrightness: %w", err)
		}
		env.Data = data

	case Flash:
		env.Type = "flash"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal Flash: %w", err)
		}
		env.Data = data

	case SetTiming:
		env.Type = "set_timing"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SetTiming: %w", err)
		}
		env.Data = data

	case Status:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unsupported command type: %T", c)
	}

	return json.Marshal(env)
}

// timingData is the JSON view of powermate.Timing.
type timingData struct {
	LongPressMS   int64  `json:"long_press_ms"`
	DoubleClickMS int64  `json:"double_click_ms"`
	TurnDelayMS   int64  `json:"turn_delay_ms"`
	ReadDelayMS   int64  `json:"read_delay_ms"`
	ClockSource   string `json:"clock_source"`
}

func newTimingData(t powermate.Timing) timingData {
	return timingData{
		LongPressMS:   t.LongPress.Milliseconds(),
		DoubleClickMS: t.DoubleClick.Milliseconds(),
		TurnDelayMS:   t.TurnDelay.Milliseconds(),
		ReadDelayMS:   t.ReadDelay.Milliseconds(),
		ClockSource:   t.TurnClock.String(),
	}
}

// statusData answers the status command and is sent as WS state_init.
type statusData struct {
	Brightness int        `json:"brightness"`
	Running    bool       `json:"running"`
	RawOnly    bool       `json:"raw_only"`
	Timing     timingData `json:"timing"`
}
