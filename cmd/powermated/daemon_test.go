package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"powermate/pkg/device"
	"powermate/pkg/input"
	"powermate/pkg/powermate"
)

// recordingSink records everything the daemon publishes.
type recordingSink struct {
	mu         sync.Mutex
	events     []knobEvent
	brightness []int
	publishErr error
}

func (s *recordingSink) PublishEvent(ev knobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) PublishBrightness(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = append(s.brightness, level)
	return nil
}

func (s *recordingSink) eventNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Event
	}
	return out
}

func newTestKnob(t *testing.T, dev *device.Fake) *powermate.Handler {
	t.Helper()
	opts := powermate.DefaultOptions()
	opts.Logger = slog.Default()
	opts.Finder = func() (powermate.Device, error) { return dev, nil }
	opts.Timing = powermate.Timing{
		LongPress:   80 * time.Millisecond,
		DoubleClick: 60 * time.Millisecond,
		ReadDelay:   5 * time.Millisecond,
		TurnClock:   powermate.ClockDevice,
	}

	knob, err := powermate.New(opts)
	if err != nil {
		t.Fatalf("powermate.New: %v", err)
	}
	t.Cleanup(func() { knob.Stop() })
	return knob
}

func newTestDaemon(t *testing.T, dev *device.Fake) (*daemon, *recordingSink) {
	t.Helper()
	knob := newTestKnob(t, dev)
	d := newDaemon(knob, false, powermate.DefaultFlash(), slog.Default())
	sink := &recordingSink{}
	d.addSink(sink)
	return d, sink
}

func TestNewKnobEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ke, ok := newKnobEvent(input.LeftTurn, now)
	if !ok || ke.Event != "left_turn" || ke.Raw != nil || !ke.At.Equal(now) {
		t.Fatalf("unexpected consolidated conversion: %+v (ok=%v)", ke, ok)
	}

	stamp := time.UnixMilli(1_700_000_000_123)
	raw := input.NewEvent(stamp, input.EV_KEY, input.BTN_0, 1)
	ke, ok = newKnobEvent(raw, now)
	if !ok || ke.Event != "raw" || ke.Raw == nil {
		t.Fatalf("unexpected raw conversion: %+v (ok=%v)", ke, ok)
	}
	if ke.Raw.Code != input.BTN_0 || ke.Raw.Value != 1 || ke.Raw.TimeMS != 1_700_000_000_123 {
		t.Errorf("unexpected raw payload: %+v", ke.Raw)
	}
	if !ke.At.Equal(stamp) {
		t.Errorf("raw events keep the device timestamp, got %v", ke.At)
	}

	if _, ok := newKnobEvent(input.Consolidated(99), now); ok {
		t.Error("invalid consolidated value must be dropped")
	}
}

func TestDaemon_FansOutKnobEvents(t *testing.T) {
	dev := device.NewFake()
	d, sink := newTestDaemon(t, dev)
	if err := d.knob.Start(false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	base := time.Unix(1_700_000_000, 0)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }
	dev.Push(
		input.NewEvent(at(0), input.EV_REL, input.REL_DIAL, 1),
		input.NewEvent(at(10), input.EV_KEY, input.BTN_0, 1),
		input.NewEvent(at(30), input.EV_KEY, input.BTN_0, 0),
		input.NewEvent(at(30), input.EV_SYN, input.SYN_REPORT, 0),
	)

	waitUntil(t, 2*time.Second, func() bool { return len(sink.eventNames()) == 2 }, "events not published")
	got := sink.eventNames()
	if got[0] != "right_turn" || got[1] != "single_click" {
		t.Fatalf("expected [right_turn single_click], got %v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_SinkErrorDoesNotStopFanOut(t *testing.T) {
	dev := device.NewFake()
	d, good := newTestDaemon(t, dev)
	d.addSink(&recordingSink{publishErr: errors.New("broker down")})

	d.publish(input.DoubleClick)

	if names := good.eventNames(); len(names) != 1 || names[0] != "double_click" {
		t.Fatalf("expected double_click on the healthy sink, got %v", names)
	}
}

func TestDaemon_RunRequiresStartedKnob(t *testing.T) {
	d, _ := newTestDaemon(t, device.NewFake())

	err := d.run(context.Background())
	if !errors.Is(err, powermate.ErrCaptureNotStarted) {
		t.Fatalf("expected ErrCaptureNotStarted, got %v", err)
	}
}

func TestDaemon_ExecuteCommands(t *testing.T) {
	dev := device.NewFake()
	d, sink := newTestDaemon(t, dev)
	ctx := context.Background()

	if _, err := d.execute(ctx, SetBrightness{Value: 300}); err != nil {
		t.Fatalf("set_brightness: %v", err)
	}
	if d.knob.Brightness() != 255 {
		t.Errorf("expected clamped brightness 255, got %d", d.knob.Brightness())
	}
	if len(sink.brightness) != 1 || sink.brightness[0] != 255 {
		t.Errorf("expected brightness announcement [255], got %v", sink.brightness)
	}

	count, on := 1, 1
	if _, err := d.execute(ctx, Flash{Count: &count, OnMS: &on, OffMS: &on}); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if got, _ := dev.LastBrightness(); got != 255 {
		t.Errorf("expected level restored after flash, got %d", got)
	}

	long, clock := 900, "device"
	res, err := d.execute(ctx, SetTiming{LongPressMS: &long, ClockSource: &clock})
	if err != nil {
		t.Fatalf("set_timing: %v", err)
	}
	td, ok := res.(timingData)
	if !ok || td.LongPressMS != 900 || td.ClockSource != "device" {
		t.Errorf("unexpected timing reply: %#v", res)
	}

	bad := -5
	if _, err := d.execute(ctx, SetTiming{DoubleClickMS: &bad, LongPressMS: &long}); err == nil {
		t.Error("expected negative timing to be rejected")
	}
	zero := 0
	if _, err := d.execute(ctx, SetTiming{LongPressMS: &zero}); err == nil {
		t.Error("expected zero long press to be rejected")
	}
	if _, err := d.execute(ctx, SetTiming{DoubleClickMS: &zero}); err == nil {
		t.Error("expected zero double click window to be rejected")
	}
	if _, err := d.execute(ctx, SetTiming{TurnDelayMS: &zero}); err != nil {
		t.Errorf("expected zero turn delay to be accepted, got %v", err)
	}
	if got := d.knob.Timing().LongPress; got != 900*time.Millisecond {
		t.Errorf("rejected update changed long press to %v", got)
	}
	badClock := "sundial"
	if _, err := d.execute(ctx, SetTiming{ClockSource: &badClock}); err == nil {
		t.Error("expected unknown clock source to be rejected")
	}

	res, err = d.execute(ctx, Status{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	st := res.(statusData)
	if st.Brightness != 255 || st.Running || st.Timing.LongPressMS != 900 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestIPC_RoundTrip(t *testing.T) {
	dev := device.NewFake()
	d, _ := newTestDaemon(t, dev)

	socketPath := filepath.Join(t.TempDir(), "powermated.sock")
	listener, err := listenIPC(socketPath)
	if err != nil {
		t.Fatalf("listenIPC: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveIPC(ctx, listener, socketPath, d.execute, slog.Default()) }()

	data, err := sendIPCCommand(socketPath, SetBrightness{Value: 17})
	if err != nil {
		t.Fatalf("set_brightness: %v", err)
	}
	var st statusData
	if err := json.Unmarshal(data, &st); err != nil || st.Brightness != 17 {
		t.Fatalf("unexpected reply %s (err=%v)", string(data), err)
	}
	if got, _ := dev.LastBrightness(); got != 17 {
		t.Errorf("expected device level 17, got %d", got)
	}

	data, err = sendIPCCommand(socketPath, Status{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := json.Unmarshal(data, &st); err != nil || st.Brightness != 17 || st.Timing.DoubleClickMS != 60 {
		t.Fatalf("unexpected status %s (err=%v)", string(data), err)
	}

	bad := -1
	if _, err := sendIPCCommand(socketPath, SetTiming{TurnDelayMS: &bad}); err == nil {
		t.Error("expected error reply for negative turn delay")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveIPC: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("IPC server did not stop")
	}
}

func TestRunIPCCommand_ParseError(t *testing.T) {
	exec := func(context.Context, Command) (any, error) { return nil, nil }

	resp := runIPCCommand(context.Background(), `{"type":"reboot"}`, exec)
	if resp.Status != "error" || resp.Error == "" {
		t.Fatalf("expected error response, got %+v", resp)
	}

	resp = runIPCCommand(context.Background(), `{"type":"status"}`, exec)
	if resp.Status != "ok" || resp.Data != nil {
		t.Fatalf("expected bare ok, got %+v", resp)
	}
}

func TestCommands_RoundTrip(t *testing.T) {
	count := 3
	cmds := []Command{
		SetBrightness{Value: 40},
		Flash{Count: &count},
		Status{},
	}
	for _, c := range cmds {
		b, err := MarshalCommand(c)
		if err != nil {
			t.Fatalf("MarshalCommand(%T): %v", c, err)
		}
		got, err := UnmarshalCommand(b)
		if err != nil {
			t.Fatalf("UnmarshalCommand(%s): %v", string(b), err)
		}
		switch want := c.(type) {
		case Flash:
			f, ok := got.(Flash)
			if !ok || f.Count == nil || *f.Count != *want.Count || f.Brightness != nil {
				t.Errorf("flash round trip mismatch: %#v", got)
			}
		default:
			if got != c {
				t.Errorf("round trip mismatch: %#v != %#v", got, c)
			}
		}
	}

	// A bare flash envelope uses the configured defaults.
	if c, err := UnmarshalCommand([]byte(`{"type":"flash"}`)); err != nil || c.(Flash).Count != nil {
		t.Errorf("bare flash: %#v, %v", c, err)
	}
}

// sendIPCCommand sends one command the way powermate-ctl does and returns the reply payload.
func sendIPCCommand(socketPath string, cmd Command) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return nil, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp.Data, nil
}
