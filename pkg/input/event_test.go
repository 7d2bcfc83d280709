package input

import "testing"

func TestRawEvent_Kind(t *testing.T) {
	cases := []struct {
		name string
		ev   RawEvent
		want Kind
	}{
		{"button down", RawEvent{Type: EV_KEY, Code: BTN_0, Value: 1}, KindButton},
		{"button up", RawEvent{Type: EV_KEY, Code: BTN_0, Value: 0}, KindButton},
		{"knob cw", RawEvent{Type: EV_REL, Code: REL_DIAL, Value: 1}, KindKnob},
		{"knob ccw", RawEvent{Type: EV_REL, Code: REL_DIAL, Value: -2}, KindKnob},
		{"sync report", RawEvent{Type: EV_SYN, Code: SYN_REPORT}, KindOther},
		{"led status", RawEvent{Type: EV_MSC, Code: MSC_PULSELED, Value: 255}, KindOther},
	}
	for _, tc := range cases {
		if got := tc.ev.Kind(); got != tc.want {
			t.Errorf("%s: expected kind %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestRawEvent_Millis(t *testing.T) {
	ev := RawEvent{Sec: 1700000000, Usec: 123999}
	if got, want := ev.Millis(), int64(1700000000123); got != want {
		t.Errorf("expected %d ms, got %d", want, got)
	}

	ev = RawEvent{Sec: 0, Usec: 999}
	if got := ev.Millis(); got != 0 {
		t.Errorf("expected sub-millisecond usec to floor to 0, got %d", got)
	}
}

func TestRawEvent_Pressed(t *testing.T) {
	if !(RawEvent{Value: 1}).Pressed() {
		t.Error("expected value 1 to be a press")
	}
	if (RawEvent{Value: 0}).Pressed() {
		t.Error("expected value 0 to be a release")
	}
	if (RawEvent{Value: -1}).Pressed() {
		t.Error("expected value -1 to be a release")
	}
}

func TestDecode_RoundTripsKernelLayout(t *testing.T) {
	if Size != 24 {
		t.Fatalf("expected 24-byte input_event, got %d", Size)
	}

	ev := RawEvent{Sec: 12, Usec: 345678, Type: EV_REL, Code: REL_DIAL, Value: -1}
	buf := ev.Encode()

	// type/code/value live after the two 8-byte timeval fields
	if buf[16] != EV_REL || buf[18] != REL_DIAL || buf[20] != 0xff {
		t.Fatalf("unexpected wire layout: % x", buf)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != ev {
		t.Errorf("expected %v, got %v", ev, got)
	}
}

func TestDecode_ShortRecord(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Error("expected error for short record")
	}
}

func TestConsolidated_Text(t *testing.T) {
	for c := SingleClick; c <= LeftTurn; c++ {
		b, err := c.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", c, err)
		}
		var back Consolidated
		if err := back.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal %q: %v", b, err)
		}
		if back != c {
			t.Errorf("expected %s, got %s", c, back)
		}
	}

	if _, err := Consolidated(42).MarshalText(); err == nil {
		t.Error("expected error for out-of-range event")
	}
	var c Consolidated
	if err := c.UnmarshalText([]byte("triple_click")); err == nil {
		t.Error("expected error for unknown name")
	}
}

func TestConsolidated_IsTurn(t *testing.T) {
	if !RightTurn.IsTurn() || !LeftTurn.IsTurn() {
		t.Error("expected turns to report IsTurn")
	}
	if SingleClick.IsTurn() || LongClick.IsTurn() {
		t.Error("expected clicks not to report IsTurn")
	}
}
