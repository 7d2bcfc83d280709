package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatEventPayload(t *testing.T) {
	ev := knobEvent{
		Event: "long_click",
		At:    time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
	}

	payload, err := FormatEventPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed EventPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Timestamp)
	}
	if parsed.Event != "long_click" {
		t.Errorf("unexpected event: %s", parsed.Event)
	}
	if parsed.Raw != nil {
		t.Errorf("expected no raw record, got %+v", parsed.Raw)
	}
}

func TestFormatEventPayload_Raw(t *testing.T) {
	ev := knobEvent{
		Event: "raw",
		Raw:   &rawEvent{Type: 2, Code: 7, Value: -1, TimeMS: 1500},
		At:    time.UnixMilli(1500),
	}

	payload, err := FormatEventPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed EventPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Raw == nil || parsed.Raw.Code != 7 || parsed.Raw.Value != -1 || parsed.Raw.TimeMS != 1500 {
		t.Errorf("unexpected raw record: %+v", parsed.Raw)
	}
}

func TestParseBrightnessPayload(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"128", 128, false},
		{" 42\n", 42, false},
		{"-3", -3, false},
		{`{"brightness": 200}`, 200, false},
		{"", 0, true},
		{"bright", 0, true},
		{`{"level": 5}`, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseBrightnessPayload([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBrightnessPayload(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBrightnessPayload(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMQTTTopic(t *testing.T) {
	if got := mqttTopic("powermate", topicLEDSet); got != "powermate/led/set" {
		t.Errorf("unexpected topic: %s", got)
	}
	if got := mqttTopic("home/desk/", topicEvents); got != "home/desk/events" {
		t.Errorf("unexpected topic: %s", got)
	}
}
