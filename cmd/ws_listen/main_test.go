package main

import (
	"strings"
	"testing"
)

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"type":"knob_event","data":{"event":"long_click"}}`, "[EVENT] long_click"},
		{`{"type":"brightness_changed","data":{"brightness":12}}`, "[LED] 12"},
		{`{"type":"state_init","data":{"brightness":255}}`, `[STATE] {"brightness":255}`},
		{`{"type":"knob_event","data":{"event":"raw","raw":{"code":7}}}`, `[RAW] {"code":7}`},
		{`not json`, "[TEXT] not json"},
	}

	for _, tt := range tests {
		if got := formatFrame([]byte(tt.in)); !strings.HasSuffix(got, tt.want) {
			t.Errorf("formatFrame(%s) = %q, want suffix %q", tt.in, got, tt.want)
		}
	}
}
