// Package input holds the raw record read from a Linux input device and the
// small closed set of events the consolidation pipeline produces from it.
package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Event is a marker interface for values handed to callers of the pipeline.
// It is implemented by RawEvent (raw-only mode) and Consolidated.
type Event interface {
	eventMarker()
}

// Kind classifies a raw record by its code.
type Kind uint8

const (
	KindOther Kind = iota
	KindButton
	KindKnob
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindKnob:
		return "knob"
	default:
		return "other"
	}
}

// RawEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type RawEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

func (RawEvent) eventMarker() {}

// Size is the encoded size of a RawEvent on 64-bit Linux.
var Size = binary.Size(RawEvent{})

// Kind reports whether the record is a button edge, a knob delta or anything else.
// Sync reports land in KindOther; the classifier relies on that to tell them apart.
func (e RawEvent) Kind() Kind {
	switch e.Code {
	case BTN_0:
		if e.Type == EV_KEY {
			return KindButton
		}
	case REL_DIAL:
		if e.Type == EV_REL {
			return KindKnob
		}
	}
	return KindOther
}

// Pressed reports a button-down edge or a clockwise knob delta.
func (e RawEvent) Pressed() bool {
	return e.Value > evValueRelease
}

// Millis returns the device timestamp as floor((usec/1e6 + sec) * 1000).
func (e RawEvent) Millis() int64 {
	return e.Sec*1000 + floorDiv(e.Usec, 1000)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (e RawEvent) String() string {
	return fmt.Sprintf("RawEvent(kind=%s type=0x%02x code=%d value=%d t=%dms)", e.Kind(), e.Type, e.Code, e.Value, e.Millis())
}

// Decode parses one little-endian input_event record.
func Decode(buf []byte) (RawEvent, error) {
	var ev RawEvent
	if len(buf) < Size {
		return ev, fmt.Errorf("short input record: %d bytes, want %d", len(buf), Size)
	}
	if err := binary.Read(bytes.NewReader(buf[:Size]), binary.LittleEndian, &ev); err != nil {
		return ev, fmt.Errorf("decode input record: %w", err)
	}
	return ev, nil
}

// Encode serialises the record in the kernel's wire layout.
func (e RawEvent) Encode() []byte {
	var b bytes.Buffer
	b.Grow(Size)
	// Writing fixed-size fields into a bytes.Buffer cannot fail.
	_ = binary.Write(&b, binary.LittleEndian, e)
	return b.Bytes()
}

// NewEvent stamps a record with t the way the kernel fills struct timeval.
func NewEvent(t time.Time, typ, code uint16, value int32) RawEvent {
	return RawEvent{
		Sec:   t.Unix(),
		Usec:  int64(t.Nanosecond() / 1000),
		Type:  typ,
		Code:  code,
		Value: value,
	}
}
