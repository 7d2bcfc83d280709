package powermate

import (
	"testing"
	"time"

	"powermate/pkg/input"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func press(ms int) input.RawEvent {
	return input.NewEvent(at(ms), input.EV_KEY, input.BTN_0, 1)
}

func release(ms int) input.RawEvent {
	return input.NewEvent(at(ms), input.EV_KEY, input.BTN_0, 0)
}

func syn(ms int) input.RawEvent {
	return input.NewEvent(at(ms), input.EV_SYN, input.SYN_REPORT, 0)
}

func knob(ms int, delta int32) input.RawEvent {
	return input.NewEvent(at(ms), input.EV_REL, input.REL_DIAL, delta)
}

// waitUntil polls cond until it returns true or timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
