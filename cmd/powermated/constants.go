package main

import "time"

const version = "1.0.0"

const (
	defaultSocketPath = "/tmp/powermated.sock"

	// Bounded so shutdown never waits for the next knob event.
	defaultReadDelayMS = 200

	// nextPollTimeout bounds each wait for the next knob event in the daemon loop.
	nextPollTimeout = 250 * time.Millisecond
)
