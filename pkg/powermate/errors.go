package powermate

import "errors"

var (
	// ErrDeviceNotFound is returned by New when no device could be opened.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrCaptureNotStarted is returned by Next before Start.
	ErrCaptureNotStarted = errors.New("capture not started")

	// ErrAlreadyStarted is returned by Start when capture is already running.
	ErrAlreadyStarted = errors.New("capture already started")
)
