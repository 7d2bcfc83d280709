// Package device talks to the Griffin PowerMate through its Linux evdev node.
// The real implementation reads input_event records and writes LED brightness.
// The fake implementation allows testing without hardware.
package device

import "errors"

var (
	// ErrNotFound is returned when no PowerMate is present (or none is accessible).
	ErrNotFound = errors.New("powermate device not found")

	// ErrDisconnected marks an I/O failure that means the device went away.
	ErrDisconnected = errors.New("powermate device disconnected")
)

const (
	// DefaultDir is where input event nodes are enumerated.
	DefaultDir = "/dev/input/"

	// SymlinkPath is checked before scanning DefaultDir (udev rules commonly create it).
	SymlinkPath = "/dev/GriffinPowermate"

	// NameMatch is the substring the kernel driver reports in the device name.
	NameMatch = "Griffin PowerMate"
)
