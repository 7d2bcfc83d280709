//go:build !linux

package device

import (
	"errors"
	"log/slog"
	"time"

	"powermate/pkg/input"
)

var errUnsupported = errors.New("device: not supported on this platform (requires Linux evdev)")

// Evdev is not available on non-Linux platforms.
type Evdev struct{}

// Find always fails on non-Linux platforms.
func Find(dir string, logger *slog.Logger) (*Evdev, error) {
	return nil, errors.Join(ErrNotFound, errUnsupported)
}

// Open is not implemented on non-Linux platforms.
func Open(path, name string) (*Evdev, error) {
	return nil, errUnsupported
}

func (d *Evdev) Path() string { return "" }
func (d *Evdev) Name() string { return "" }

func (d *Evdev) WaitReadable(timeout time.Duration) (bool, error) {
	return false, errUnsupported
}

func (d *Evdev) ReadOne() (*input.RawEvent, error) {
	return nil, errUnsupported
}

func (d *Evdev) WriteBrightness(level uint8) error {
	return errUnsupported
}

func (d *Evdev) Close() error {
	return nil
}
