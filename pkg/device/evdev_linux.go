//go:build linux

package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"powermate/pkg/input"
)

// Evdev is an open PowerMate event node.
type Evdev struct {
	path string
	name string
	f    *os.File
	fd   int

	buf []byte

	// Serialises LED writes: flash and reconnect restore may race.
	writeMu sync.Mutex
}

// Open opens path read-write. The LED channel needs write access; if only
// read access is granted the device still produces events and writes fail.
func Open(path, name string) (*Evdev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Evdev{
		path: path,
		name: name,
		f:    f,
		fd:   int(f.Fd()),
		buf:  make([]byte, input.Size),
	}, nil
}

func (d *Evdev) Path() string { return d.path }
func (d *Evdev) Name() string { return d.name }

// WaitReadable blocks until a record can be read or timeout elapses.
// A negative timeout waits indefinitely.
func (d *Evdev) WaitReadable(timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}

	for {
		n, err := unix.Poll(fds, ms)
		if err != nil {
			// Handle interrupted system call (e.g., SIGINT)
			if err == syscall.EINTR {
				continue
			}
			return false, fmt.Errorf("poll %s: %w", d.path, err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("%w: %s (revents=0x%x)", ErrDisconnected, d.path, fds[0].Revents)
		}
		return fds[0].Revents&unix.POLLIN != 0, nil
	}
}

// ReadOne reads a single input_event. A malformed record yields (nil, nil).
func (d *Evdev) ReadOne() (*input.RawEvent, error) {
	n, err := d.f.Read(d.buf)
	if err != nil {
		if isGone(err) {
			return nil, fmt.Errorf("%w: read %s: %v", ErrDisconnected, d.path, err)
		}
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	if n != input.Size {
		return nil, nil
	}

	ev, err := input.Decode(d.buf)
	if err != nil {
		// Skip malformed events
		return nil, nil
	}
	return &ev, nil
}

// WriteBrightness sets the base LED by writing EV_MSC/MSC_PULSELED followed by
// a sync report straight to the event node.
func (d *Evdev) WriteBrightness(level uint8) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	msg := append(
		input.RawEvent{Type: input.EV_MSC, Code: input.MSC_PULSELED, Value: int32(level)}.Encode(),
		input.RawEvent{Type: input.EV_SYN, Code: input.SYN_REPORT}.Encode()...,
	)
	if _, err := d.f.Write(msg); err != nil {
		if isGone(err) {
			return fmt.Errorf("%w: write %s: %v", ErrDisconnected, d.path, err)
		}
		return fmt.Errorf("write led %s: %w", d.path, err)
	}
	return nil
}

func (d *Evdev) Close() error {
	return d.f.Close()
}

// isGone reports errors the kernel returns once a USB input device is unplugged.
func isGone(err error) bool {
	return errors.Is(err, unix.ENODEV) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed)
}
