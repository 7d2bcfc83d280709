//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

// ledMirror is not available on non-Linux platforms.
type ledMirror struct{}

func openLEDMirror(string, int, *slog.Logger) (*ledMirror, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (m *ledMirror) Set(int) {}

func (m *ledMirror) Close() error { return nil }
