//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// ledMirror drives a GPIO output line high while the knob LED is lit, e.g. for
// a panel indicator next to the knob.
type ledMirror struct {
	line   *gpiocdev.Line
	logger *slog.Logger

	mu  sync.Mutex
	lit bool
}

// openLEDMirror requests line on chip as an output, initially low.
func openLEDMirror(chip string, line int, logger *slog.Logger) (*ledMirror, error) {
	l, err := gpiocdev.RequestLine(chip, line, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("powermated"))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, line, err)
	}
	return &ledMirror{line: l, logger: logger}, nil
}

// Set mirrors an LED level. Only transitions touch the line.
func (m *ledMirror) Set(level int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lit := level > 0
	if lit == m.lit {
		return
	}
	v := 0
	if lit {
		v = 1
	}
	if err := m.line.SetValue(v); err != nil {
		m.logger.Warn("gpio mirror write failed", "error", err)
		return
	}
	m.lit = lit
}

// Close drives the line low and releases it.
func (m *ledMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("reset line: %w", err))
	}
	if err := m.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
