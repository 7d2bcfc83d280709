package powermate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Brightness bounds for the base LED.
const (
	MinBrightness = 0
	MaxBrightness = 255
)

// FlashConfig describes a flash sequence.
type FlashConfig struct {
	Count      int
	Brightness int
	On         time.Duration
	Off        time.Duration
}

// DefaultFlash returns two short flashes at brightness 100.
func DefaultFlash() FlashConfig {
	return FlashConfig{
		Count:      2,
		Brightness: 100,
		On:         150 * time.Millisecond,
		Off:        150 * time.Millisecond,
	}
}

func clampBrightness(v int) int {
	switch {
	case v < MinBrightness:
		return MinBrightness
	case v > MaxBrightness:
		return MaxBrightness
	default:
		return v
	}
}

// SetBrightness clamps v to [0,255], writes it to the LED and remembers it as
// the level to restore after a flash or a reconnect. The level is remembered
// even when the write fails.
func (h *Handler) SetBrightness(v int) error {
	h.ledMu.Lock()
	defer h.ledMu.Unlock()

	level := clampBrightness(v)
	h.brightness = level
	return h.writeLEDLocked(level)
}

// Brightness returns the current (remembered) LED level.
func (h *Handler) Brightness() int {
	h.ledMu.Lock()
	defer h.ledMu.Unlock()
	return h.brightness
}

// Flash blinks the LED cfg.Count times, then writes back the remembered level.
// The LED lock is held only around each write, so SetBrightness during a
// flash does not wait for it; the level it sets is the one restored.
// Cancelling ctx cuts the sequence short; the level is still restored.
func (h *Handler) Flash(ctx context.Context, cfg FlashConfig) error {
	level := clampBrightness(cfg.Brightness)

	var errs []error
	step := func(v int) {
		h.ledMu.Lock()
		defer h.ledMu.Unlock()
		if err := h.writeLEDLocked(v); err != nil {
			errs = append(errs, err)
		}
	}

	for i := 0; i < cfg.Count && ctx.Err() == nil; i++ {
		step(level)
		sleepCtx(ctx, cfg.On)
		step(0)
		sleepCtx(ctx, cfg.Off)
	}

	if err := h.restoreBrightness(); err != nil {
		errs = append(errs, err)
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// restoreBrightness rewrites the remembered level (after a flash or a reconnect).
func (h *Handler) restoreBrightness() error {
	h.ledMu.Lock()
	defer h.ledMu.Unlock()
	return h.writeLEDLocked(h.brightness)
}

func (h *Handler) writeLEDLocked(level int) error {
	if err := h.device().WriteBrightness(uint8(level)); err != nil {
		return fmt.Errorf("set led brightness %d: %w", level, err)
	}
	if h.onBrightness != nil {
		h.onBrightness(level)
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
