package powermate

import (
	"context"
	"errors"
	"time"

	"powermate/pkg/device"
	"powermate/pkg/input"
)

// readErrorBackoff keeps a persistently failing read from spinning.
const readErrorBackoff = 50 * time.Millisecond

// captureLoop moves records from the device onto the raw queue. It is the
// only reader of the device and the only caller of reconnect.
func (h *Handler) captureLoop(ctx context.Context) {
	for h.running.Load() {
		dev := h.device()

		ready, err := dev.WaitReadable(h.timing.snapshot().deviceTimeout())
		if err == nil && ready {
			var ev *input.RawEvent
			ev, err = dev.ReadOne()
			if err == nil && ev != nil {
				h.raw.Put(*ev)
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, device.ErrDisconnected) {
			if !h.reconnect(ctx) {
				return
			}
			continue
		}

		h.logger.Warn("device read failed", "error", err)
		if !waitCtx(ctx, readErrorBackoff) {
			return
		}
	}
}

// reconnect closes the lost device and retries discovery with a doubling
// backoff until it succeeds or ctx is cancelled. It reports whether a device
// was bound.
func (h *Handler) reconnect(ctx context.Context) bool {
	if err := h.device().Close(); err != nil {
		h.logger.Debug("closing lost device", "error", err)
	}
	h.setDevice(goneDevice{})
	h.logger.Warn("device disconnected, waiting for it to come back")

	backoff := h.reconnectMin
	for attempt := 1; h.running.Load(); attempt++ {
		dev, err := h.find()
		if err == nil {
			h.setDevice(dev)
			if err := h.restoreBrightness(); err != nil {
				h.logger.Warn("could not restore led brightness", "error", err)
			}
			h.logger.Info("device reconnected", "device", describe(dev), "attempts", attempt)
			return true
		}

		h.logger.Debug("device not back yet", "attempt", attempt, "retry_in", backoff, "error", err)
		if !waitCtx(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, h.reconnectMax)
	}
	return false
}

// waitCtx sleeps for d and reports false if ctx ended first.
func waitCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// goneDevice stands in while no device is bound. LED writes fail, but the
// level is still remembered and restored once the device is back.
type goneDevice struct{}

func (goneDevice) WaitReadable(time.Duration) (bool, error) { return false, device.ErrDisconnected }
func (goneDevice) ReadOne() (*input.RawEvent, error)        { return nil, device.ErrDisconnected }
func (goneDevice) WriteBrightness(uint8) error              { return device.ErrDisconnected }
func (goneDevice) Close() error                             { return nil }
