// Package powermate turns the raw event stream of a Griffin PowerMate into
// consolidated events (single, double and long clicks, left and right turns)
// and drives the LED in its base.
//
// Pipeline:
//
//	device -> capture loop -> raw queue -> classification loop -> consolidated queue -> Next
//
// The capture loop owns the device and transparently reconnects after an
// unplug. The classification loop runs the turn debouncer and the click state
// machine. Both loops stop cooperatively on Stop.
package powermate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"powermate/pkg/device"
	"powermate/pkg/input"
)

// Device is what the handler needs from the hardware: a raw event source and
// an LED sink sharing one handle.
type Device interface {
	// WaitReadable waits up to timeout (negative: forever) for a record.
	// Device loss is reported as device.ErrDisconnected.
	WaitReadable(timeout time.Duration) (bool, error)

	// ReadOne returns one record, or nil if none could be decoded.
	ReadOne() (*input.RawEvent, error)

	// WriteBrightness sets the LED level.
	WriteBrightness(level uint8) error

	Close() error
}

// Finder locates and opens the device. It is called once by New and again
// after every disconnect until it succeeds.
type Finder func() (Device, error)

// Options configures a Handler. Start from DefaultOptions.
type Options struct {
	// DeviceDir is scanned by the default Finder.
	DeviceDir string

	// Finder overrides device discovery (tests, alternate hardware).
	Finder Finder

	// Brightness is written to the LED when the handler is created.
	Brightness int

	Timing Timing

	// SwallowReleaseQuirk drops the single record following a short release
	// before the double-click window opens.
	SwallowReleaseQuirk bool

	// Reconnect backoff bounds.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// OnBrightness, if set, is called after every successful LED write
	// (including the writes of a flash sequence).
	OnBrightness func(level int)

	// Now is the wall clock used by the turn debouncer in ClockMixed mode.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultOptions returns the stock handler configuration.
func DefaultOptions() Options {
	return Options{
		DeviceDir:           device.DefaultDir,
		Brightness:          defaultBrightness,
		Timing:              DefaultTiming(),
		SwallowReleaseQuirk: true,
		ReconnectMin:        defaultReconnectMin,
		ReconnectMax:        defaultReconnectMax,
	}
}

// Handler runs the consolidation pipeline for one device.
type Handler struct {
	logger *slog.Logger
	find   Finder

	devMu sync.Mutex
	dev   Device

	timing timingStore

	ledMu        sync.Mutex
	brightness   int
	onBrightness func(level int)

	reconnectMin time.Duration
	reconnectMax time.Duration

	raw          *Queue[input.RawEvent]
	consolidated *Queue[input.Consolidated]

	turns  *turnDebouncer
	clicks *clickClassifier

	// running is the cooperative shutdown signal, read at the top of every loop iteration.
	running atomic.Bool

	lifeMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	rawOnly bool
	wg      sync.WaitGroup
}

// New finds the device and prepares (but does not start) the pipeline.
// If the device cannot be found the error wraps ErrDeviceNotFound.
func New(opts Options) (*Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	find := opts.Finder
	if find == nil {
		dir := opts.DeviceDir
		find = func() (Device, error) {
			d, err := device.Find(dir, logger)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	dev, err := find()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	}
	logger.Info("device opened", "device", describe(dev))

	reconnectMin := opts.ReconnectMin
	if reconnectMin <= 0 {
		reconnectMin = defaultReconnectMin
	}
	reconnectMax := opts.ReconnectMax
	if reconnectMax < reconnectMin {
		reconnectMax = max(reconnectMin, defaultReconnectMax)
	}

	h := &Handler{
		logger:       logger,
		find:         find,
		dev:          dev,
		onBrightness: opts.OnBrightness,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		raw:          NewQueue[input.RawEvent](),
		consolidated: NewQueue[input.Consolidated](),
		turns:        newTurnDebouncer(opts.Now),
		ctx:          context.Background(),
	}
	h.timing.t = opts.Timing
	if opts.Timing.LongPress <= 0 && opts.Timing.DoubleClick <= 0 {
		// Options built without DefaultOptions.
		h.timing.t = DefaultTiming()
		h.timing.t.TurnDelay = opts.Timing.TurnDelay
		h.timing.t.ReadDelay = opts.Timing.ReadDelay
		h.timing.t.TurnClock = opts.Timing.TurnClock
	}
	h.clicks = &clickClassifier{
		pop:          h.raw.Get,
		emit:         h.emit,
		turn:         h.handleTurn,
		timing:       h.timing.snapshot,
		swallowQuirk: opts.SwallowReleaseQuirk,
		logger:       logger,
	}

	if err := h.SetBrightness(opts.Brightness); err != nil {
		logger.Warn("could not set initial led brightness", "error", err)
	}

	return h, nil
}

// describe names d for logs when it knows its node path and kernel name.
func describe(d Device) string {
	n, ok := d.(interface {
		Path() string
		Name() string
	})
	if !ok {
		return fmt.Sprintf("%T", d)
	}
	return fmt.Sprintf("%s (%s)", n.Path(), n.Name())
}

func (h *Handler) device() Device {
	h.devMu.Lock()
	defer h.devMu.Unlock()
	return h.dev
}

func (h *Handler) setDevice(d Device) {
	h.devMu.Lock()
	defer h.devMu.Unlock()
	h.dev = d
}

// Start begins capturing. Unless rawOnly, raw records are also consolidated
// and Next returns input.Consolidated values; in raw-only mode Next returns
// input.RawEvent values straight from the device.
func (h *Handler) Start(rawOnly bool) error {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()

	if h.running.Load() {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	h.cancel = cancel
	h.rawOnly = rawOnly
	h.running.Store(true)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.captureLoop(ctx)
	}()

	if !rawOnly {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.classificationLoop(ctx)
		}()
	}

	h.logger.Debug("capture started", "raw_only", rawOnly)
	return nil
}

// Stop clears the running flag and waits for both loops to exit. With an
// indefinite ReadDelay the capture loop only notices after the next device
// event. Stop is a no-op when capture is not running.
func (h *Handler) Stop() {
	h.lifeMu.Lock()
	if !h.running.Load() {
		h.lifeMu.Unlock()
		return
	}
	h.running.Store(false)
	h.cancel()
	h.lifeMu.Unlock()

	h.wg.Wait()
	h.logger.Debug("capture stopped")
}

// Running reports whether capture is active.
func (h *Handler) Running() bool {
	return h.running.Load()
}

// Close stops capture and releases the device.
func (h *Handler) Close() error {
	h.Stop()
	return h.device().Close()
}

// Next pops the next event from the active output queue.
//
// With block false it only returns an event that is ready now. With block
// true it waits up to timeout, or indefinitely if timeout is negative.
// A nil event (with nil error) means nothing arrived. Next also returns once
// Stop is called.
func (h *Handler) Next(block bool, timeout time.Duration) (input.Event, error) {
	h.lifeMu.Lock()
	running := h.running.Load()
	ctx := h.ctx
	rawOnly := h.rawOnly
	h.lifeMu.Unlock()

	if !running {
		return nil, ErrCaptureNotStarted
	}

	wait := timeout
	switch {
	case !block:
		wait = 0
	case timeout < 0:
		wait = Forever
	}

	if rawOnly {
		ev, ok := h.raw.Get(ctx, wait)
		if !ok {
			return nil, nil
		}
		return ev, nil
	}

	ev, ok := h.consolidated.Get(ctx, wait)
	if !ok {
		return nil, nil
	}
	return ev, nil
}

// Timing returns the current timing parameters.
func (h *Handler) Timing() Timing {
	return h.timing.snapshot()
}

// SetTurnDelay sets the minimum spacing between emitted turns.
func (h *Handler) SetTurnDelay(d time.Duration) {
	h.timing.update(func(t *Timing) { t.TurnDelay = d })
}

// SetReadDelay sets the idle wait bound; zero or negative waits indefinitely.
func (h *Handler) SetReadDelay(d time.Duration) {
	h.timing.update(func(t *Timing) { t.ReadDelay = d })
}

// SetDoubleClickTime sets the double-click window.
func (h *Handler) SetDoubleClickTime(d time.Duration) {
	h.timing.update(func(t *Timing) { t.DoubleClick = d })
}

// SetLongPressTime sets how long the button must be held for a long click.
func (h *Handler) SetLongPressTime(d time.Duration) {
	h.timing.update(func(t *Timing) { t.LongPress = d })
}

// SetClockSource selects how the turn debouncer marks its last emission.
func (h *Handler) SetClockSource(c ClockSource) {
	h.timing.update(func(t *Timing) { t.TurnClock = c })
}

// classificationLoop consumes raw records and produces consolidated events.
func (h *Handler) classificationLoop(ctx context.Context) {
	for h.running.Load() {
		ev, ok := h.raw.Get(ctx, h.timing.snapshot().queueTimeout())
		if !ok {
			continue
		}
		h.dispatch(ctx, ev)
	}
}

func (h *Handler) dispatch(ctx context.Context, ev input.RawEvent) {
	switch ev.Kind() {
	case input.KindKnob:
		h.handleTurn(ev)
	case input.KindButton:
		// A release outside a classification has nothing to resolve.
		if ev.Pressed() {
			h.clicks.resolve(ctx, ev)
		}
	}
}

func (h *Handler) handleTurn(ev input.RawEvent) {
	if turn, ok := h.turns.observe(ev, h.timing.snapshot()); ok {
		h.emit(turn)
	}
}

func (h *Handler) emit(ev input.Consolidated) {
	h.logger.Debug("consolidated event", "event", ev.String())
	h.consolidated.Put(ev)
}
