// Package encoder decodes a KY-040 style quadrature rotary encoder from
// edge events on its clock (CLK) and data (DT) lines.
//
// The decoder does no time-based debouncing. A step is decided when the data
// line moves while data is asserted and the clock line has changed since the
// previous data edge; the clock level at that moment gives the direction.
// Only the most recent decision is kept: callers that poll Read less often
// than the knob moves lose the intermediate steps.
package encoder

import (
	"errors"
	"sync/atomic"

	"github.com/sweeney/rotary-encoder/internal/gpio"
	"go.uber.org/zap"
)

// Normalized line levels.
const (
	released = 0
	asserted = 1
)

// Decoder is one physical encoder bound to a fixed pin pair.
//
// Read, the hook setters and the edge handlers may all run concurrently.
type Decoder struct {
	platform  gpio.Platform
	clockPin  int
	dataPin   int
	activeLow bool
	log       *zap.Logger

	// Each level has a single writer: the handler of the other line.
	clockLevel atomic.Uint32
	dataLevel  atomic.Uint32
	pending    atomic.Int32

	forwardHook  atomic.Pointer[func()]
	backwardHook atomic.Pointer[func()]

	armed      atomic.Bool
	readErrors atomic.Uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithActiveLow sets the line polarity. Active-low (the default) treats a
// physically low pin as asserted.
func WithActiveLow(activeLow bool) Option {
	return func(d *Decoder) { d.activeLow = activeLow }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *zap.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates an unarmed decoder. No I/O is performed until Begin.
func New(p gpio.Platform, clockPin, dataPin int, opts ...Option) *Decoder {
	d := &Decoder{
		platform:  p,
		clockPin:  clockPin,
		dataPin:   dataPin,
		activeLow: true,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("encoder").With(zap.Int("clk", clockPin), zap.Int("dt", dataPin))
	return d
}

// Begin configures both pins as inputs and binds the edge handlers.
// Calling it again rebinds the handlers. On a bind failure the decoder is
// disarmed with neither pin bound, including bindings from an earlier Begin,
// and the error is a *ConfigurationError.
func (d *Decoder) Begin() error {
	for _, pin := range []int{d.clockPin, d.dataPin} {
		if err := d.platform.ConfigureInput(pin); err != nil {
			return &ConfigurationError{Pin: pin, Op: "configure", Err: err}
		}
	}

	d.armed.Store(true)

	if err := d.platform.BindEdge(d.clockPin, d.onClockEdge); err != nil {
		d.disarmAfter(d.dataPin)
		return &ConfigurationError{Pin: d.clockPin, Op: "bind", Err: err}
	}
	if err := d.platform.BindEdge(d.dataPin, d.onDataEdge); err != nil {
		d.disarmAfter(d.clockPin, d.dataPin)
		return &ConfigurationError{Pin: d.dataPin, Op: "bind", Err: err}
	}

	d.log.Info("armed", zap.Bool("active_low", d.activeLow))
	return nil
}

// disarmAfter undoes a partial Begin. The failed pin may still hold a
// handler from a previous Begin, so every listed pin is unbound.
func (d *Decoder) disarmAfter(pins ...int) {
	d.armed.Store(false)
	for _, pin := range pins {
		if err := d.platform.UnbindEdge(pin); err != nil {
			d.log.Warn("unbind after failed begin", zap.Int("pin", pin), zap.Error(err))
		}
	}
}

// Close unbinds both edge handlers. A handler already running may finish,
// but it no longer changes the decoder state.
func (d *Decoder) Close() error {
	d.armed.Store(false)

	var errs []error
	for _, pin := range []int{d.clockPin, d.dataPin} {
		if err := d.platform.UnbindEdge(pin); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	d.log.Info("disarmed")
	return nil
}

// Armed reports whether the edge handlers are live: true after a successful
// Begin, false before it and after Close or a failed Begin.
func (d *Decoder) Armed() bool {
	return d.armed.Load()
}

// Read returns the latched step and clears it.
func (d *Decoder) Read() Step {
	return Step(d.pending.Swap(int32(StepNone)))
}

// AttachForwardHook sets the function called from the edge handler on every
// forward decision. nil clears it. The hook must not block.
func (d *Decoder) AttachForwardHook(fn func()) {
	storeHook(&d.forwardHook, fn)
}

// AttachBackwardHook is AttachForwardHook for backward decisions.
func (d *Decoder) AttachBackwardHook(fn func()) {
	storeHook(&d.backwardHook, fn)
}

func storeHook(slot *atomic.Pointer[func()], fn func()) {
	if fn == nil {
		slot.Store(nil)
		return
	}
	slot.Store(&fn)
}

// Levels returns the last observed normalized levels (1 = asserted).
func (d *Decoder) Levels() (clock, data int) {
	return int(d.clockLevel.Load()), int(d.dataLevel.Load())
}

// ReadErrors returns how many edge events were dropped because the
// platform failed to read a pin.
func (d *Decoder) ReadErrors() uint64 {
	return d.readErrors.Load()
}

func (d *Decoder) normalize(raw int) uint32 {
	high := raw != 0
	if high == d.activeLow {
		return released
	}
	return asserted
}

// onClockEdge samples the data line. Decisions are only made on data edges.
func (d *Decoder) onClockEdge() {
	if !d.armed.Load() {
		return
	}
	raw, err := d.platform.ReadLevel(d.dataPin)
	if err != nil {
		d.readErrors.Add(1)
		return
	}
	d.dataLevel.Store(d.normalize(raw))
}

// onDataEdge samples the clock line and decides a step.
func (d *Decoder) onDataEdge() {
	if !d.armed.Load() {
		return
	}
	raw, err := d.platform.ReadLevel(d.clockPin)
	if err != nil {
		d.readErrors.Add(1)
		return
	}
	clock := d.normalize(raw)
	previous := d.clockLevel.Swap(clock)

	if d.dataLevel.Load() != asserted {
		return
	}
	if previous == clock {
		return
	}

	if clock == asserted {
		d.pending.Store(int32(StepForward))
		callHook(&d.forwardHook)
	} else {
		d.pending.Store(int32(StepBackward))
		callHook(&d.backwardHook)
	}
}

func callHook(slot *atomic.Pointer[func()]) {
	if fn := slot.Load(); fn != nil {
		(*fn)()
	}
}
