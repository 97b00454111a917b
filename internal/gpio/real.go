//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// RealPlatform drives actual hardware using the Linux GPIO character device.
type RealPlatform struct {
	chip *gpiocdev.Chip
	bias gpiocdev.LineReqOption
	log  *zap.Logger

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealPlatform opens the named chip. Lines are requested lazily by
// ConfigureInput and BindEdge.
func NewRealPlatform(chipName string, bias Bias, log *zap.Logger) (*RealPlatform, error) {
	opt, err := biasOption(bias)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("rotary-encoder"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	return &RealPlatform{
		chip:  chip,
		bias:  opt,
		log:   log.Named("gpio"),
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

func biasOption(b Bias) (gpiocdev.LineReqOption, error) {
	switch b {
	case BiasPullUp, "":
		return gpiocdev.WithPullUp, nil
	case BiasPullDown:
		return gpiocdev.WithPullDown, nil
	case BiasDisabled:
		return gpiocdev.WithBiasDisabled, nil
	default:
		return nil, fmt.Errorf("unknown bias %q", b)
	}
}

// ConfigureInput requests the line as a plain input. A line that is already
// held (plain or with edge detection) is left as it is.
func (r *RealPlatform) ConfigureInput(pin int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lines[pin]; ok {
		return nil
	}
	l, err := r.chip.RequestLine(pin, gpiocdev.AsInput, r.bias)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	r.lines[pin] = l
	return nil
}

// ReadLevel returns the raw value of a configured pin.
func (r *RealPlatform) ReadLevel(pin int) (int, error) {
	r.mu.Lock()
	l, ok := r.lines[pin]
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pin %d not configured", pin)
	}
	v, err := l.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v, nil
}

// BindEdge re-requests the line with both-edge detection. gpiocdev delivers
// events for each request on its own goroutine.
func (r *RealPlatform) BindEdge(pin int, h EdgeHandler) error {
	if err := r.release(pin); err != nil {
		return err
	}

	l, err := r.chip.RequestLine(pin,
		gpiocdev.AsInput,
		r.bias,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { h() }))
	if err != nil {
		return fmt.Errorf("request edge events on pin %d: %w", pin, err)
	}

	r.mu.Lock()
	r.lines[pin] = l
	r.mu.Unlock()
	r.log.Debug("edge handler bound", zap.Int("pin", pin))
	return nil
}

// UnbindEdge closes the event request and re-requests the pin as a plain
// input, so no watcher goroutine remains for it.
func (r *RealPlatform) UnbindEdge(pin int) error {
	if err := r.release(pin); err != nil {
		return err
	}
	r.log.Debug("edge handler unbound", zap.Int("pin", pin))
	return r.ConfigureInput(pin)
}

// release drops the line from the table before closing it, so a handler on
// another line can never block Close by waiting on r.mu.
func (r *RealPlatform) release(pin int) error {
	r.mu.Lock()
	l, ok := r.lines[pin]
	delete(r.lines, pin)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := l.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", pin, err)
	}
	return nil
}

// Close releases every line and the chip.
func (r *RealPlatform) Close() error {
	r.mu.Lock()
	lines := r.lines
	r.lines = make(map[int]*gpiocdev.Line)
	r.mu.Unlock()

	var errs []error
	for pin, l := range lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
