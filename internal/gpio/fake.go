package gpio

import (
	"fmt"
	"sync"
)

// FakePlatform is a test double with simulated raw pin levels.
// Pins read high until set otherwise, matching an idle pulled-up encoder.
type FakePlatform struct {
	mu         sync.Mutex
	levels     map[int]int
	handlers   map[int]EdgeHandler
	configured map[int]bool

	// BindErrors, if set for a pin, is returned by BindEdge for that pin.
	BindErrors map[int]error

	// ConfigureError, if set, is returned by ConfigureInput.
	ConfigureError error

	// ReadError, if set, is returned by ReadLevel.
	ReadError error

	// Unbinds counts UnbindEdge calls per pin.
	Unbinds map[int]int
}

// Sample is one raw (clock, data) level pair of an encoder sequence.
type Sample struct {
	Clock int
	Data  int
}

// NewFakePlatform creates a FakePlatform with every pin high.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		levels:     make(map[int]int),
		handlers:   make(map[int]EdgeHandler),
		configured: make(map[int]bool),
		BindErrors: make(map[int]error),
		Unbinds:    make(map[int]int),
	}
}

// ConfigureInput marks the pin as an input.
func (f *FakePlatform) ConfigureInput(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.configured[pin] = true
	return nil
}

// ReadLevel returns the simulated raw level.
func (f *FakePlatform) ReadLevel(pin int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.level(pin), nil
}

func (f *FakePlatform) level(pin int) int {
	if v, ok := f.levels[pin]; ok {
		return v
	}
	return 1
}

// BindEdge records the handler for the pin.
func (f *FakePlatform) BindEdge(pin int, h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.BindErrors[pin]; err != nil {
		return err
	}
	if !f.configured[pin] {
		return fmt.Errorf("pin %d not configured", pin)
	}
	f.handlers[pin] = h
	return nil
}

// UnbindEdge forgets the handler for the pin.
func (f *FakePlatform) UnbindEdge(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, pin)
	f.Unbinds[pin]++
	return nil
}

// Bound reports whether a handler is registered for the pin.
func (f *FakePlatform) Bound(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[pin]
	return ok
}

// Configured reports whether ConfigureInput succeeded for the pin.
func (f *FakePlatform) Configured(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured[pin]
}

// SetLevel drives the pin to v. If the level changed and a handler is bound,
// the handler runs synchronously before SetLevel returns.
func (f *FakePlatform) SetLevel(pin, v int) {
	f.mu.Lock()
	changed := f.level(pin) != v
	f.levels[pin] = v
	h := f.handlers[pin]
	f.mu.Unlock()

	if changed && h != nil {
		h()
	}
}

// Trigger fires the pin's handler without changing its level, as a
// spurious or duplicate edge would.
func (f *FakePlatform) Trigger(pin int) {
	f.mu.Lock()
	h := f.handlers[pin]
	f.mu.Unlock()

	if h != nil {
		h()
	}
}

// Apply walks the encoder through samples. When both lines change between
// two samples the clock line moves first.
func (f *FakePlatform) Apply(clockPin, dataPin int, samples []Sample) {
	for _, s := range samples {
		f.SetLevel(clockPin, s.Clock)
		f.SetLevel(dataPin, s.Data)
	}
}
