// Package gpio provides edge-triggered GPIO input with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// EdgeHandler is invoked by the platform whenever a bound pin changes level.
// Handlers run on platform goroutines and must return quickly.
type EdgeHandler func()

// Platform is the narrow GPIO surface the encoder needs.
type Platform interface {
	// ConfigureInput sets the pin up as a digital input.
	ConfigureInput(pin int) error

	// ReadLevel returns the raw (physical) level of the pin, 0 or 1.
	ReadLevel(pin int) (int, error)

	// BindEdge registers h to fire on both rising and falling edges.
	// Binding an already bound pin replaces its handler.
	BindEdge(pin int, h EdgeHandler) error

	// UnbindEdge removes the handler and leaves the pin a quiet input.
	// Once it returns no further calls to the old handler are started.
	UnbindEdge(pin int) error
}

// Default pin assignment (BCM numbering) for a KY-040 on a Raspberry Pi.
const (
	DefaultPinClock = 17
	DefaultPinData  = 27
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Bias selects the input pull resistor.
type Bias string

const (
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
	BiasDisabled Bias = "disabled"
)
