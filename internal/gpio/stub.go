//go:build !linux

package gpio

import (
	"errors"

	"go.uber.org/zap"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPlatform is not available on non-Linux platforms.
type RealPlatform struct{}

// NewRealPlatform returns an error on non-Linux platforms.
func NewRealPlatform(chipName string, bias Bias, log *zap.Logger) (*RealPlatform, error) {
	return nil, errUnsupported
}

func (r *RealPlatform) ConfigureInput(pin int) error { return errUnsupported }
func (r *RealPlatform) ReadLevel(pin int) (int, error) { return 0, errUnsupported }
func (r *RealPlatform) BindEdge(pin int, h EdgeHandler) error { return errUnsupported }
func (r *RealPlatform) UnbindEdge(pin int) error { return errUnsupported }

// Close is a no-op on non-Linux platforms.
func (r *RealPlatform) Close() error {
	return nil
}
