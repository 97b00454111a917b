package encoder

import "fmt"

// Step is the decoded direction of one detent.
type Step int32

const (
	StepNone Step = iota
	StepForward
	StepBackward
)

func (s Step) String() string {
	switch s {
	case StepNone:
		return "NONE"
	case StepForward:
		return "FORWARD"
	case StepBackward:
		return "BACKWARD"
	default:
		return fmt.Sprintf("Step(%d)", int32(s))
	}
}

// ConfigurationError reports that the platform refused to set up a pin,
// typically because it cannot deliver edge events for it.
type ConfigurationError struct {
	Pin int
	Op  string // "configure" or "bind"
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("encoder: %s pin %d: %v", e.Op, e.Pin, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
