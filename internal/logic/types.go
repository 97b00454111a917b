// Package logic contains pure bookkeeping for decoded encoder steps.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/rotary-encoder/internal/encoder"
)

// EventType names a published step event.
type EventType string

const (
	EventForward  EventType = "FORWARD"
	EventBackward EventType = "BACKWARD"
)

// Event represents a step to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Seq       uint64 // 1-based count of steps seen since startup
}

// Input represents one poll of the decoder.
type Input struct {
	Step encoder.Step
	Time time.Time
}

// EventCounts tracks the number of each step direction since startup.
type EventCounts struct {
	Forward  int
	Backward int
}

// Total returns the number of steps in either direction.
func (c EventCounts) Total() int {
	return c.Forward + c.Backward
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
