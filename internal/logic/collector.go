package logic

import (
	"time"

	"github.com/sweeney/rotary-encoder/internal/encoder"
)

// Collector turns polled decoder results into events and keeps counts.
type Collector struct {
	startTime     time.Time
	eventCounts   EventCounts
	seq           uint64
	last          EventType
	lastAt        time.Time
	lastHeartbeat time.Time
}

// NewCollector creates a Collector. The startTime is used for calculating
// uptime in heartbeat events.
func NewCollector(startTime time.Time) *Collector {
	return &Collector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes one poll result and returns the event to publish, or nil
// if the decoder had nothing pending.
func (c *Collector) Process(input Input) *Event {
	var typ EventType
	switch input.Step {
	case encoder.StepForward:
		typ = EventForward
		c.eventCounts.Forward++
	case encoder.StepBackward:
		typ = EventBackward
		c.eventCounts.Backward++
	default:
		return nil
	}

	c.seq++
	c.last = typ
	c.lastAt = input.Time
	return &Event{
		Timestamp: input.Time,
		Type:      typ,
		Seq:       c.seq,
	}
}

// EventCountsSnapshot returns a copy of the step counts.
func (c *Collector) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// LastStep returns the most recent step and when it was seen.
// The type is empty until the first step.
func (c *Collector) LastStep() (EventType, time.Time) {
	return c.last, c.lastAt
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Collector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
