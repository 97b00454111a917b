// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rotary-encoder/internal/logic"
)

// TopicPrefix is the root of every topic the daemon publishes on.
const TopicPrefix = "input/rotary/"

// Topic returns the step event topic for the named encoder.
func Topic(name string) string {
	return TopicPrefix + name + "/steps"
}

// TopicSystem returns the lifecycle topic for the named encoder.
func TopicSystem(name string) string {
	return TopicPrefix + name + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a step event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports the broker connection and the offline buffer.
type ConnectionStatus interface {
	IsConnected() bool
	Buffered() int
	Dropped() uint64
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Rotary RotaryPayload `json:"rotary"`
}

// RotaryPayload contains the step event details.
type RotaryPayload struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Step      string `json:"step"`
	Seq       uint64 `json:"seq"`
}

// FormatPayload creates the JSON payload for a step event.
// Timestamps keep sub-second precision since detents arrive milliseconds apart.
func FormatPayload(name string, event logic.Event) ([]byte, error) {
	payload := Payload{
		Rotary: RotaryPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Name:      name,
			Step:      string(event.Type),
			Seq:       event.Seq,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
