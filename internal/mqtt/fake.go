package mqtt

import (
	"github.com/sweeney/rotary-encoder/internal/logic"
)

// FakePublisher records published events for test assertions. It satisfies
// both Publisher and ConnectionStatus.
type FakePublisher struct {
	// Name is the encoder name used when formatting payloads.
	Name string

	Events         []logic.Event
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, if set, are returned without
	// recording anything.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool

	// Queued and Drops are reported by Buffered and Dropped.
	Queued int
	Drops  uint64
}

// NewFakePublisher creates a FakePublisher for the encoder named "test".
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Name: "test"}
}

// Publish records the step event and its payload.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(f.Name, event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event and its payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Steps returns the recorded step types in publish order.
func (f *FakePublisher) Steps() []logic.EventType {
	out := make([]logic.EventType, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Type
	}
	return out
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }
func (f *FakePublisher) Buffered() int     { return f.Queued }
func (f *FakePublisher) Dropped() uint64   { return f.Drops }

// Reset clears everything recorded and injected.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{Name: f.Name}
}
