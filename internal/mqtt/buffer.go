package mqtt

import "go.uber.org/zap"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds messages published while offline. When full, the oldest
// message is overwritten: a knob's latest steps matter more than old ones.
// The caller synchronizes access.
type ringBuffer struct {
	slots []bufferedMsg
	first int // index of the oldest message
	n     int

	// dropped counts overwritten messages over the publisher's lifetime.
	dropped uint64
	// warned is reset on drain so each offline period logs one warning.
	warned bool
	log    *zap.Logger
}

func newRingBuffer(capacity int, log *zap.Logger) *ringBuffer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ringBuffer{
		slots: make([]bufferedMsg, capacity),
		log:   log,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.n < len(r.slots) {
		r.slots[(r.first+r.n)%len(r.slots)] = msg
		r.n++
		return
	}

	r.slots[r.first] = msg
	r.first = (r.first + 1) % len(r.slots)
	r.dropped++
	if !r.warned {
		r.warned = true
		r.log.Warn("offline buffer full, dropping oldest",
			zap.Int("capacity", len(r.slots)), zap.String("topic", msg.topic))
	}
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.n)
	for i := range out {
		out[i] = r.slots[(r.first+i)%len(r.slots)]
		r.slots[(r.first+i)%len(r.slots)] = bufferedMsg{}
	}
	r.first, r.n = 0, 0
	r.warned = false
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}

func (r *ringBuffer) droppedTotal() uint64 {
	return r.dropped
}
