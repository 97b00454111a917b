// Package status provides a thread-safe status tracker for the rotary-encoder daemon.
// It is read by HTTP handlers and by the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rotary-encoder/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Name        string
	Chip        string
	ClockPin    int
	DataPin     int
	ActiveLow   bool
	Bias        string
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Encoder is the decoder's view at the last update.
type Encoder struct {
	Armed      bool
	ClockLevel int // normalized, 1 = asserted
	DataLevel  int
	ReadErrors uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LastStep   logic.EventType
	LastStepAt time.Time
	// Counts are the steps returned by polling the decoder.
	Counts logic.EventCounts
	// Decisions are the steps seen by the decoder hooks. Decisions above
	// Counts were overwritten before a poll picked them up.
	Decisions     logic.EventCounts
	Encoder       Encoder
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	// MQTTBuffered and MQTTDropped describe the offline buffer.
	MQTTBuffered int
	MQTTDropped  uint64
	Network       *NetworkInfo
	Host          Host
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Missed returns how many decisions never reached a poll.
func (s Snapshot) Missed() int {
	m := s.Decisions.Total() - s.Counts.Total()
	if m < 0 {
		return 0
	}
	return m
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the step bookkeeping. Called from runLoop on every tick.
func (t *Tracker) Update(last logic.EventType, lastAt time.Time, counts, decisions logic.EventCounts) {
	t.mu.Lock()
	t.snap.LastStep = last
	t.snap.LastStepAt = lastAt
	t.snap.Counts = counts
	t.snap.Decisions = decisions
	t.mu.Unlock()
}

// SetEncoder records the decoder's diagnostic view.
func (t *Tracker) SetEncoder(e Encoder) {
	t.mu.Lock()
	t.snap.Encoder = e
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTQueue records the offline buffer depth and lifetime drops.
func (t *Tracker) SetMQTTQueue(buffered int, dropped uint64) {
	t.mu.Lock()
	t.snap.MQTTBuffered = buffered
	t.snap.MQTTDropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetHost records the latest host load sample.
func (t *Tracker) SetHost(h Host) {
	t.mu.Lock()
	t.snap.Host = h
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
