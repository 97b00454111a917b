package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/rotary-encoder/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Name: "knob", PollMs: 5, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 5 {
		t.Errorf("Config.PollMs: got %d, want 5", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Encoder.Armed {
		t.Error("expected Armed=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)

	tr.Update(logic.EventBackward, at, logic.EventCounts{Forward: 3, Backward: 1}, logic.EventCounts{Forward: 4, Backward: 1})

	snap := tr.Snapshot()
	if snap.LastStep != logic.EventBackward {
		t.Errorf("LastStep: got %q, want BACKWARD", snap.LastStep)
	}
	if !snap.LastStepAt.Equal(at) {
		t.Errorf("LastStepAt: got %v, want %v", snap.LastStepAt, at)
	}
	if snap.Counts.Forward != 3 {
		t.Errorf("Counts.Forward: got %d, want 3", snap.Counts.Forward)
	}
	if snap.Decisions.Forward != 4 {
		t.Errorf("Decisions.Forward: got %d, want 4", snap.Decisions.Forward)
	}
	if snap.Missed() != 1 {
		t.Errorf("Missed: got %d, want 1", snap.Missed())
	}
}

func TestMissedNeverNegative(t *testing.T) {
	// Hooks are counted on another goroutine and may lag a poll.
	snap := Snapshot{
		Counts:    logic.EventCounts{Forward: 2},
		Decisions: logic.EventCounts{Forward: 1},
	}
	if snap.Missed() != 0 {
		t.Errorf("Missed: got %d, want 0", snap.Missed())
	}
}

func TestSetEncoder(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetEncoder(Encoder{Armed: true, ClockLevel: 1, ReadErrors: 2})

	snap := tr.Snapshot()
	if !snap.Encoder.Armed {
		t.Error("expected Armed=true")
	}
	if snap.Encoder.ClockLevel != 1 || snap.Encoder.DataLevel != 0 {
		t.Errorf("levels: got clk=%d dt=%d", snap.Encoder.ClockLevel, snap.Encoder.DataLevel)
	}
	if snap.Encoder.ReadErrors != 2 {
		t.Errorf("ReadErrors: got %d, want 2", snap.Encoder.ReadErrors)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetMQTTQueue(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Broker: "tcp://broker:1883"})
	tr.SetMQTTQueue(12, 3)

	snap := tr.Snapshot()
	if snap.MQTTBuffered != 12 || snap.MQTTDropped != 3 {
		t.Errorf("queue: got %d/%d, want 12/3", snap.MQTTBuffered, snap.MQTTDropped)
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.MQTT.Buffered != 12 || parsed.Status.MQTT.Dropped != 3 {
		t.Errorf("mqtt JSON: got %+v", parsed.Status.MQTT)
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.EventForward, time.Now(), logic.EventCounts{Forward: 1}, logic.EventCounts{Forward: 1})

	snap1 := tr.Snapshot()

	tr.Update(logic.EventBackward, time.Now(), logic.EventCounts{Forward: 1, Backward: 1}, logic.EventCounts{Forward: 1, Backward: 1})

	if snap1.LastStep != logic.EventForward {
		t.Error("snapshot should be a copy; LastStep was modified")
	}
	if snap1.Counts.Backward != 0 {
		t.Error("snapshot should be a copy; Counts was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		LastStep:      logic.EventForward,
		LastStepAt:    start.Add(time.Minute),
		Counts:        logic.EventCounts{Forward: 5, Backward: 2},
		Decisions:     logic.EventCounts{Forward: 6, Backward: 2},
		Encoder:       Encoder{Armed: true, ClockLevel: 1, DataLevel: 0},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Name:      "knob",
			Chip:      "gpiochip0",
			ClockPin:  17,
			DataPin:   27,
			ActiveLow: true,
			Bias:      "pull-up",
			PollMs:    5,
			Broker:    "tcp://localhost:1883",
			HTTPAddr:  ":80",
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web JSON should carry no event/reason, got %q/%q", s.Event, s.Reason)
	}
	if s.Name != "knob" {
		t.Errorf("Name: got %q, want knob", s.Name)
	}
	if s.LastStep != "FORWARD" {
		t.Errorf("LastStep: got %q, want FORWARD", s.LastStep)
	}
	if s.LastStepAt != "2026-01-01T00:01:00Z" {
		t.Errorf("LastStepAt: got %q", s.LastStepAt)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.Encoder.Armed || s.Encoder.Clock != 1 {
		t.Errorf("Encoder: got %+v", s.Encoder)
	}
	if s.Counts.Forward != 5 || s.Counts.Backward != 2 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Missed != 1 {
		t.Errorf("Missed: got %d, want 1", s.Missed)
	}
	if s.Config.ClockPin != 17 || s.Config.DataPin != 27 {
		t.Errorf("Config pins: got %d/%d", s.Config.ClockPin, s.Config.DataPin)
	}
	if !s.Config.ActiveLow {
		t.Error("expected Config.ActiveLow=true")
	}
	if s.Network != nil {
		t.Error("expected Network omitted")
	}
}

func TestFormatJSONNoStepYet(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)
	if parsed.Status.LastStep != "NONE" {
		t.Errorf("LastStep: got %q, want NONE", parsed.Status.LastStep)
	}
	if strings.Contains(string(data), "last_step_at") {
		t.Error("expected last_step_at omitted before the first step")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	data := FormatStatusEvent(snap, "STARTUP", "")
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("expected reason omitted, got %s", data)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT payload should be compact")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Now(),
		Now:       time.Now(),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestFormatJSONHost(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: now, Now: now}
	if strings.Contains(string(FormatJSON(snap)), `"host"`) {
		t.Error("expected host omitted before the first sample")
	}

	snap.Host = Host{CPUPercent: 12.5, MemUsedPercent: 40, SampledAt: now}
	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Host == nil {
		t.Fatal("expected Host in JSON")
	}
	if parsed.Status.Host.CPUPercent != 12.5 || parsed.Status.Host.MemUsedPercent != 40 {
		t.Errorf("Host: got %+v", parsed.Status.Host)
	}
}

func TestSampleHost(t *testing.T) {
	now := time.Now()
	h, err := SampleHost(now)
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if !h.SampledAt.Equal(now) {
		t.Errorf("SampledAt: got %v, want %v", h.SampledAt, now)
	}
	if h.MemUsedPercent <= 0 || h.MemUsedPercent > 100 {
		t.Errorf("MemUsedPercent out of range: %v", h.MemUsedPercent)
	}
	if h.CPUPercent < 0 || h.CPUPercent > 100 {
		t.Errorf("CPUPercent out of range: %v", h.CPUPercent)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.EventForward, time.Now(), logic.EventCounts{Forward: i}, logic.EventCounts{Forward: i})
			tr.SetEncoder(Encoder{Armed: true, ClockLevel: i % 2})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
