package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Name          string       `json:"name"`
	LastStep      string       `json:"last_step"`
	LastStepAt    string       `json:"last_step_at,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Encoder       EncoderJSON  `json:"encoder"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"step_counts"`
	Decisions     CountsJSON   `json:"decisions"`
	Missed        int          `json:"missed"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Host          *HostJSON    `json:"host,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// EncoderJSON reports the decoder's line levels.
type EncoderJSON struct {
	Armed      bool   `json:"armed"`
	Clock      int    `json:"clock"`
	Data       int    `json:"data"`
	ReadErrors uint64 `json:"read_errors"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
	Dropped   uint64 `json:"dropped"`
}

// CountsJSON is the JSON representation of step counts.
type CountsJSON struct {
	Forward  int `json:"forward"`
	Backward int `json:"backward"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// HostJSON is the JSON representation of a host load sample.
type HostJSON struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	SampledAt      string  `json:"sampled_at"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	ClockPin    int    `json:"pin_clk"`
	DataPin     int    `json:"pin_dt"`
	ActiveLow   bool   `json:"active_low"`
	Bias        string `json:"bias"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	last := string(snap.LastStep)
	if last == "" {
		last = "NONE"
	}

	inner := StatusInner{
		Name:          snap.Config.Name,
		LastStep:      last,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Encoder: EncoderJSON{
			Armed:      snap.Encoder.Armed,
			Clock:      snap.Encoder.ClockLevel,
			Data:       snap.Encoder.DataLevel,
			ReadErrors: snap.Encoder.ReadErrors,
		},
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
			Dropped:   snap.MQTTDropped,
		},
		Counts:    CountsJSON{Forward: snap.Counts.Forward, Backward: snap.Counts.Backward},
		Decisions: CountsJSON{Forward: snap.Decisions.Forward, Backward: snap.Decisions.Backward},
		Missed:    snap.Missed(),
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			ClockPin:    snap.Config.ClockPin,
			DataPin:     snap.Config.DataPin,
			ActiveLow:   snap.Config.ActiveLow,
			Bias:        snap.Config.Bias,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastStepAt.IsZero() {
		inner.LastStepAt = snap.LastStepAt.UTC().Format(time.RFC3339Nano)
	}
	if !snap.Host.SampledAt.IsZero() {
		inner.Host = &HostJSON{
			CPUPercent:     snap.Host.CPUPercent,
			MemUsedPercent: snap.Host.MemUsedPercent,
			SampledAt:      snap.Host.SampledAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
