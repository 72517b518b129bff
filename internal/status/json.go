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
	Paused        bool         `json:"paused"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Buttons       []ButtonJSON `json:"buttons"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Name        string     `json:"name"`
	Pin         string     `json:"pin"`
	Kind        string     `json:"kind"`
	Phase       string     `json:"phase"`
	On          bool       `json:"on"`
	Enabled     bool       `json:"enabled"`
	Voided      bool       `json:"voided"`
	Latched     bool       `json:"latched"`
	Warning     bool       `json:"warning"`
	Pilot       bool       `json:"pilot"`
	Second      bool       `json:"second"`
	Value       uint16     `json:"value"`
	Pressed     bool       `json:"pressed"`
	Word        uint32     `json:"word"`
	RemainingMs int64      `json:"remaining_ms,omitempty"`
	Counts      CountsJSON `json:"event_counts"`
	ReadErrors  int        `json:"read_errors,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// CountsJSON is the JSON representation of output transition counts.
type CountsJSON struct {
	On    int `json:"on"`
	Off   int `json:"off"`
	Voids int `json:"voids"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Driver      string `json:"driver"`
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		buttons[i] = ButtonJSON{
			Name:        b.Name,
			Pin:         b.Pin,
			Kind:        string(b.Kind),
			Phase:       string(b.Phase),
			On:          b.Status.On,
			Enabled:     b.Status.Enabled,
			Voided:      b.Status.Voided,
			Latched:     b.Status.Latched,
			Warning:     b.Status.Warning,
			Pilot:       b.Status.Pilot,
			Second:      b.Status.Second,
			Value:       b.Status.Value,
			Pressed:     b.Pressed,
			Word:        b.Status.Pack(),
			RemainingMs: b.RemainingMs,
			Counts:      CountsJSON{On: b.Counts.On, Off: b.Counts.Off, Voids: b.Counts.Voids},
			ReadErrors:  b.ReadErrors,
			LastError:   b.LastError,
		}
	}

	return StatusInner{
		Paused:        snap.Paused,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Buttons:       buttons,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Driver:      snap.Config.Driver,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
