// Package mqtt publishes switch events and receives control commands over
// MQTT, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/mpb-switch/internal/logic"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a switch event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event SwitchEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives a control action addressed to a button.
type CommandHandler func(button, action string)

// Subscriber delivers control commands received from the broker.
type Subscriber interface {
	Subscribe(h CommandHandler) error
}

// SwitchEvent is a logic event of a named button, stamped with wall time.
type SwitchEvent struct {
	Timestamp time.Time
	Button    string
	Event     logic.Event
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

// Events is where a button's events are published.
func (t Topics) Events(button string) string {
	return t.Prefix + "/" + button + "/events"
}

// System is where lifecycle events are published.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// Commands is the subscription filter for every button's command topic.
func (t Topics) Commands() string {
	return t.Prefix + "/+/set"
}

// ParseCommand extracts the button and action from a message received on
// a command topic. Payloads are ENABLE, DISABLE, VOID, UNLATCH or RESET.
func (t Topics) ParseCommand(topic string, payload []byte) (string, string, error) {
	rest := strings.TrimPrefix(topic, t.Prefix+"/")
	if rest == topic || !strings.HasSuffix(rest, "/set") {
		return "", "", fmt.Errorf("not a command topic: %s", topic)
	}
	button := strings.TrimSuffix(rest, "/set")
	if button == "" || strings.Contains(button, "/") {
		return "", "", fmt.Errorf("not a command topic: %s", topic)
	}

	action := strings.ToUpper(strings.TrimSpace(string(payload)))
	switch action {
	case "ENABLE", "DISABLE", "VOID", "UNLATCH", "RESET":
		return button, strings.ToLower(action), nil
	default:
		return "", "", fmt.Errorf("unknown command %q for %s", action, button)
	}
}

// Payload represents the MQTT message payload for a switch event.
type Payload struct {
	Switch SwitchPayload `json:"switch"`
}

// SwitchPayload contains the switch event details.
type SwitchPayload struct {
	Timestamp string `json:"timestamp"`
	Button    string `json:"button"`
	Event     string `json:"event"`
	On        bool   `json:"on"`
	Enabled   bool   `json:"enabled"`
	Voided    bool   `json:"voided"`
	Latched   bool   `json:"latched"`
	Warning   bool   `json:"warning"`
	Pilot     bool   `json:"pilot"`
	Second    bool   `json:"second"`
	Value     uint16 `json:"value"`
	Word      uint32 `json:"word"`
}

// FormatPayload creates the JSON payload for a switch event.
func FormatPayload(event SwitchEvent) ([]byte, error) {
	s := event.Event.Status
	payload := Payload{
		Switch: SwitchPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Button:    event.Button,
			Event:     string(event.Event.Type),
			On:        s.On,
			Enabled:   s.Enabled,
			Voided:    s.Voided,
			Latched:   s.Latched,
			Warning:   s.Warning,
			Pilot:     s.Pilot,
			Second:    s.Second,
			Value:     s.Value,
			Word:      s.Pack(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events
// that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly.
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
