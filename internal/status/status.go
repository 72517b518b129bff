// Package status provides a thread-safe status tracker for the mpb-switch
// daemon. It is read by HTTP handlers while the control loop writes to it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mpb-switch/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Driver      string
}

// Button is the last known state of one button.
type Button struct {
	Name        string
	Pin         string
	Kind        logic.Kind
	Phase       logic.Phase
	Status      logic.Status
	Pressed     bool
	RemainingMs int64
	Counts      logic.Counts
	ReadErrors  int
	LastError   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Buttons       []Button
	Paused        bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Button returns the state of the named button.
func (s Snapshot) Button(name string) (Button, bool) {
	for _, b := range s.Buttons {
		if b.Name == name {
			return b, true
		}
	}
	return Button{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
}

// NewTracker creates a Tracker for the given buttons, in display order.
func NewTracker(startTime time.Time, cfg Config, buttons []Button) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			Buttons:   append([]Button(nil), buttons...),
			StartTime: startTime,
			Config:    cfg,
		},
		index: make(map[string]int, len(buttons)),
	}
	for i, b := range buttons {
		t.index[b.Name] = i
	}
	return t
}

// SetButton replaces the state of the button with the same name.
// Unknown names are ignored.
func (t *Tracker) SetButton(b Button) {
	t.mu.Lock()
	if i, ok := t.index[b.Name]; ok {
		t.snap.Buttons[i] = b
	}
	t.mu.Unlock()
}

// SetPaused records whether sampling is paused.
func (t *Tracker) SetPaused(paused bool) {
	t.mu.Lock()
	t.snap.Paused = paused
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]Button(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
