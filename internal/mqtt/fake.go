package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// It is safe for concurrent use so tests can inspect it while a loop runs.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all switch events that were published.
	Events []SwitchEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler CommandHandler
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the switch event.
func (f *FakePublisher) Publish(event SwitchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Subscribe stores h for Deliver.
func (f *FakePublisher) Subscribe(h CommandHandler) error {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return nil
}

// Deliver simulates a command arriving from the broker. It reports
// whether a handler was subscribed.
func (f *FakePublisher) Deliver(button, action string) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(button, action)
	return true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SwitchEvents returns a copy of the recorded switch events.
func (f *FakePublisher) SwitchEvents() []SwitchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SwitchEvent(nil), f.Events...)
}

// SystemEventNames returns the Event field of each recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}
