// Package logic turns a polled push-button line into switch semantics.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected through Sample.Time.
package logic

// Phase is the single state of a Button's behavior.
type Phase string

const (
	PhaseOff Phase = "OFF"
	// PhaseOn is a momentary or toggled output, or a latch still held down.
	PhaseOn Phase = "ON"
	// PhaseLatched is a latch whose turning-on press has been released.
	PhaseLatched Phase = "LATCHED"
	// PhaseUnlatchArmed is a latch pressed again, waiting for the release.
	PhaseUnlatchArmed Phase = "UNLATCH_ARMED"
	// PhaseTimed is a timer latch counting down its service time.
	PhaseTimed Phase = "TIMED"
	// PhaseVoided is a voidable latch still inside its void time.
	PhaseVoided Phase = "VOIDED"
	// PhaseSettled is a voidable latch past its void time.
	PhaseSettled Phase = "SETTLED"
	// PhaseSettledArmed is a settled latch-mode voidable pressed again.
	PhaseSettledArmed Phase = "SETTLED_ARMED"
	// PhaseSecond is a two-action latch held past its second delay.
	PhaseSecond Phase = "SECOND"
)

// on reports whether the behavior drives the output in this phase.
func (p Phase) on() bool {
	return p != PhaseOff
}

// Sample is one polarity-corrected read of the input line.
type Sample struct {
	Active bool // true = contact closed
	Time   Millis
}

// Status is the published flag set of a Button.
type Status struct {
	On      bool
	Enabled bool
	Voided  bool
	Latched bool
	Warning bool
	Pilot   bool
	// Second is raised while a two-action latch is in its secondary mode.
	Second bool
	// Value is the slider position, zero for other kinds.
	Value uint16
}

// Bit positions used by Pack.
const (
	BitOn = iota
	BitEnabled
	BitPilot
	BitWarning
	BitVoided
	BitLatched
	BitSecond
)

// ValueShift is where Pack stores the slider value.
const ValueShift = 16

// Pack encodes s into a single word, one bit per flag in the low half and
// the slider value in the high half.
func (s Status) Pack() uint32 {
	var w uint32
	set := func(bit int, v bool) {
		if v {
			w |= 1 << bit
		}
	}
	set(BitOn, s.On)
	set(BitEnabled, s.Enabled)
	set(BitPilot, s.Pilot)
	set(BitWarning, s.Warning)
	set(BitVoided, s.Voided)
	set(BitLatched, s.Latched)
	set(BitSecond, s.Second)
	return w | uint32(s.Value)<<ValueShift
}

// UnpackStatus decodes a word produced by Status.Pack.
func UnpackStatus(w uint32) Status {
	has := func(bit int) bool { return w&(1<<bit) != 0 }
	return Status{
		On:      has(BitOn),
		Enabled: has(BitEnabled),
		Pilot:   has(BitPilot),
		Warning: has(BitWarning),
		Voided:  has(BitVoided),
		Latched: has(BitLatched),
		Second:  has(BitSecond),
		Value:   uint16(w >> ValueShift),
	}
}

// EventType names a change of one published flag.
type EventType string

const (
	EventOn         EventType = "ON"
	EventOff        EventType = "OFF"
	EventEnabled    EventType = "ENABLED"
	EventDisabled   EventType = "DISABLED"
	EventVoided     EventType = "VOIDED"
	EventUnvoided   EventType = "UNVOIDED"
	EventWarningOn  EventType = "WARNING_ON"
	EventWarningOff EventType = "WARNING_OFF"
	EventPilotOn    EventType = "PILOT_ON"
	EventPilotOff   EventType = "PILOT_OFF"
	EventSecondOn   EventType = "SECOND_ON"
	EventSecondOff  EventType = "SECOND_OFF"
	EventValue      EventType = "VALUE"
)

// Event is a published flag change, carrying the status after the change.
type Event struct {
	Time   Millis
	Type   EventType
	Status Status
}

// Counts tracks output transitions since construction.
type Counts struct {
	On    int
	Off   int
	Voids int // void requests that turned a provisional output off
}

// diff lists the events that lead from prev to next, in a fixed order.
func diff(prev, next Status, now Millis) []Event {
	var events []Event
	add := func(changed, v bool, on, off EventType) {
		if !changed {
			return
		}
		t := off
		if v {
			t = on
		}
		events = append(events, Event{Time: now, Type: t, Status: next})
	}
	add(prev.On != next.On, next.On, EventOn, EventOff)
	add(prev.Enabled != next.Enabled, next.Enabled, EventEnabled, EventDisabled)
	add(prev.Voided != next.Voided, next.Voided, EventVoided, EventUnvoided)
	add(prev.Warning != next.Warning, next.Warning, EventWarningOn, EventWarningOff)
	add(prev.Pilot != next.Pilot, next.Pilot, EventPilotOn, EventPilotOff)
	add(prev.Second != next.Second, next.Second, EventSecondOn, EventSecondOff)
	add(prev.Value != next.Value, true, EventValue, EventValue)
	return events
}
