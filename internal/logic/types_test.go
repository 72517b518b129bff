package logic

import "testing"

func TestStatusPack(t *testing.T) {
	tests := []struct {
		s    Status
		want uint32
	}{
		{Status{}, 0},
		{Status{On: true}, 1},
		{Status{Enabled: true}, 2},
		{Status{On: true, Enabled: true, Latched: true}, 0x23},
		{Status{Pilot: true, Warning: true, Voided: true}, 0x1c},
		{Status{On: true, Enabled: true, Second: true}, 0x43},
		{Status{On: true, Enabled: true, Latched: true, Value: 0x1234}, 0x12340023},
	}

	for _, tt := range tests {
		if got := tt.s.Pack(); got != tt.want {
			t.Errorf("Pack(%+v) = %#x, want %#x", tt.s, got, tt.want)
		}
		if got := UnpackStatus(tt.want); got != tt.s {
			t.Errorf("UnpackStatus(%#x) = %+v, want %+v", tt.want, got, tt.s)
		}
	}
}

func TestUnpackIgnoresUnusedBits(t *testing.T) {
	if got := UnpackStatus(0xff80 | 1); got != (Status{On: true}) {
		t.Errorf("unexpected status %+v", got)
	}
}

func TestDiffOrder(t *testing.T) {
	prev := Status{Enabled: true, Pilot: true}
	next := Status{On: true, Enabled: false, Voided: true}

	events := diff(prev, next, 42)
	expectTypes(t, events, EventOn, EventDisabled, EventVoided, EventPilotOff)
	for _, e := range events {
		if e.Time != 42 || e.Status != next {
			t.Errorf("event %s should carry time 42 and the new status, got %+v", e.Type, e)
		}
	}
}

func TestDiffSecondAndValueLast(t *testing.T) {
	prev := Status{On: true, Latched: true, Value: 3}
	next := Status{On: true, Second: true, Value: 4}
	expectTypes(t, diff(prev, next, 0), EventSecondOn, EventValue)
}

func TestDiffNoChange(t *testing.T) {
	s := Status{On: true, Latched: true}
	if events := diff(s, s, 0); len(events) != 0 {
		t.Errorf("expected no events, got %v", eventTypes(events))
	}
}

func TestPhaseOn(t *testing.T) {
	for _, p := range []Phase{PhaseOn, PhaseLatched, PhaseUnlatchArmed, PhaseTimed, PhaseVoided, PhaseSettled, PhaseSettledArmed, PhaseSecond} {
		if !p.on() {
			t.Errorf("%s should drive the output", p)
		}
	}
	if PhaseOff.on() {
		t.Error("OFF should not drive the output")
	}
}
