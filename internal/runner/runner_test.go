package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/mpb-switch/internal/gpio"
	"github.com/sweeney/mpb-switch/internal/logic"
	"github.com/sweeney/mpb-switch/internal/mqtt"
	"github.com/sweeney/mpb-switch/internal/status"
)

// fakeMillis returns a clock that advances 10ms on every call. The runner
// reads it once per tick.
func fakeMillis() logic.Clock {
	var n logic.Millis
	return logic.ClockFunc(func() logic.Millis {
		t := n
		n += 10
		return t
	})
}

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// samples returns n copies of v followed by the rest.
func samples(v bool, n int, rest ...bool) []bool {
	out := make([]bool, 0, n+len(rest))
	for i := 0; i < n; i++ {
		out = append(out, v)
	}
	return append(out, rest...)
}

// faultReader returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // inclusive
	faultEnd   int // exclusive
}

func (r *faultReader) Read() (bool, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return false, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type harness struct {
	t       *testing.T
	r       *Runner
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	tick    chan time.Time
	cancel  context.CancelCauseFunc
	done    chan error
}

func start(t *testing.T, o Options) *harness {
	t.Helper()
	pub := mqtt.NewFakePublisher()
	o.Publisher = pub
	if o.Clock == nil {
		o.Clock = fakeMillis()
	}
	if o.Now == nil {
		o.Now = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	}

	r, err := New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.Tracker == nil {
		o.Tracker = status.NewTracker(time.Now(), status.Config{}, r.Buttons())
		r.SetTracker(o.Tracker)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	h := &harness{
		t:       t,
		r:       r,
		pub:     pub,
		tracker: o.Tracker,
		tick:    make(chan time.Time),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { h.done <- r.Run(ctx, h.tick) }()
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- time.Time{}
	}
}

func (h *harness) stop(reason string) {
	h.t.Helper()
	h.cancel(Shutdown{Reason: reason})
	if err := <-h.done; err != nil {
		h.t.Fatalf("Run returned error: %v", err)
	}
}

func (h *harness) eventTypes(button string) []logic.EventType {
	var out []logic.EventType
	for _, e := range h.pub.SwitchEvents() {
		if e.Button == button {
			out = append(out, e.Event.Type)
		}
	}
	return out
}

func input(name string, cfg logic.Config, levels ...bool) Input {
	return Input{Name: name, Pin: name, Reader: gpio.NewFakeReader(levels...), Config: cfg}
}

func TestRunStartupAndShutdown(t *testing.T) {
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{}, false)}})
	h.ticks(3)
	h.stop("SIGTERM")

	names := h.pub.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Fatalf("expected STARTUP and SHUTDOWN, got %v", names)
	}
	shutdown := h.pub.SystemEvents[1]
	if shutdown.Reason != "SIGTERM" || !shutdown.Retained {
		t.Errorf("unexpected shutdown event: %+v", shutdown)
	}
	if len(shutdown.RawPayload) == 0 {
		t.Error("shutdown should carry a status snapshot")
	}
	if len(h.pub.SwitchEvents()) != 0 {
		t.Errorf("expected no switch events, got %d", len(h.pub.SwitchEvents()))
	}
}

func TestRunShutdownWithoutCause(t *testing.T) {
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{}, false)}})
	h.cancel(nil)
	<-h.done

	if h.pub.SystemEvents[1].Reason != "CANCELLED" {
		t.Errorf("expected CANCELLED, got %q", h.pub.SystemEvents[1].Reason)
	}
}

func TestRunToggle(t *testing.T) {
	levels := samples(true, 5, samples(false, 5)...)
	h := start(t, Options{Inputs: []Input{input("light", logic.Config{Kind: logic.KindToggle}, levels...)}})
	h.ticks(len(levels))
	h.stop("SIGINT")

	got := h.eventTypes("light")
	if len(got) != 1 || got[0] != logic.EventOn {
		t.Fatalf("expected one ON event, got %v", got)
	}

	b, _ := h.tracker.Snapshot().Button("light")
	if !b.Status.On || b.Counts.On != 1 {
		t.Errorf("tracker not updated: %+v", b)
	}
}

func TestRunBounceRejected(t *testing.T) {
	levels := []bool{true, false, true, false, true, false, false, false}
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{}, levels...)}})
	h.ticks(len(levels))
	h.stop("SIGTERM")

	if got := h.eventTypes("a"); len(got) != 0 {
		t.Errorf("expected bounce rejected, got %v", got)
	}
}

func TestRunReadErrorSkipsButton(t *testing.T) {
	reader := &faultReader{
		inner:      gpio.NewFakeReader(true),
		faultStart: 1,
		faultEnd:   3,
	}
	in := Input{Name: "a", Pin: "4", Reader: reader, Config: logic.Config{}}
	h := start(t, Options{Inputs: []Input{in}})

	// read ok, two faults, then reads recover
	h.ticks(8)
	h.stop("SIGTERM")

	b, _ := h.tracker.Snapshot().Button("a")
	if b.ReadErrors != 2 {
		t.Errorf("expected 2 read errors, got %d", b.ReadErrors)
	}
	if b.LastError != "" {
		t.Errorf("error should clear after recovery, got %q", b.LastError)
	}
	if got := h.eventTypes("a"); len(got) != 1 || got[0] != logic.EventOn {
		t.Errorf("expected ON after recovery, got %v", got)
	}
}

func TestRunPublishErrorKeepsLooping(t *testing.T) {
	levels := samples(true, 5)
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{}, levels...)}})
	h.pub.PublishError = errors.New("broker down")
	h.ticks(len(levels))
	h.stop("SIGTERM")

	b, _ := h.tracker.Snapshot().Button("a")
	if !b.Status.On {
		t.Error("button should be on despite publish errors")
	}
}

func TestRunControlDisable(t *testing.T) {
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{Kind: logic.KindLatch}, samples(true, 4, false)...)}})
	h.ticks(8) // latched

	if err := h.r.Control("a", ActionDisable); err != nil {
		t.Fatalf("Control: %v", err)
	}
	h.ticks(1)
	h.stop("SIGTERM")

	got := h.eventTypes("a")
	want := []logic.EventType{logic.EventOn, logic.EventOff, logic.EventDisabled}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRunControlAll(t *testing.T) {
	h := start(t, Options{Inputs: []Input{
		input("a", logic.Config{}, false),
		input("b", logic.Config{}, false),
	}})

	if err := h.r.Control(All, ActionDisable); err != nil {
		t.Fatalf("Control: %v", err)
	}
	h.ticks(1)
	h.stop("SIGTERM")

	for _, name := range []string{"a", "b"} {
		b, _ := h.tracker.Snapshot().Button(name)
		if b.Status.Enabled {
			t.Errorf("%s should be disabled", name)
		}
	}
}

func TestRunPauseResume(t *testing.T) {
	levels := samples(true, 10)
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{Kind: logic.KindToggle}, levels...)}})

	h.r.Control(All, ActionPause)
	h.ticks(5)
	h.r.Control(All, ActionResume)
	h.ticks(5)
	h.stop("SIGTERM")

	if h.tracker.Snapshot().Paused {
		t.Error("tracker should report running")
	}
	// Sampling while paused would have toggled on, then off again at resume
	if got := h.eventTypes("a"); len(got) != 1 || got[0] != logic.EventOn {
		t.Errorf("expected one ON after resume, got %v", got)
	}
}

func TestRunPausedTracker(t *testing.T) {
	h := start(t, Options{Inputs: []Input{input("a", logic.Config{}, false)}})
	h.r.Control(All, ActionPause)
	h.ticks(1)
	h.stop("SIGTERM")

	if !h.tracker.Snapshot().Paused {
		t.Error("tracker should report paused")
	}
}

func TestRunUnlatchBy(t *testing.T) {
	run := input("run", logic.Config{Kind: logic.KindLatch}, samples(true, 4, false)...)
	run.UnlatchBy = "stop"
	stop := input("stop", logic.Config{}, samples(false, 10, true)...)

	h := start(t, Options{Inputs: []Input{run, stop}})
	h.ticks(15)
	h.stop("SIGTERM")

	var events []mqtt.SwitchEvent
	for _, e := range h.pub.SwitchEvents() {
		if e.Button == "run" {
			events = append(events, e)
		}
	}
	if len(events) != 2 || events[0].Event.Type != logic.EventOn || events[1].Event.Type != logic.EventOff {
		t.Fatalf("expected run ON then OFF, got %+v", events)
	}
	// stop turns on at 120; run sees it on the next tick
	if events[1].Event.Time != 130 {
		t.Errorf("expected unlatch at 130, got %d", events[1].Event.Time)
	}
}

func TestRunHeartbeat(t *testing.T) {
	h := start(t, Options{
		Inputs:    []Input{input("a", logic.Config{}, false)},
		Heartbeat: 5 * time.Second,
	})
	h.ticks(10)
	h.stop("SIGTERM")

	count := 0
	for _, name := range h.pub.SystemEventNames() {
		if name == "HEARTBEAT" {
			count++
		}
	}
	if count == 0 {
		t.Error("expected at least one heartbeat")
	}
}

func TestControlErrors(t *testing.T) {
	r, err := New(Options{Inputs: []Input{input("a", logic.Config{}, false)}, Queue: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Control("ghost", ActionEnable); !errors.Is(err, ErrUnknownButton) {
		t.Errorf("expected ErrUnknownButton, got %v", err)
	}
	if err := r.Control("a", "explode"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if err := r.Control("a", ActionEnable); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := r.Control("a", ActionEnable); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	dup := []Input{input("a", logic.Config{}, false), input("a", logic.Config{}, false)}
	if _, err := New(Options{Inputs: dup}); err == nil {
		t.Error("expected error for duplicate names")
	}

	bad := []Input{input("a", logic.Config{Debounce: -1}, false)}
	if _, err := New(Options{Inputs: bad}); !errors.Is(err, logic.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	orphan := input("a", logic.Config{Kind: logic.KindLatch}, false)
	orphan.UnlatchBy = "b"
	if _, err := New(Options{Inputs: []Input{orphan}}); !errors.Is(err, ErrUnknownButton) {
		t.Errorf("expected ErrUnknownButton, got %v", err)
	}
}

func TestFormatWord(t *testing.T) {
	tests := []struct {
		w    uint32
		want string
	}{
		{0, "0x00000000"},
		{0x03, "0x00000003"},
		{0x23, "0x00000023"},
		{300<<logic.ValueShift | 0x43, "0x012c0043"},
	}
	for _, tt := range tests {
		if got := formatWord(tt.w); got != tt.want {
			t.Errorf("formatWord(%d) = %q, want %q", tt.w, got, tt.want)
		}
	}
}
