package logic

import "time"

// requests are control calls waiting for the next Update.
type requests struct {
	enable  bool
	disable bool
	void    bool
	unlatch bool
	reset   bool
}

// Button emulates one switch driven by a momentary push button.
// It is not safe for concurrent use: one goroutine owns it and calls
// Update once per tick.
type Button struct {
	cfg Config

	deb   debouncer
	delay startDelay

	phase   Phase
	since   Millis // start of the phase, used by the timed phases
	enabled bool
	pending requests

	// Slider position and direction
	value uint16
	up    bool

	published Status
	counts    Counts
}

// NewButton creates a button in the OFF, released state.
func NewButton(cfg Config) (*Button, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	b := &Button{
		cfg:     cfg,
		deb:     newDebouncer(cfg.Debounce, cfg.ReleaseDebounce),
		delay:   startDelay{delay: cfg.StartDelay},
		phase:   PhaseOff,
		enabled: !cfg.StartDisabled,
		value:   cfg.SliderInitial,
		up:      true,
	}
	b.published = b.status(0)
	return b, nil
}

// Update runs one tick: pending controls, debounce, start delay, behavior,
// disable gate. It returns one event per published flag that changed.
func (b *Button) Update(in Sample) []Event {
	now := in.Time

	req := b.pending
	b.pending = requests{}

	if req.reset {
		b.deb.reset()
		b.delay.reset()
		b.setPhase(PhaseOff, now)
	}
	b.applyGate(req)

	var e edges
	if b.enabled {
		changed := b.deb.step(in.Active, now)
		e = b.delay.step(b.deb.stable, changed, b.deb.confirmedAt(), now)
	}

	b.advance(e, req, now)

	next := b.status(now)
	events := diff(b.published, next, now)
	if next.On != b.published.On {
		if next.On {
			b.counts.On++
		} else {
			b.counts.Off++
		}
	}
	b.published = next
	return events
}

// Enable lifts the disable gate on the next Update.
func (b *Button) Enable() {
	b.pending.enable = true
	b.pending.disable = false
}

// Disable engages the disable gate on the next Update.
func (b *Button) Disable() {
	b.pending.disable = true
	b.pending.enable = false
}

// VoidNow cancels a provisional output on the next Update. It does nothing
// once the output has settled.
func (b *Button) VoidNow() {
	b.pending.void = true
}

// Unlatch releases a latched LATCH button on the next Update.
func (b *Button) Unlatch() {
	b.pending.unlatch = true
}

// Reset returns the button to OFF and released on the next Update.
// The enabled state and the slider value are kept.
func (b *Button) Reset() {
	b.pending.reset = true
}

// IsOn returns the published output.
func (b *Button) IsOn() bool { return b.published.On }

// IsEnabled returns whether the disable gate is open.
func (b *Button) IsEnabled() bool { return b.enabled }

// IsVoided returns whether the output is still provisional.
func (b *Button) IsVoided() bool { return b.published.Voided }

// IsLatched returns whether a LATCH button is holding its output.
func (b *Button) IsLatched() bool { return b.published.Latched }

// IsSecond returns whether a two-action latch is in its secondary mode.
func (b *Button) IsSecond() bool { return b.published.Second }

// Value returns the slider value.
func (b *Button) Value() uint16 { return b.published.Value }

// SlidingUp returns the direction the slider moves on the next long press.
func (b *Button) SlidingUp() bool { return b.up }

// IsPressed returns the debounced, delay-filtered press state.
func (b *Button) IsPressed() bool { return b.delay.actionable }

// Status returns the published flags as of the last Update.
func (b *Button) Status() Status { return b.published }

// Phase returns the behavior state.
func (b *Button) Phase() Phase { return b.phase }

// Counts returns output transitions since construction.
func (b *Button) Counts() Counts { return b.counts }

// Config returns the normalized configuration.
func (b *Button) Config() Config { return b.cfg }

// Remaining returns the time left on a running service or void timer,
// or zero when none is running.
func (b *Button) Remaining(now Millis) time.Duration {
	var total time.Duration
	switch b.phase {
	case PhaseTimed:
		total = b.cfg.ServiceTime
	case PhaseVoided:
		total = b.cfg.VoidTime
	default:
		return 0
	}
	left := total - now.Since(b.since)
	if left < 0 {
		return 0
	}
	return left
}
