package logic

// advance moves the behavior phase forward by one tick. Requests come
// first because they were issued before this tick, then timer expiry,
// then the filtered edges.
func (b *Button) advance(e edges, req requests, now Millis) {
	if req.void && b.phase == PhaseVoided {
		b.setPhase(PhaseOff, now)
		b.counts.Voids++
	}
	if req.unlatch && b.cfg.Kind == KindLatch {
		if b.phase == PhaseLatched || b.phase == PhaseUnlatchArmed {
			b.setPhase(PhaseOff, now)
		}
	}

	// Natural expiry runs whether or not the button is enabled.
	switch b.phase {
	case PhaseTimed:
		if now.Since(b.since) >= b.cfg.ServiceTime {
			b.setPhase(PhaseOff, now)
		}
	case PhaseVoided:
		if now.Since(b.since) >= b.cfg.VoidTime {
			b.setPhase(PhaseSettled, now)
		}
	}

	// The secondary mode follows the held press, which is unknown while disabled.
	if b.cfg.twoAction() && b.enabled {
		switch b.phase {
		case PhaseOn, PhaseUnlatchArmed:
			if now.Since(b.since) >= b.cfg.SecondDelay {
				b.startSecond(now)
			}
		case PhaseSecond:
			b.slide(now)
		}
	}

	if !e.press && !e.release {
		return
	}

	switch b.cfg.Kind {
	case KindMomentary:
		b.momentary(e, now)
	case KindLatch:
		b.latch(e, now)
	case KindToggle:
		b.toggle(e, now)
	case KindTimer:
		b.timer(e, now)
	case KindVoidable:
		b.voidable(e, now)
	case KindDoubleDelayed, KindSlider:
		b.doubleAction(e, now)
	}
}

func (b *Button) momentary(e edges, now Millis) {
	if e.press {
		b.setPhase(PhaseOn, now)
	}
	if e.release {
		b.setPhase(PhaseOff, now)
	}
}

// latch turns on with a press, latches on its release and turns off on
// the release that ends the next press.
func (b *Button) latch(e edges, now Millis) {
	if e.press {
		switch b.phase {
		case PhaseOff:
			b.setPhase(PhaseOn, now)
		case PhaseLatched:
			b.setPhase(PhaseUnlatchArmed, now)
		}
	}
	if e.release {
		switch b.phase {
		case PhaseOn:
			b.setPhase(PhaseLatched, now)
		case PhaseUnlatchArmed:
			b.setPhase(PhaseOff, now)
		}
	}
}

func (b *Button) toggle(e edges, now Millis) {
	if !e.press {
		return
	}
	if b.phase == PhaseOff {
		b.setPhase(PhaseOn, now)
	} else {
		b.setPhase(PhaseOff, now)
	}
}

// timer turns on for the service time. Presses while on are ignored
// unless Retrigger is set, in which case they restart the count.
func (b *Button) timer(e edges, now Millis) {
	if !e.press {
		return
	}
	switch b.phase {
	case PhaseOff:
		b.setPhase(PhaseTimed, now)
	case PhaseTimed:
		if b.cfg.Retrigger {
			b.since = now
		}
	}
}

// voidable turns on provisionally for the void time, then behaves as the
// configured settle mode.
func (b *Button) voidable(e edges, now Millis) {
	if e.press {
		switch b.phase {
		case PhaseOff:
			if b.cfg.VoidTime == 0 {
				b.setPhase(PhaseSettled, now)
			} else {
				b.setPhase(PhaseVoided, now)
			}
		case PhaseSettled:
			if b.cfg.Settle == SettleLatch {
				b.setPhase(PhaseSettledArmed, now)
			} else {
				b.setPhase(PhaseOff, now)
			}
		}
	}
	if e.release && b.phase == PhaseSettledArmed {
		b.setPhase(PhaseOff, now)
	}
}

// doubleAction latches like latch. A press held past the second delay
// enters the secondary mode, and its release leaves the output latched.
func (b *Button) doubleAction(e edges, now Millis) {
	if e.press {
		switch b.phase {
		case PhaseOff:
			b.setPhase(PhaseOn, now)
		case PhaseLatched:
			b.setPhase(PhaseUnlatchArmed, now)
		}
	}
	if e.release {
		switch b.phase {
		case PhaseOn, PhaseSecond:
			b.setPhase(PhaseLatched, now)
		case PhaseUnlatchArmed:
			b.setPhase(PhaseOff, now)
		}
	}
}

func (b *Button) startSecond(now Millis) {
	b.setPhase(PhaseSecond, now)
	if b.cfg.Kind == KindSlider && b.cfg.SliderSwapOnPress {
		b.up = !b.up
	}
}

// slide moves the slider value by one step for every SliderSpeed held.
// b.since marks the time already accounted for.
func (b *Button) slide(now Millis) {
	if b.cfg.Kind != KindSlider {
		return
	}
	steps := now.Since(b.since) / b.cfg.SliderSpeed
	if steps == 0 {
		return
	}
	b.since = b.since.Add(steps * b.cfg.SliderSpeed)

	delta := int64(steps) * int64(b.cfg.SliderStep)
	v := int64(b.value)
	if b.up {
		v += delta
	} else {
		v -= delta
	}

	lo, hi := int64(b.cfg.SliderMin), int64(b.cfg.SliderMax)
	switch {
	case v >= hi:
		v = hi
		if !b.cfg.SliderStopAtEnd {
			b.up = false
		}
	case v <= lo:
		v = lo
		if !b.cfg.SliderStopAtEnd {
			b.up = true
		}
	}
	b.value = uint16(v)
}

func (b *Button) setPhase(p Phase, now Millis) {
	b.phase = p
	b.since = now
}
