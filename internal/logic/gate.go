package logic

// status computes the published flags from the phase, passing them
// through the disable gate.
func (b *Button) status(now Millis) Status {
	s := Status{Enabled: b.enabled}

	if !b.enabled && b.cfg.DisabledOutput != DisabledHold {
		s.On = b.cfg.DisabledOutput == DisabledOn
	} else {
		s.On = b.phase.on()
		s.Voided = b.phase == PhaseVoided
		s.Latched = b.phase == PhaseLatched || b.phase == PhaseUnlatchArmed
		s.Warning = b.warning(now)
		s.Second = b.phase == PhaseSecond
	}
	s.Value = b.value

	s.Pilot = b.cfg.Pilot && !s.On
	return s
}

func (b *Button) warning(now Millis) bool {
	if b.cfg.WarningPercent == 0 || b.phase != PhaseTimed {
		return false
	}
	return now.Since(b.since) >= b.cfg.ServiceTime-b.cfg.warningLead()
}

// applyGate handles enable and disable requests. Toggling the gate drops
// whatever the input stages were timing, so the first sample after a
// change starts from scratch.
func (b *Button) applyGate(req requests) {
	switch {
	case req.disable && b.enabled:
		b.enabled = false
		b.deb.reset()
		b.delay.reset()
		if b.cfg.DisabledOutput != DisabledHold {
			b.phase = PhaseOff
		}
	case req.enable && !b.enabled:
		b.enabled = true
		b.deb.reset()
		b.delay.reset()
		b.forgetHeldPress()
	}
}

// forgetHeldPress moves phases that wait for the release of a press the
// input stages no longer know about to the phase that press left behind.
func (b *Button) forgetHeldPress() {
	switch b.phase {
	case PhaseOn:
		switch b.cfg.Kind {
		case KindMomentary:
			b.phase = PhaseOff
		case KindLatch, KindDoubleDelayed, KindSlider:
			b.phase = PhaseLatched
		}
	case PhaseUnlatchArmed, PhaseSecond:
		b.phase = PhaseLatched
	case PhaseSettledArmed:
		b.phase = PhaseSettled
	}
}
