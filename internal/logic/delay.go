package logic

import "time"

// edges are the filtered transitions handed to a behavior in one tick.
type edges struct {
	press   bool
	release bool
}

// startDelay holds back confirmed presses until they have lasted delay.
// Only the press edge is delayed; a release passes straight through once
// the press it ends has been let through.
type startDelay struct {
	delay time.Duration

	waiting    bool
	waitFrom   Millis
	actionable bool
}

// step takes the debounced level, whether it changed this tick and when
// that change was confirmed.
func (f *startDelay) step(pressed, changed bool, confirmed, now Millis) edges {
	var e edges

	if changed {
		if pressed {
			f.waiting = true
			f.waitFrom = confirmed
		} else {
			if f.actionable {
				e.release = true
			}
			// A release inside the delay window cancels without a trace
			f.waiting = false
			f.actionable = false
			return e
		}
	}

	if f.waiting && now.Since(f.waitFrom) >= f.delay {
		f.waiting = false
		f.actionable = true
		e.press = true
	}
	return e
}

func (f *startDelay) reset() {
	f.waiting = false
	f.actionable = false
}
