package logic

import "time"

// debouncer tracks the confirmed press state of one input line.
type debouncer struct {
	pressWindow   time.Duration
	releaseWindow time.Duration

	// Current confirmed state
	stable bool
	// Whether a change away from stable is being timed
	pending bool
	// Time when the pending change was first observed
	pendingSince Millis
}

func newDebouncer(press, release time.Duration) debouncer {
	return debouncer{pressWindow: press, releaseWindow: release}
}

// step feeds one raw sample and reports whether the confirmed state flipped.
// The hold time is measured from the first differing sample, so a tick that
// arrives after the window has already elapsed commits at once.
func (d *debouncer) step(raw bool, now Millis) bool {
	if raw == d.stable {
		// Reverted before the window elapsed, drop the tentative change
		d.pending = false
		return false
	}

	if !d.pending {
		d.pending = true
		d.pendingSince = now
	}

	window := d.releaseWindow
	if raw {
		window = d.pressWindow
	}
	if now.Since(d.pendingSince) < window {
		return false
	}

	d.stable = raw
	d.pending = false
	return true
}

// confirmedAt is when the last committed change became valid in ideal time:
// its first observation plus the window it had to survive.
func (d *debouncer) confirmedAt() Millis {
	window := d.releaseWindow
	if d.stable {
		window = d.pressWindow
	}
	return d.pendingSince.Add(window)
}

func (d *debouncer) reset() {
	d.stable = false
	d.pending = false
	d.pendingSince = 0
}
