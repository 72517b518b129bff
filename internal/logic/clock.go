package logic

import "time"

// Millis is a free-running millisecond counter that wraps at 2^32.
// Two readings are only ever compared through Since, which subtracts in
// the counter's own modulus, so a wrap between them is harmless.
type Millis uint32

// Since returns the time elapsed from start to m.
func (m Millis) Since(start Millis) time.Duration {
	return time.Duration(uint32(m-start)) * time.Millisecond
}

// Add returns m advanced by d, wrapping as the hardware counter would.
func (m Millis) Add(d time.Duration) Millis {
	return m + Millis(uint32(d/time.Millisecond))
}

// Clock supplies the current counter value.
type Clock interface {
	Now() Millis
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() Millis

// Now calls f.
func (f ClockFunc) Now() Millis { return f() }

// SystemClock counts milliseconds since it was created, using the
// monotonic reading carried by time.Time.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now returns the elapsed milliseconds truncated to 32 bits.
func (c *SystemClock) Now() Millis {
	return Millis(uint32(time.Since(c.origin) / time.Millisecond))
}
