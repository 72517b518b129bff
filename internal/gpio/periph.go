package gpio

import (
	"fmt"

	pgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// PeriphReader reads a line through periph.io's host drivers.
type PeriphReader struct {
	line Line
	pin  pgpio.PinIO
}

// NewPeriphReader initializes the host drivers and configures the pin
// named by l.Pin as an input. Edge detection is left off; the line is polled.
func NewPeriphReader(l Line) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	pin := gpioreg.ByName(l.Pin)
	if pin == nil {
		return nil, fmt.Errorf("gpio: no pin named %q", l.Pin)
	}
	if err := pin.In(periphPull(l.Pull), pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure pin %s: %w", l.Pin, err)
	}

	return &PeriphReader{line: l, pin: pin}, nil
}

func periphPull(p Pull) pgpio.Pull {
	switch p {
	case PullDown:
		return pgpio.PullDown
	case PullNone:
		return pgpio.Float
	default:
		return pgpio.PullUp
	}
}

// Read returns the press state of the line.
func (r *PeriphReader) Read() (bool, error) {
	return r.line.Pressed(r.pin.Read() == pgpio.High), nil
}

// Close stops any activity on the pin.
func (r *PeriphReader) Close() error {
	if err := r.pin.Halt(); err != nil {
		return fmt.Errorf("halt pin %s: %w", r.line.Pin, err)
	}
	return nil
}
