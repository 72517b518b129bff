//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpio maps the whole GPIO block once per process.
var (
	rpioMu    sync.Mutex
	rpioUsers int
)

// RpioReader reads a line through go-rpio's memory-mapped registers.
type RpioReader struct {
	line Line
	pin  rpio.Pin
}

// NewRpioReader maps the GPIO registers on first use and sets the pin to input.
func NewRpioReader(l Line) (*RpioReader, error) {
	offset, err := l.offset()
	if err != nil {
		return nil, err
	}

	rpioMu.Lock()
	defer rpioMu.Unlock()
	if rpioUsers == 0 {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("open rpio: %w", err)
		}
	}
	rpioUsers++

	pin := rpio.Pin(offset)
	pin.Input()
	switch l.Pull {
	case PullDown:
		pin.PullDown()
	case PullNone:
		pin.PullOff()
	default:
		pin.PullUp()
	}

	return &RpioReader{line: l, pin: pin}, nil
}

// Read returns the press state of the line.
func (r *RpioReader) Read() (bool, error) {
	return r.line.Pressed(r.pin.Read() == rpio.High), nil
}

// Close unmaps the registers once the last reader is closed.
func (r *RpioReader) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()
	rpioUsers--
	if rpioUsers > 0 {
		return nil
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close rpio: %w", err)
	}
	return nil
}
