// Package gpio reads push-button input lines with hardware abstraction.
// Three Linux drivers are available: the GPIO character device (gpiocdev),
// periph.io and go-rpio. The fake implementation allows testing without
// hardware.
package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported is returned when a driver cannot run on this platform.
var ErrUnsupported = errors.New("gpio: not supported on this platform")

// Reader reads one input line.
type Reader interface {
	// Read returns whether the button is pressed, already corrected for
	// pull direction and contact type.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverCdev   = "gpiocdev"
	DriverPeriph = "periph"
	DriverRpio   = "rpio"
)

// DefaultChip is the character device used when none is configured.
const DefaultChip = "gpiochip0"

// Pull is the bias applied to an input line.
type Pull string

const (
	PullUp   Pull = "up"
	PullDown Pull = "down"
	PullNone Pull = "none"
)

// ParsePull accepts "up", "down" or "none", case-insensitively. An empty
// string means up, the usual wiring for a button switching to ground.
func ParsePull(s string) (Pull, error) {
	switch p := Pull(strings.ToLower(s)); p {
	case "":
		return PullUp, nil
	case PullUp, PullDown, PullNone:
		return p, nil
	default:
		return "", fmt.Errorf("gpio: unknown pull %q", s)
	}
}

// Line describes one button input.
type Line struct {
	Driver string
	// Chip is the character device, gpiocdev only.
	Chip string
	// Pin is a line offset, or a periph pin name such as "GPIO17".
	Pin  string
	Pull Pull
	// NormallyOpen is true for a contact that closes when pressed.
	NormallyOpen bool
}

// Pressed converts a raw level into the press state. A pulled-up line is
// active low; a normally closed contact inverts the result.
func (l Line) Pressed(high bool) bool {
	pressed := high
	if l.Pull == PullUp {
		pressed = !high
	}
	if !l.NormallyOpen {
		pressed = !pressed
	}
	return pressed
}

func (l Line) offset() (int, error) {
	n, err := strconv.Atoi(l.Pin)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("gpio: pin %q is not a line offset", l.Pin)
	}
	return n, nil
}

// Open returns a Reader for l using its driver.
func Open(l Line) (Reader, error) {
	switch l.Driver {
	case "", DriverCdev:
		return NewChipReader(l)
	case DriverPeriph:
		return NewPeriphReader(l)
	case DriverRpio:
		return NewRpioReader(l)
	default:
		return nil, fmt.Errorf("gpio: unknown driver %q", l.Driver)
	}
}
