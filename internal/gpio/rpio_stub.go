//go:build !linux

package gpio

import "fmt"

// RpioReader is not available on non-Linux platforms.
type RpioReader struct{}

// NewRpioReader returns ErrUnsupported on non-Linux platforms.
func NewRpioReader(l Line) (*RpioReader, error) {
	return nil, fmt.Errorf("%w: %s requires Linux", ErrUnsupported, DriverRpio)
}

func (r *RpioReader) Read() (bool, error) { return false, ErrUnsupported }

func (r *RpioReader) Close() error { return nil }
