//go:build !linux

package gpio

import "fmt"

// ChipReader is not available on non-Linux platforms.
type ChipReader struct{}

// NewChipReader returns ErrUnsupported on non-Linux platforms.
func NewChipReader(l Line) (*ChipReader, error) {
	return nil, fmt.Errorf("%w: %s requires Linux", ErrUnsupported, DriverCdev)
}

func (r *ChipReader) Read() (bool, error) { return false, ErrUnsupported }

func (r *ChipReader) Close() error { return nil }
