//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// ChipReader reads a line through the Linux GPIO character device.
type ChipReader struct {
	line  Line
	chip  *gpiocdev.Chip
	input *gpiocdev.Line
}

// NewChipReader requests l as an input with its configured bias.
func NewChipReader(l Line) (*ChipReader, error) {
	offset, err := l.offset()
	if err != nil {
		return nil, err
	}
	name := l.Chip
	if name == "" {
		name = DefaultChip
	}

	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}

	input, err := chip.RequestLine(offset, gpiocdev.AsInput, bias(l.Pull))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}

	return &ChipReader{line: l, chip: chip, input: input}, nil
}

func bias(p Pull) gpiocdev.LineReqOption {
	switch p {
	case PullDown:
		return gpiocdev.WithPullDown
	case PullNone:
		return gpiocdev.WithBiasDisabled
	default:
		return gpiocdev.WithPullUp
	}
}

// Read returns the press state of the line.
func (r *ChipReader) Read() (bool, error) {
	v, err := r.input.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %s: %w", r.line.Pin, err)
	}
	return r.line.Pressed(v == 1), nil
}

// Close returns the line to input with pull-down, matching the Pi boot
// defaults, before releasing it.
func (r *ChipReader) Close() error {
	var errs []error

	if r.input != nil {
		if err := r.input.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %s: %w", r.line.Pin, err))
		}
		if err := r.input.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %s: %w", r.line.Pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
