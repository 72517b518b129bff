package logic

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultDebounce is the shortest settle time a mechanical push button
// reliably needs. It is used when no window is configured.
const DefaultDebounce = 20 * time.Millisecond

// MaxDuration is the longest configurable time. Elapsed times come from a
// 32-bit millisecond counter and must stay below half its range.
const MaxDuration = time.Duration(math.MaxInt32) * time.Millisecond

// DefaultSecondDelay is how long a DOUBLE_DELAYED or SLIDER press must be
// held past its start before the secondary mode begins.
const DefaultSecondDelay = 2 * time.Second

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid config")

// Kind selects the behavior a Button applies to its filtered edges.
type Kind string

const (
	KindMomentary Kind = "MOMENTARY"
	KindLatch     Kind = "LATCH"
	KindToggle    Kind = "TOGGLE"
	KindTimer     Kind = "TIMER"
	KindVoidable  Kind = "VOIDABLE"
	// KindDoubleDelayed is a latch with a second output raised while the
	// press is held longer than SecondDelay.
	KindDoubleDelayed Kind = "DOUBLE_DELAYED"
	// KindSlider is a latch whose long press ramps a value.
	KindSlider Kind = "SLIDER"
)

// DisabledOutput is what the output reads while the button is disabled.
type DisabledOutput string

const (
	DisabledOff  DisabledOutput = "OFF"
	DisabledOn   DisabledOutput = "ON"
	DisabledHold DisabledOutput = "HOLD"
)

// SettleMode is how a settled voidable button is turned off again.
type SettleMode string

const (
	// SettleToggle turns off on the next press.
	SettleToggle SettleMode = "TOGGLE"
	// SettleLatch turns off on the release that follows the next press.
	SettleLatch SettleMode = "LATCH"
)

// Config holds the timing and behavior of one Button.
// Zero values mean "feature off", see Normalize.
type Config struct {
	Kind Kind

	// Debounce is how long a raw press must persist to be accepted.
	Debounce time.Duration
	// ReleaseDebounce is how long a raw release must persist. Zero uses Debounce.
	ReleaseDebounce time.Duration
	// StartDelay holds back an accepted press until it has been asserted this long.
	StartDelay time.Duration

	// ServiceTime is how long a TIMER button stays on.
	ServiceTime time.Duration
	// Retrigger restarts the service time on every press while on.
	Retrigger bool
	// WarningPercent raises the warning flag for the last part of the service time.
	WarningPercent int
	// Pilot raises the pilot flag while the output is off.
	Pilot bool

	// VoidTime is how long a VOIDABLE button stays provisional after turning on.
	VoidTime time.Duration
	// Settle selects how a settled VOIDABLE button turns off.
	Settle SettleMode

	// SecondDelay is how long a DOUBLE_DELAYED or SLIDER press is held,
	// after it turned the output on, before the secondary mode starts.
	SecondDelay time.Duration

	// Slider range. A zero SliderMax means the full uint16 range.
	SliderMin uint16
	SliderMax uint16
	// SliderInitial is the starting value, clamped into the range.
	SliderInitial uint16
	// SliderStep is added per SliderSpeed of holding. Zero means 1.
	SliderStep uint16
	// SliderSpeed is the time per step. Zero means 1ms.
	SliderSpeed time.Duration
	// SliderStopAtEnd keeps the direction when the value hits a limit;
	// by default it reverses.
	SliderStopAtEnd bool
	// SliderSwapOnPress reverses the direction every time sliding starts.
	SliderSwapOnPress bool

	StartDisabled  bool
	DisabledOutput DisabledOutput
}

// Normalize validates c and fills in defaults.
func (c Config) Normalize() (Config, error) {
	switch c.Kind {
	case "":
		c.Kind = KindMomentary
	case KindMomentary, KindLatch, KindToggle, KindTimer, KindVoidable, KindDoubleDelayed, KindSlider:
	default:
		return c, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, c.Kind)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"debounce", c.Debounce},
		{"release debounce", c.ReleaseDebounce},
		{"start delay", c.StartDelay},
		{"service time", c.ServiceTime},
		{"void time", c.VoidTime},
		{"second delay", c.SecondDelay},
		{"slider speed", c.SliderSpeed},
	}
	for _, d := range durations {
		if d.d < 0 {
			return c, fmt.Errorf("%w: %s %v is negative", ErrInvalidConfig, d.name, d.d)
		}
		if d.d > MaxDuration {
			return c, fmt.Errorf("%w: %s %v exceeds %v", ErrInvalidConfig, d.name, d.d, MaxDuration)
		}
	}

	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.ReleaseDebounce == 0 {
		c.ReleaseDebounce = c.Debounce
	}

	if c.Kind != KindTimer {
		if c.ServiceTime != 0 || c.Retrigger || c.WarningPercent != 0 || c.Pilot {
			return c, fmt.Errorf("%w: service time options require kind %s", ErrInvalidConfig, KindTimer)
		}
	}
	if c.WarningPercent < 0 || c.WarningPercent > 100 {
		return c, fmt.Errorf("%w: warning percent %d outside 0..100", ErrInvalidConfig, c.WarningPercent)
	}

	if c.Kind != KindVoidable {
		if c.VoidTime != 0 || c.Settle != "" {
			return c, fmt.Errorf("%w: void options require kind %s", ErrInvalidConfig, KindVoidable)
		}
	} else {
		switch c.Settle {
		case "":
			c.Settle = SettleToggle
		case SettleToggle, SettleLatch:
		default:
			return c, fmt.Errorf("%w: unknown settle mode %q", ErrInvalidConfig, c.Settle)
		}
	}

	if err := c.normalizeSecond(); err != nil {
		return c, err
	}

	switch c.DisabledOutput {
	case "":
		c.DisabledOutput = DisabledOff
	case DisabledOff, DisabledOn, DisabledHold:
	default:
		return c, fmt.Errorf("%w: unknown disabled output %q", ErrInvalidConfig, c.DisabledOutput)
	}

	return c, nil
}

// twoAction reports whether the kind has a secondary long-press mode.
func (c Config) twoAction() bool {
	return c.Kind == KindDoubleDelayed || c.Kind == KindSlider
}

func (c *Config) normalizeSecond() error {
	if !c.twoAction() {
		if c.SecondDelay != 0 {
			return fmt.Errorf("%w: second delay requires kind %s or %s", ErrInvalidConfig, KindDoubleDelayed, KindSlider)
		}
	} else if c.SecondDelay == 0 {
		c.SecondDelay = DefaultSecondDelay
	}

	slider := c.SliderMin != 0 || c.SliderMax != 0 || c.SliderInitial != 0 || c.SliderStep != 0 ||
		c.SliderSpeed != 0 || c.SliderStopAtEnd || c.SliderSwapOnPress
	if c.Kind != KindSlider {
		if slider {
			return fmt.Errorf("%w: slider options require kind %s", ErrInvalidConfig, KindSlider)
		}
		return nil
	}

	if c.SliderMax == 0 {
		c.SliderMax = math.MaxUint16
	}
	if c.SliderMin >= c.SliderMax {
		return fmt.Errorf("%w: slider min %d is not below max %d", ErrInvalidConfig, c.SliderMin, c.SliderMax)
	}
	if c.SliderInitial < c.SliderMin {
		c.SliderInitial = c.SliderMin
	}
	if c.SliderInitial > c.SliderMax {
		c.SliderInitial = c.SliderMax
	}
	if c.SliderStep == 0 {
		c.SliderStep = 1
	}
	if c.SliderSpeed == 0 {
		c.SliderSpeed = time.Millisecond
	}
	if c.SliderSpeed < time.Millisecond {
		return fmt.Errorf("%w: slider speed %v is below 1ms", ErrInvalidConfig, c.SliderSpeed)
	}
	return nil
}

// warningLead is how much of the service time is left when the warning flag rises.
func (c Config) warningLead() time.Duration {
	return c.ServiceTime * time.Duration(c.WarningPercent) / 100
}
