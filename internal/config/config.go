// Package config loads the daemon configuration from a TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/mpb-switch/internal/gpio"
	"github.com/sweeney/mpb-switch/internal/logic"
)

// Defaults applied by Validate.
const (
	DefaultPoll        = 10 * time.Millisecond
	DefaultTopicPrefix = "mpb-switch"
)

// Duration is a time.Duration written as a string such as "20ms" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the daemon configuration.
type Config struct {
	// Poll is the sampling cadence shared by every button.
	Poll Duration `toml:"poll"`
	// Heartbeat is the interval between heartbeat events. Zero disables them.
	Heartbeat Duration `toml:"heartbeat"`

	// Broker is the MQTT broker URL. Empty disables MQTT.
	Broker      string `toml:"broker"`
	TopicPrefix string `toml:"topic_prefix"`
	// HTTP is the status server listen address. Empty disables it.
	HTTP string `toml:"http"`

	Driver   string `toml:"driver"`
	Chip     string `toml:"chip"`
	LogLevel string `toml:"log_level"`

	Buttons []Button `toml:"button"`

	// Filled in by Validate, in file order.
	cores []logic.Config
}

// Button is one [[button]] table.
type Button struct {
	Name         string `toml:"name"`
	Pin          string `toml:"pin"`
	Pull         string `toml:"pull"`
	NormallyOpen *bool  `toml:"normally_open"`

	Kind            string   `toml:"kind"`
	Debounce        Duration `toml:"debounce"`
	ReleaseDebounce Duration `toml:"release_debounce"`
	StartDelay      Duration `toml:"start_delay"`

	ServiceTime    Duration `toml:"service_time"`
	Retrigger      bool     `toml:"retrigger"`
	WarningPercent int      `toml:"warning_percent"`
	Pilot          bool     `toml:"pilot"`

	VoidTime Duration `toml:"void_time"`
	Settle   string   `toml:"settle"`

	SecondDelay       Duration `toml:"second_delay"`
	SliderMin         uint16   `toml:"slider_min"`
	SliderMax         uint16   `toml:"slider_max"`
	SliderInitial     uint16   `toml:"slider_initial"`
	SliderStep        uint16   `toml:"slider_step"`
	SliderSpeed       Duration `toml:"slider_speed"`
	SliderStopAtEnd   bool     `toml:"slider_stop_at_end"`
	SliderSwapOnPress bool     `toml:"slider_swap_on_press"`

	StartDisabled  bool   `toml:"start_disabled"`
	DisabledOutput string `toml:"disabled_output"`

	// UnlatchBy names a button whose output unlatches this LATCH button.
	UnlatchBy string `toml:"unlatch_by"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Parse decodes and validates a configuration held in memory.
func Parse(data string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys %s", logic.ErrInvalidConfig, strings.Join(names, ", "))
}

// Validate fills in defaults and checks every button.
func (c *Config) Validate() error {
	if c.Poll.Duration == 0 {
		c.Poll.Duration = DefaultPoll
	}
	if c.Poll.Duration < 0 {
		return invalid("poll %v is negative", c.Poll.Duration)
	}
	if c.Heartbeat.Duration < 0 {
		return invalid("heartbeat %v is negative", c.Heartbeat.Duration)
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.Driver == "" {
		c.Driver = gpio.DriverCdev
	}
	switch c.Driver {
	case gpio.DriverCdev, gpio.DriverPeriph, gpio.DriverRpio:
	default:
		return invalid("unknown driver %q", c.Driver)
	}
	if c.Chip == "" {
		c.Chip = gpio.DefaultChip
	}

	if len(c.Buttons) == 0 {
		return invalid("no buttons configured")
	}

	c.cores = make([]logic.Config, len(c.Buttons))
	names := make(map[string]int, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Name == "" {
			return invalid("button #%d has no name", i+1)
		}
		if b.Name == "*" || strings.Contains(b.Name, "/") {
			return invalid("button name %q is reserved", b.Name)
		}
		if _, dup := names[b.Name]; dup {
			return invalid("duplicate button %q", b.Name)
		}
		names[b.Name] = i

		if b.Pin == "" {
			return invalid("button %q has no pin", b.Name)
		}
		if _, err := gpio.ParsePull(b.Pull); err != nil {
			return invalid("button %q: %v", b.Name, err)
		}

		core, err := b.core()
		if err != nil {
			return fmt.Errorf("button %q: %w", b.Name, err)
		}
		window, name := core.Debounce, "debounce"
		if core.ReleaseDebounce < window {
			window, name = core.ReleaseDebounce, "release_debounce"
		}
		if c.Poll.Duration > window {
			return invalid("button %q: poll %v is coarser than %s %v", b.Name, c.Poll.Duration, name, window)
		}
		c.cores[i] = core
	}

	for _, b := range c.Buttons {
		if b.UnlatchBy == "" {
			continue
		}
		if c.cores[names[b.Name]].Kind != logic.KindLatch {
			return invalid("button %q: unlatch_by requires kind %s", b.Name, logic.KindLatch)
		}
		if b.UnlatchBy == b.Name {
			return invalid("button %q unlatches itself", b.Name)
		}
		if _, ok := names[b.UnlatchBy]; !ok {
			return invalid("button %q: unlatch_by names unknown button %q", b.Name, b.UnlatchBy)
		}
	}
	return nil
}

// Core returns the validated core configuration of the i-th button.
func (c *Config) Core(i int) logic.Config {
	return c.cores[i]
}

// Line returns the GPIO line of b using the daemon-wide driver and chip.
func (c *Config) Line(b Button) gpio.Line {
	pull, _ := gpio.ParsePull(b.Pull)
	no := true
	if b.NormallyOpen != nil {
		no = *b.NormallyOpen
	}
	return gpio.Line{
		Driver:       c.Driver,
		Chip:         c.Chip,
		Pin:          b.Pin,
		Pull:         pull,
		NormallyOpen: no,
	}
}

func (b Button) core() (logic.Config, error) {
	return logic.Config{
		Kind:            logic.Kind(strings.ToUpper(b.Kind)),
		Debounce:        b.Debounce.Duration,
		ReleaseDebounce: b.ReleaseDebounce.Duration,
		StartDelay:      b.StartDelay.Duration,
		ServiceTime:     b.ServiceTime.Duration,
		Retrigger:       b.Retrigger,
		WarningPercent:  b.WarningPercent,
		Pilot:           b.Pilot,
		VoidTime:        b.VoidTime.Duration,
		Settle:          logic.SettleMode(strings.ToUpper(b.Settle)),

		SecondDelay:       b.SecondDelay.Duration,
		SliderMin:         b.SliderMin,
		SliderMax:         b.SliderMax,
		SliderInitial:     b.SliderInitial,
		SliderStep:        b.SliderStep,
		SliderSpeed:       b.SliderSpeed.Duration,
		SliderStopAtEnd:   b.SliderStopAtEnd,
		SliderSwapOnPress: b.SliderSwapOnPress,

		StartDisabled:  b.StartDisabled,
		DisabledOutput: logic.DisabledOutput(strings.ToUpper(b.DisabledOutput)),
	}.Normalize()
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", logic.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
