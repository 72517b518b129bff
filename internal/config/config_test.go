package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/sweeney/mpb-switch/internal/config"
	"github.com/sweeney/mpb-switch/internal/gpio"
	"github.com/sweeney/mpb-switch/internal/logic"
)

const sample = `
poll = "5ms"
broker = "tcp://localhost:1883"
http = ":8080"

[[button]]
name = "light"
pin = "17"
kind = "toggle"

[[button]]
name = "pump"
pin = "27"
pull = "down"
normally_open = false
kind = "timer"
debounce = "30ms"
service_time = "2m"
warning_percent = 10
pilot = true

[[button]]
name = "run"
pin = "22"
kind = "latch"
unlatch_by = "stop"

[[button]]
name = "stop"
pin = "23"
`

var _ = Describe("Config", func() {
	Describe("Parse", func() {
		var (
			c   *config.Config
			err error
		)

		BeforeEach(func() {
			c, err = config.Parse(sample)
		})

		It("accepts a valid file", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Buttons).To(HaveLen(4))
		})

		It("keeps the configured values", func() {
			Expect(c.Poll.Duration).To(Equal(5 * time.Millisecond))
			Expect(c.Broker).To(Equal("tcp://localhost:1883"))
			Expect(c.HTTP).To(Equal(":8080"))
		})

		It("fills in defaults", func() {
			Expect(c.Driver).To(Equal(gpio.DriverCdev))
			Expect(c.Chip).To(Equal(gpio.DefaultChip))
			Expect(c.TopicPrefix).To(Equal(config.DefaultTopicPrefix))
			Expect(c.Heartbeat.Duration).To(BeZero())
		})

		It("builds core configurations", func() {
			light := c.Core(0)
			Expect(light.Kind).To(Equal(logic.KindToggle))
			Expect(light.Debounce).To(Equal(logic.DefaultDebounce))

			pump := c.Core(1)
			Expect(pump.Kind).To(Equal(logic.KindTimer))
			Expect(pump.Debounce).To(Equal(30 * time.Millisecond))
			Expect(pump.ServiceTime).To(Equal(2 * time.Minute))
			Expect(pump.WarningPercent).To(Equal(10))
			Expect(pump.Pilot).To(BeTrue())
		})

		It("accepts a release debounce no finer than the poll", func() {
			c, err := config.Parse("poll = \"5ms\"\n[[button]]\nname = \"a\"\npin = \"4\"\nrelease_debounce = \"5ms\"")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core(0).ReleaseDebounce).To(Equal(5 * time.Millisecond))
		})

		It("builds two-action and slider configurations", func() {
			c, err := config.Parse(`
[[button]]
name = "fan"
pin = "5"
kind = "double_delayed"
second_delay = "1500ms"

[[button]]
name = "dimmer"
pin = "6"
kind = "slider"
slider_min = 10
slider_max = 200
slider_initial = 100
slider_step = 5
slider_speed = "50ms"
slider_stop_at_end = true
slider_swap_on_press = true
`)
			Expect(err).NotTo(HaveOccurred())

			fan := c.Core(0)
			Expect(fan.Kind).To(Equal(logic.KindDoubleDelayed))
			Expect(fan.SecondDelay).To(Equal(1500 * time.Millisecond))

			dimmer := c.Core(1)
			Expect(dimmer.Kind).To(Equal(logic.KindSlider))
			Expect(dimmer.SecondDelay).To(Equal(logic.DefaultSecondDelay))
			Expect(dimmer.SliderMin).To(BeEquivalentTo(10))
			Expect(dimmer.SliderMax).To(BeEquivalentTo(200))
			Expect(dimmer.SliderInitial).To(BeEquivalentTo(100))
			Expect(dimmer.SliderStep).To(BeEquivalentTo(5))
			Expect(dimmer.SliderSpeed).To(Equal(50 * time.Millisecond))
			Expect(dimmer.SliderStopAtEnd).To(BeTrue())
			Expect(dimmer.SliderSwapOnPress).To(BeTrue())
		})

		It("builds GPIO lines", func() {
			light := c.Line(c.Buttons[0])
			Expect(light.Pin).To(Equal("17"))
			Expect(light.Pull).To(Equal(gpio.PullUp))
			Expect(light.NormallyOpen).To(BeTrue())

			pump := c.Line(c.Buttons[1])
			Expect(pump.Pull).To(Equal(gpio.PullDown))
			Expect(pump.NormallyOpen).To(BeFalse())
		})
	})

	DescribeTable("rejects invalid files",
		func(doc string, reason string) {
			_, err := config.Parse(doc)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, logic.ErrInvalidConfig)).To(BeTrue(), "error %v", err)
			Expect(err.Error()).To(ContainSubstring(reason))
		},
		Entry("no buttons", `poll = "10ms"`, "no buttons"),
		Entry("unnamed button", "[[button]]\npin = \"4\"", "no name"),
		Entry("missing pin", "[[button]]\nname = \"a\"", "no pin"),
		Entry("duplicate name", "[[button]]\nname = \"a\"\npin = \"4\"\n[[button]]\nname = \"a\"\npin = \"5\"", "duplicate"),
		Entry("reserved name", "[[button]]\nname = \"*\"\npin = \"4\"", "reserved"),
		Entry("unknown pull", "[[button]]\nname = \"a\"\npin = \"4\"\npull = \"sideways\"", "unknown pull"),
		Entry("unknown kind", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"dimmer\"", "unknown kind"),
		Entry("coarse poll", "poll = \"50ms\"\n[[button]]\nname = \"a\"\npin = \"4\"", "coarser"),
		Entry("poll coarser than release debounce", "poll = \"10ms\"\n[[button]]\nname = \"a\"\npin = \"4\"\ndebounce = \"20ms\"\nrelease_debounce = \"2ms\"", "coarser than release_debounce 2ms"),
		Entry("service time beyond counter range", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"timer\"\nservice_time = \"1200h\"", "exceeds"),
		Entry("slider options on latch", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"latch\"\nslider_max = 10", "slider options"),
		Entry("unlatch_by on slider", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"slider\"\nunlatch_by = \"b\"\n[[button]]\nname = \"b\"\npin = \"5\"", "requires kind"),
		Entry("unknown driver", "driver = \"sysfs\"\n[[button]]\nname = \"a\"\npin = \"4\"", "unknown driver"),
		Entry("unknown key", "[[button]]\nname = \"a\"\npin = \"4\"\ncolour = \"red\"", "unknown keys"),
		Entry("unlatch_by on toggle", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"toggle\"\nunlatch_by = \"b\"\n[[button]]\nname = \"b\"\npin = \"5\"", "requires kind"),
		Entry("unlatch_by unknown", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"latch\"\nunlatch_by = \"b\"", "unknown button"),
		Entry("unlatch_by self", "[[button]]\nname = \"a\"\npin = \"4\"\nkind = \"latch\"\nunlatch_by = \"a\"", "itself"),
	)

	It("rejects a malformed duration", func() {
		_, err := config.Parse("poll = \"fast\"\n[[button]]\nname = \"a\"\npin = \"4\"")
		Expect(err).To(MatchError(ContainSubstring("decode config")))
	})

	Describe("Load", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "mpb-switch-config")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
		})

		It("reads a file from disk", func() {
			path := filepath.Join(dir, "mpb-switch.toml")
			Expect(os.WriteFile(path, []byte(sample), 0o644)).To(Succeed())

			c, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Buttons[2].UnlatchBy).To(Equal("stop"))
		})

		It("reports a missing file", func() {
			_, err := config.Load(filepath.Join(dir, "missing.toml"))
			Expect(err).To(HaveOccurred())
		})
	})
})
