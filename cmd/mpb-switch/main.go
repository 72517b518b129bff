// Command mpb-switch turns momentary push buttons on GPIO lines into
// switches and publishes their state changes to MQTT.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/mpb-switch/internal/config"
	"github.com/sweeney/mpb-switch/internal/gpio"
	"github.com/sweeney/mpb-switch/internal/mqtt"
	"github.com/sweeney/mpb-switch/internal/runner"
	"github.com/sweeney/mpb-switch/internal/status"
	"github.com/sweeney/mpb-switch/internal/web"
)

var (
	configPath string
	logLevel   string

	mainCmd = &cobra.Command{
		Use:           "mpb-switch",
		Short:         "Push-button switch emulation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE:  runDaemon,
	}
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the buttons",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	printStateCmd = &cobra.Command{
		Use:   "print-state",
		Short: "Read every button once and exit",
		Args:  cobra.NoArgs,
		RunE:  runPrintState,
	}
)

func main() {
	mainCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/mpb-switch.toml", "Config path. The path to the TOML configuration file")
	mainCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides log_level in the config file)")
	mainCmd.AddCommand(runCmd, checkCmd, printStateCmd)

	if err := mainCmd.Execute(); err != nil {
		log.Fatalln("fatal:", err)
	}
}

// loadConfig reads the config file and applies the log level.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := c.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := setLogLevel(level); err != nil {
		return nil, err
	}
	return c, nil
}

func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(l)
	return nil
}

type openFunc func(gpio.Line) (gpio.Reader, error)

// openInputs opens a reader for every configured button. On error the
// readers opened so far are closed.
func openInputs(c *config.Config, open openFunc) ([]runner.Input, error) {
	inputs := make([]runner.Input, 0, len(c.Buttons))
	for i, b := range c.Buttons {
		rd, err := open(c.Line(b))
		if err != nil {
			closeInputs(inputs)
			return nil, fmt.Errorf("open button %q pin %s: %w", b.Name, b.Pin, err)
		}
		inputs = append(inputs, runner.Input{
			Name:      b.Name,
			Pin:       b.Pin,
			Reader:    rd,
			Config:    c.Core(i),
			UnlatchBy: b.UnlatchBy,
		})
	}
	return inputs, nil
}

func closeInputs(inputs []runner.Input) {
	for _, in := range inputs {
		if err := in.Reader.Close(); err != nil {
			log.WithField("button", in.Name).WithError(err).Warn("gpio close")
		}
	}
}

func statusConfig(c *config.Config) status.Config {
	return status.Config{
		PollMs:      c.Poll.Milliseconds(),
		HeartbeatMs: c.Heartbeat.Milliseconds(),
		Broker:      c.Broker,
		HTTPAddr:    c.HTTP,
		Driver:      c.Driver,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	inputs, err := openInputs(c, gpio.Open)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer closeInputs(inputs)

	opts := runner.Options{
		Inputs:    inputs,
		Heartbeat: c.Heartbeat.Duration,
	}

	var publisher *mqtt.RealPublisher
	if c.Broker != "" {
		publisher, err = mqtt.NewRealPublisher(mqtt.Options{
			Broker: c.Broker,
			Topics: mqtt.Topics{Prefix: c.TopicPrefix},
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
		opts.Connection = publisher
	} else {
		log.Warn("mqtt: no broker configured, events are only logged")
	}

	r, err := runner.New(opts)
	if err != nil {
		return err
	}
	// The tracker needs the initial button states, which come from the runner.
	tracker := status.NewTracker(time.Now(), statusConfig(c), r.Buttons())
	r.SetTracker(tracker)

	if publisher != nil {
		err := publisher.Subscribe(func(button, action string) {
			if err := r.Control(button, action); err != nil {
				log.WithFields(log.Fields{"button": button, "action": action}).WithError(err).Warn("mqtt: control rejected")
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe commands: %w", err)
		}
	}

	if c.HTTP != "" {
		srv := web.New(c.HTTP, tracker, r)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", c.HTTP)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	go watchSignals(ctx, cancel)

	log.WithFields(log.Fields{
		"poll":      c.Poll.Duration,
		"broker":    c.Broker,
		"heartbeat": c.Heartbeat.Duration,
		"driver":    c.Driver,
		"buttons":   len(inputs),
	}).Info("started")

	ticker := time.NewTicker(c.Poll.Duration)
	defer ticker.Stop()

	return r.Run(ctx, ticker.C)
}

// watchSignals cancels ctx with the name of the first SIGINT or SIGTERM.
func watchSignals(ctx context.Context, cancel context.CancelCauseFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case s := <-sigCh:
		log.Infof("received %v, shutting down", s)
		cancel(runner.Shutdown{Reason: signalName(s)})
	case <-ctx.Done():
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	return printButtons(cmd.OutOrStdout(), c)
}

// printButtons writes one row per button with its effective settings.
func printButtons(w io.Writer, c *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "poll=%v driver=%s broker=%q http=%q\n", c.Poll.Duration, c.Driver, c.Broker, c.HTTP)
	fmt.Fprintln(tw, "NAME\tPIN\tKIND\tDEBOUNCE\tDELAY\tSERVICE\tVOID\tDISABLED")
	for i, b := range c.Buttons {
		core := c.Core(i)
		disabled := "-"
		if core.StartDisabled {
			disabled = string(core.DisabledOutput)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%v\t%v\t%v\t%s\n",
			b.Name, b.Pin, core.Kind, core.Debounce, core.StartDelay, core.ServiceTime, core.VoidTime, disabled)
	}
	return tw.Flush()
}

func runPrintState(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	return printState(cmd.OutOrStdout(), c, gpio.Open)
}

// printState reads every button once and prints its press state.
func printState(w io.Writer, c *config.Config, open openFunc) error {
	inputs, err := openInputs(c, open)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer closeInputs(inputs)

	var failed []string
	for _, in := range inputs {
		pressed, err := in.Reader.Read()
		if err != nil {
			fmt.Fprintf(w, "%s (pin %s): error: %v\n", in.Name, in.Pin, err)
			failed = append(failed, in.Name)
			continue
		}
		fmt.Fprintf(w, "%s (pin %s): %s\n", in.Name, in.Pin, pressString(pressed))
	}
	if len(failed) > 0 {
		return fmt.Errorf("read gpio: %s", strings.Join(failed, ", "))
	}
	return nil
}

func pressString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
