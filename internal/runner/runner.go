// Package runner owns the control loop: it samples every button once per
// tick, feeds the samples to the switch logic and fans the resulting
// events out to MQTT and the status tracker.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mpb-switch/internal/gpio"
	"github.com/sweeney/mpb-switch/internal/logic"
	"github.com/sweeney/mpb-switch/internal/mqtt"
	"github.com/sweeney/mpb-switch/internal/status"
)

var (
	ErrUnknownButton = errors.New("unknown button")
	ErrUnknownAction = errors.New("unknown action")
	ErrQueueFull     = errors.New("command queue full")
)

// All addresses every button in Control.
const All = "*"

// DefaultQueue is the command queue length used when Options.Queue is zero.
const DefaultQueue = 64

// Actions accepted by Control.
const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
	ActionVoid    = "void"
	ActionUnlatch = "unlatch"
	ActionReset   = "reset"
	ActionPause   = "pause"
	ActionResume  = "resume"
)

// Shutdown is the cancellation cause Run reports in the SHUTDOWN event.
type Shutdown struct {
	Reason string // e.g. "SIGTERM"
}

func (s Shutdown) Error() string { return "shutdown: " + s.Reason }

// Input binds a named button to the line it reads.
type Input struct {
	Name   string
	Pin    string
	Reader gpio.Reader
	Config logic.Config
	// UnlatchBy names another input whose output unlatches this one.
	UnlatchBy string
}

// Options configures a Runner. Publisher, Connection and Tracker may be nil.
type Options struct {
	Inputs     []Input
	Publisher  mqtt.Publisher
	Connection mqtt.ConnectionStatus
	Tracker    *status.Tracker

	// Clock drives the switch logic. Defaults to a SystemClock.
	Clock logic.Clock
	// Now stamps published events. Defaults to time.Now.
	Now func() time.Time

	// Heartbeat is the interval between HEARTBEAT events. Zero disables them.
	Heartbeat time.Duration
	Queue     int
}

type command struct {
	target int // index into buttons, -1 for all
	action string
}

type entry struct {
	Input
	button     *logic.Button
	unlatchBy  int
	readErrors int
	lastErr    error
}

// Runner is the owning control loop. Only the goroutine inside Run touches
// the buttons; other goroutines go through Control.
type Runner struct {
	opts    Options
	entries []*entry
	index   map[string]int
	cmds    chan command
	paused  bool
}

// New builds a Button for every input.
func New(o Options) (*Runner, error) {
	if o.Clock == nil {
		o.Clock = logic.NewSystemClock()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Queue <= 0 {
		o.Queue = DefaultQueue
	}

	r := &Runner{
		opts:  o,
		index: make(map[string]int, len(o.Inputs)),
		cmds:  make(chan command, o.Queue),
	}
	for i, in := range o.Inputs {
		if _, dup := r.index[in.Name]; dup {
			return nil, fmt.Errorf("duplicate button %q", in.Name)
		}
		b, err := logic.NewButton(in.Config)
		if err != nil {
			return nil, fmt.Errorf("button %q: %w", in.Name, err)
		}
		r.index[in.Name] = i
		r.entries = append(r.entries, &entry{Input: in, button: b, unlatchBy: -1})
	}
	for _, e := range r.entries {
		if e.UnlatchBy == "" {
			continue
		}
		j, ok := r.index[e.UnlatchBy]
		if !ok {
			return nil, fmt.Errorf("button %q: unlatch_by: %w %q", e.Name, ErrUnknownButton, e.UnlatchBy)
		}
		e.unlatchBy = j
	}
	return r, nil
}

// Buttons returns the initial tracker state of every button, in order.
func (r *Runner) Buttons() []status.Button {
	out := make([]status.Button, len(r.entries))
	for i, e := range r.entries {
		out[i] = r.state(e, 0)
	}
	return out
}

// SetTracker attaches a status tracker. It must be called before Run.
func (r *Runner) SetTracker(t *status.Tracker) {
	r.opts.Tracker = t
}

// Control queues action for the named button, or for every button when
// name is All. It is safe to call from any goroutine; the action is applied
// by the loop before the next sample.
func (r *Runner) Control(name, action string) error {
	target := -1
	if name != All {
		i, ok := r.index[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownButton, name)
		}
		target = i
	}

	switch action {
	case ActionEnable, ActionDisable, ActionVoid, ActionUnlatch, ActionReset, ActionPause, ActionResume:
	default:
		return fmt.Errorf("%w %q", ErrUnknownAction, action)
	}

	select {
	case r.cmds <- command{target: target, action: action}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run publishes STARTUP, then processes one sample per button for every
// value received on tick until ctx is done. A Shutdown cause on ctx names
// the reason in the SHUTDOWN event.
func (r *Runner) Run(ctx context.Context, tick <-chan time.Time) error {
	start := r.opts.Now()
	lastHeartbeat := start

	r.publishSystem("STARTUP", "", true)

	for {
		select {
		case <-ctx.Done():
			reason := "CANCELLED"
			var sd Shutdown
			if errors.As(context.Cause(ctx), &sd) {
				reason = sd.Reason
			}
			log.WithField("reason", reason).Info("shutting down")
			r.publishSystem("SHUTDOWN", reason, true)
			return nil

		case <-tick:
			r.applyCommands()
			if !r.paused {
				r.step()
			}
			r.refreshConnection()

			if r.opts.Heartbeat > 0 {
				if now := r.opts.Now(); now.Sub(lastHeartbeat) >= r.opts.Heartbeat {
					lastHeartbeat = now
					r.heartbeat(now.Sub(start))
				}
			}
		}
	}
}

func (r *Runner) applyCommands() {
	for {
		select {
		case c := <-r.cmds:
			r.apply(c)
		default:
			return
		}
	}
}

func (r *Runner) apply(c command) {
	switch c.action {
	case ActionPause:
		if !r.paused {
			log.Info("sampling paused")
		}
		r.paused = true
		r.setPaused()
		return
	case ActionResume:
		if r.paused {
			log.Info("sampling resumed")
			for _, e := range r.entries {
				e.button.Reset()
			}
		}
		r.paused = false
		r.setPaused()
		return
	}

	for i, e := range r.entries {
		if c.target >= 0 && c.target != i {
			continue
		}
		log.WithFields(log.Fields{"button": e.Name, "action": c.action}).Debug("control")
		switch c.action {
		case ActionEnable:
			e.button.Enable()
		case ActionDisable:
			e.button.Disable()
		case ActionVoid:
			e.button.VoidNow()
		case ActionUnlatch:
			e.button.Unlatch()
		case ActionReset:
			e.button.Reset()
		}
	}
}

// step samples every button once, in configuration order.
func (r *Runner) step() {
	now := r.opts.Clock.Now()

	for _, e := range r.entries {
		if e.unlatchBy >= 0 && r.entries[e.unlatchBy].button.IsOn() && e.button.IsLatched() {
			e.button.Unlatch()
		}

		active, err := e.Reader.Read()
		if err != nil {
			e.readErrors++
			if e.lastErr == nil || e.lastErr.Error() != err.Error() {
				log.WithFields(log.Fields{"button": e.Name, "pin": e.Pin}).WithError(err).Warn("gpio read error")
			}
			e.lastErr = err
			r.track(e, now)
			continue
		}
		if e.lastErr != nil {
			log.WithFields(log.Fields{"button": e.Name, "pin": e.Pin}).Info("gpio read recovered")
			e.lastErr = nil
		}

		events := e.button.Update(logic.Sample{Active: active, Time: now})
		for _, ev := range events {
			log.WithFields(log.Fields{
				"button": e.Name,
				"phase":  e.button.Phase(),
				"word":   formatWord(ev.Status.Pack()),
			}).Infof("event: %s", ev.Type)

			if r.opts.Publisher == nil {
				continue
			}
			err := r.opts.Publisher.Publish(mqtt.SwitchEvent{Timestamp: r.opts.Now(), Button: e.Name, Event: ev})
			if err != nil {
				// Don't stop the loop on publish failure
				log.WithField("button", e.Name).WithError(err).Warn("publish error")
			}
		}
		r.track(e, now)
	}
}

func (r *Runner) state(e *entry, now logic.Millis) status.Button {
	s := status.Button{
		Name:        e.Name,
		Pin:         e.Pin,
		Kind:        e.button.Config().Kind,
		Phase:       e.button.Phase(),
		Status:      e.button.Status(),
		Pressed:     e.button.IsPressed(),
		RemainingMs: e.button.Remaining(now).Milliseconds(),
		Counts:      e.button.Counts(),
		ReadErrors:  e.readErrors,
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

func (r *Runner) track(e *entry, now logic.Millis) {
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetButton(r.state(e, now))
	}
}

func (r *Runner) setPaused() {
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetPaused(r.paused)
	}
}

func (r *Runner) refreshConnection() {
	if r.opts.Tracker != nil && r.opts.Connection != nil {
		r.opts.Tracker.SetMQTTConnected(r.opts.Connection.IsConnected())
	}
}

func (r *Runner) heartbeat(uptime time.Duration) {
	fields := log.Fields{"uptime": uptime.Truncate(time.Second)}
	for _, e := range r.entries {
		c := e.button.Counts()
		fields[e.Name] = fmt.Sprintf("on=%d off=%d voids=%d", c.On, c.Off, c.Voids)
	}
	log.WithFields(fields).Info("heartbeat")
	r.publishSystem("HEARTBEAT", "", false)
}

func (r *Runner) publishSystem(event, reason string, retained bool) {
	if r.opts.Publisher == nil {
		return
	}
	se := mqtt.SystemEvent{
		Timestamp: r.opts.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if r.opts.Tracker != nil {
		r.refreshConnection()
		se.RawPayload = status.FormatStatusEvent(r.opts.Tracker.Snapshot(), event, reason)
	}
	if err := r.opts.Publisher.PublishSystem(se); err != nil {
		log.WithError(err).Warnf("failed to publish %s event", event)
		return
	}
	log.Debugf("published %s event", event)
}

// formatWord renders a status word at its full 32-bit width.
func formatWord(w uint32) string {
	return fmt.Sprintf("0x%08x", w)
}
