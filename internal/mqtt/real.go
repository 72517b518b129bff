package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// DefaultOutbox is how many messages are kept while disconnected.
const DefaultOutbox = 256

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
	// Outbox limits the messages held while disconnected. Zero uses DefaultOutbox.
	Outbox int
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are held and sent on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu      sync.Mutex
	pending *outbox
	handler CommandHandler
	// seen is set after the first successful connect
	seen bool
}

// NewRealPublisher creates a publisher for the given broker. The client
// keeps retrying in the background if the first attempt does not succeed
// within 10 seconds.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("no broker configured")
	}
	if o.ClientID == "" {
		o.ClientID = o.Topics.Prefix
	}
	if o.Outbox <= 0 {
		o.Outbox = DefaultOutbox
	}

	p := &RealPublisher{
		topics:  o.Topics,
		pending: newOutbox(o.Outbox),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(o.Topics.System(), string(will), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", o.Broker).Warn("mqtt: broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect subscribes to commands and flushes the outbox. It runs on
// every connect, including automatic reconnects.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	h := p.handler
	msgs, dropped := p.pending.take()
	reconnect := p.seen
	p.seen = true
	p.mu.Unlock()

	if h != nil {
		p.subscribe(c, h)
	}

	if reconnect {
		log.WithFields(log.Fields{"buffered": len(msgs), "dropped": dropped}).Info("mqtt: reconnected")
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(p.topics.System(), 1, false, payload)
		}
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) subscribe(c paho.Client, h CommandHandler) {
	token := c.Subscribe(p.topics.Commands(), 1, func(_ paho.Client, m paho.Message) {
		button, action, err := p.topics.ParseCommand(m.Topic(), m.Payload())
		if err != nil {
			log.WithError(err).Warn("mqtt: ignoring command")
			return
		}
		h(button, action)
	})
	if !token.WaitTimeout(5 * time.Second) {
		log.Warn("mqtt: subscribe timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.WithError(err).Warn("mqtt: subscribe failed")
	}
}

// Subscribe registers h for commands on every button's command topic.
// The subscription is renewed after each reconnect.
func (p *RealPublisher) Subscribe(h CommandHandler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		p.subscribe(p.client, h)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a switch event to the button's event topic.
func (p *RealPublisher) Publish(event SwitchEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(message{topic: p.topics.Events(event.Button), payload: payload})
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.send(message{topic: p.topics.System(), payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m message) error {
	// onConnect drains under mu, so the check and the add share the lock.
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.pending.add(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if n := p.pending.len(); n > 0 {
		log.WithField("messages", n).Warn("mqtt: closing with undelivered messages")
	}
	p.mu.Unlock()

	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
