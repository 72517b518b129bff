package mqtt

import log "github.com/sirupsen/logrus"

// message is a serialized publication held while the broker is unreachable.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent messages, oldest first, up to a fixed limit.
// Not safe for concurrent use.
type outbox struct {
	msgs    []message
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit}
}

func (o *outbox) add(m message) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			log.WithField("limit", o.limit).Warn("mqtt: outbox full, dropping oldest")
		}
		o.dropped++
		copy(o.msgs, o.msgs[1:])
		o.msgs[len(o.msgs)-1] = m
		return
	}
	o.msgs = append(o.msgs, m)
}

// take empties the outbox and reports how many messages were lost to overflow.
func (o *outbox) take() ([]message, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs = nil
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
