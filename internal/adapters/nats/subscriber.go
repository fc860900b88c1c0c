package natsadapter

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own connection. durable names
// the consumer so each process kind keeps its own delivery cursor.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeScheduleChanges calls handler once per schedules.changed message.
// A failing handler gets the message redelivered, up to three attempts.
func (s *Subscriber) SubscribeScheduleChanges(ctx context.Context, handler func(ctx context.Context) error) error {
	sub, err := s.js.Subscribe(SubjectSchedulesChanged, func(msg *nats.Msg) {
		if err := handler(ctx); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
