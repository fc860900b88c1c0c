package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// Subjects used by the engine.
const (
	SubjectFramesPrefix     = "flightmap.frames."
	SubjectRoutesPrefix     = "flightmap.routes."
	SubjectSchedulesChanged = "schedules.changed"
)

// Publisher implements ports.EventPublisher using NATS. Frames go over core
// NATS since only the latest one matters; route sets and schedule changes go
// through JetStream so late subscribers can catch up.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:              "FLIGHTMAP_ROUTES",
			Subjects:          []string{SubjectRoutesPrefix + ">"},
			Retention:         nats.LimitsPolicy,
			MaxMsgsPerSubject: 1,
			MaxAge:            1 * time.Hour,
			Storage:           nats.FileStorage,
		},
		{
			Name:      "SCHEDULES",
			Subjects:  []string{SubjectSchedulesChanged},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishRoutes stores the current route set of a session.
func (p *Publisher) PublishRoutes(ctx context.Context, sessionID string, routes []domain.ResolvedRoute) error {
	if routes == nil {
		routes = []domain.ResolvedRoute{}
	}
	data, err := json.Marshal(routes)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectRoutesPrefix+sessionID, data, nats.Context(ctx))
	return err
}

// PublishFrame broadcasts one animation frame.
func (p *Publisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectFramesPrefix+frame.SessionID, data)
}

// PublishScheduleChanged signals that the flight schedule was edited.
func (p *Publisher) PublishScheduleChanged(ctx context.Context) error {
	_, err := p.js.Publish(SubjectSchedulesChanged, nil, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is usable.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return p.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("flightmap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
