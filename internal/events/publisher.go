package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// Publisher hands committed events to an external collaborator. Publish never
// returns an error: a failed publish is logged and dropped, the owning
// transaction has already committed.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

const subjectPrefix = "marketplace.events."

// NATSPublisher pushes events as JSON messages onto NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the given NATS server.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("marketplace-backend"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithField("event", event.Name()).Errorf("events: marshal failed: %v", err)
		return
	}

	if err := p.conn.Publish(subjectPrefix+event.Name(), payload); err != nil {
		logger.Log.WithField("event", event.Name()).Errorf("events: publish failed: %v", err)
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// LogPublisher is the stand-in used when no NATS server is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) {
	logger.Log.WithField("event", event.Name()).
		WithField("event_id", event.EventEnvelope().EventID).
		Info("domain event")
}
