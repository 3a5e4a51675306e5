package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes call events to "<subject>.<tool>".
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials the NATS server at url and returns a publisher on subject.
// An empty subject uses DefaultSubject.
func Connect(url, subject string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("agi-mcp"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("event bus disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("event bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to event bus at %s: %w", url, err)
	}
	return NewNATSPublisher(nc, subject), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Subject returns the subject an event for tool is published on.
func (p *NATSPublisher) Subject(tool string) string {
	return p.subject + "." + tool
}

// PublishCall implements Publisher.
func (p *NATSPublisher) PublishCall(_ context.Context, event CallEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding call event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(event.Tool), data); err != nil {
		return fmt.Errorf("publishing call event: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
