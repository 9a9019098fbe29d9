package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes each event on "<prefix>.<type>", so subscribers can
// filter with wildcards such as "motorworks.payment.>".
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

// NewNATSPublisher connects to url and publishes under prefix.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("motorworks"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) subject(e Event) string {
	if p.prefix == "" {
		return e.Type
	}
	return p.prefix + "." + e.Type
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	data, err := e.payload()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject(e), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
