package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

var ErrNATSURLRequired = errors.New("messaging: nats url is required")

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

type NATS struct {
	conn *nats.Conn
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Publish flushes before returning so a push is on the server when the
// auth request is reported created.
func (n *NATS) Publish(ctx context.Context, subject string, msg Message) error {
	if err := checkPublish(ctx, subject); err != nil {
		return err
	}

	m := nats.NewMsg(subject)
	m.Data = msg.Body
	for name, v := range msg.Headers {
		m.Header.Set(name, v)
	}

	if err := n.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("messaging: nats publish %s: %w", subject, err)
	}
	return n.conn.FlushWithContext(ctx)
}

// Close drains pending messages first.
func (n *NATS) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	return n.conn.Drain()
}
