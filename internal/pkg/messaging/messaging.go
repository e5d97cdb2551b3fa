package messaging

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrTopicRequired is returned by Publish for an empty topic.
	ErrTopicRequired = errors.New("messaging: topic is required")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("messaging: publisher is closed")
)

// Publisher delivers push notifications to a broker. A topic is a Kafka
// topic, a NATS subject, an NSQ topic or a Pub/Sub topic id.
type Publisher interface {
	io.Closer
	Publish(ctx context.Context, topic string, msg Message) error
}

// Message is the broker neutral envelope. Key picks the Kafka partition.
// Headers become Kafka/NATS headers or Pub/Sub attributes. NSQ has neither
// and only carries Body.
type Message struct {
	Body    []byte
	Key     []byte
	Headers map[string]string
}

func checkPublish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	return nil
}
