package messaging

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

// PubSubConfig: a ready Client wins over ProjectID and ClientOptions.
type PubSubConfig struct {
	ProjectID     string
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
}

type PubSub struct {
	client     *pubsub.Client
	publishers *topics[*pubsub.Publisher]
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	client := cfg.Client
	if client == nil {
		if cfg.ProjectID == "" {
			return nil, ErrPubSubProjectIDRequired
		}

		var err error
		if client, err = pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...); err != nil {
			return nil, fmt.Errorf("messaging: pubsub client: %w", err)
		}
	}

	return &PubSub{
		client: client,
		publishers: newTopics(client.Publisher, func(p *pubsub.Publisher) error {
			p.Stop()
			return nil
		}),
	}, nil
}

// Publish waits for the server to acknowledge the message.
func (p *PubSub) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}

	pub, err := p.publishers.get(topic)
	if err != nil {
		return err
	}

	if _, err := pub.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: msg.Headers}).Get(ctx); err != nil {
		return fmt.Errorf("messaging: pubsub publish %s: %w", topic, err)
	}
	return nil
}

func (p *PubSub) Close() error {
	return errors.Join(p.publishers.closeAll(), p.client.Close())
}
