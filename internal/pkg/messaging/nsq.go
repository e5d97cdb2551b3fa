package messaging

import (
	"context"
	"errors"
	"fmt"

	nsq "github.com/nsqio/go-nsq"
)

var ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")

type NSQConfig struct {
	ProducerAddr   string
	ProducerConfig *nsq.Config
}

type NSQ struct {
	producer *nsq.Producer
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ProducerAddr == "" {
		return nil, ErrNSQProducerAddrRequired
	}

	conf := cfg.ProducerConfig
	if conf == nil {
		conf = nsq.NewConfig()
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, conf)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)

	return &NSQ{producer: p}, nil
}

// Publish sends Body only. Key and Headers are dropped.
func (n *NSQ) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}
	if err := n.producer.Publish(topic, msg.Body); err != nil {
		return fmt.Errorf("messaging: nsq publish %s: %w", topic, err)
	}
	return nil
}

func (n *NSQ) Close() error {
	n.producer.Stop()
	return nil
}
