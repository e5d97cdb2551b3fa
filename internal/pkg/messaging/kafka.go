package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
	// WriterConfig is a template. Topic is always replaced, Brokers, Dialer
	// and Balancer are filled in when empty.
	WriterConfig *kafka.WriterConfig
}

// Kafka keys messages by client id so one client's notifications stay in
// order on a single partition.
type Kafka struct {
	writers *topics[*kafka.Writer]
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	var tmpl kafka.WriterConfig
	if cfg.WriterConfig != nil {
		tmpl = *cfg.WriterConfig
	}
	if len(tmpl.Brokers) == 0 {
		tmpl.Brokers = append([]string(nil), cfg.Brokers...)
	}
	if tmpl.Dialer == nil {
		tmpl.Dialer = cfg.Dialer
	}
	if tmpl.Balancer == nil {
		tmpl.Balancer = &kafka.Hash{}
	}

	return &Kafka{writers: newTopics(
		func(topic string) *kafka.Writer {
			wc := tmpl
			wc.Topic = topic
			return kafka.NewWriter(wc)
		},
		(*kafka.Writer).Close,
	)}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}

	w, err := k.writers.get(topic)
	if err != nil {
		return err
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for name, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: name, Value: []byte(v)})
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("messaging: kafka write %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writers.closeAll() }
