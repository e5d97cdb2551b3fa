package messaging

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Memory keeps messages in process. It backs local runs and tests.
type Memory struct {
	closed atomic.Bool

	mu   sync.RWMutex
	sent map[string][]Message
}

func NewMemory() *Memory {
	return &Memory{sent: map[string][]Message{}}
}

func (m *Memory) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	m.sent[topic] = append(m.sent[topic], msg)
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of what was published to topic, oldest first.
func (m *Memory) Messages(topic string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Message(nil), m.sent[topic]...)
}

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}
