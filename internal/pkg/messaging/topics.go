package messaging

import (
	"errors"
	"sync"
)

// topics lazily opens one per-topic handle, e.g. a kafka.Writer, and closes
// them all together.
type topics[T any] struct {
	open  func(topic string) T
	close func(T) error

	mu     sync.Mutex
	byName map[string]T
	closed bool
}

func newTopics[T any](open func(string) T, closeFn func(T) error) *topics[T] {
	return &topics[T]{open: open, close: closeFn, byName: map[string]T{}}
}

func (t *topics[T]) get(topic string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if t.closed {
		return zero, ErrClosed
	}
	h, ok := t.byName[topic]
	if !ok {
		h = t.open(topic)
		t.byName[topic] = h
	}
	return h, nil
}

// closeAll is idempotent.
func (t *topics[T]) closeAll() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handles := t.byName
	t.byName = nil
	t.mu.Unlock()

	var errs []error
	for _, h := range handles {
		errs = append(errs, t.close(h))
	}
	return errors.Join(errs...)
}
