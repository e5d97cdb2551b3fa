// Package idempotency runs side effects, such as callback delivery, at most
// once per key.
//
// Marks live in a cache.Cache: process local with the memory driver, shared
// between replicas with redis.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
)

const (
	keyPrefix = "idempotency:"

	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Hour
)

// ErrDuplicate matches every *DuplicateError.
var ErrDuplicate = errors.New("idempotency: key already used")

// ErrCorruptState is returned when the stored mark is not a State.
var ErrCorruptState = errors.New("idempotency: unreadable state")

type State string

const (
	StateRunning   State = "in_progress"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DuplicateError reports what happened to the earlier run of a key.
type DuplicateError struct {
	Key   string
	State State
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("idempotency: %s is %s", e.Key, e.State)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

type Option func(*options)

type options struct {
	lock time.Duration
	ttl  time.Duration
}

// WithLockDuration bounds how long a crashed run keeps the key locked.
func WithLockDuration(d time.Duration) Option { return func(o *options) { o.lock = d } }

// WithStateTTL sets how long the final mark is remembered.
func WithStateTTL(d time.Duration) Option { return func(o *options) { o.ttl = d } }

type Guard struct {
	store cache.Cache
}

func New(store cache.Cache) *Guard {
	return &Guard{store: store}
}

// Exec runs fn unless key was used before, in which case it returns a
// *DuplicateError. A failing fn still uses up the key: callers get one
// attempt per key within the state TTL.
func (g *Guard) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := options{lock: defaultLockDuration, ttl: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	o.lock = orDefault(o.lock, defaultLockDuration)
	o.ttl = orDefault(o.ttl, defaultStateTTL)

	if err := g.acquire(ctx, key, o.lock); err != nil {
		return err
	}

	final := StateCompleted
	runErr := fn(ctx)
	if runErr != nil {
		final = StateFailed
	}

	return errors.Join(runErr, g.store.Set(ctx, keyPrefix+key, []byte(final), o.ttl))
}

func (g *Guard) acquire(ctx context.Context, key string, lock time.Duration) error {
	full := keyPrefix + key

	// Two attempts: the mark can expire between SetNX and Get.
	for range 2 {
		ok, err := g.store.SetNX(ctx, full, []byte(StateRunning), lock)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		raw, found, err := g.store.Get(ctx, full)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		switch st := State(raw); st {
		case StateRunning, StateCompleted, StateFailed:
			return &DuplicateError{Key: key, State: st}
		default:
			return ErrCorruptState
		}
	}

	return ErrCorruptState
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
