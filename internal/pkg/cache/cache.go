// Package cache provides a small byte-oriented cache abstraction with an
// in-process driver (go-cache) and a Redis driver.
//
// Both drivers are safe for concurrent use.
package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("cache: unknown driver")

// Cache stores byte values under string keys with an optional TTL.
// A TTL of zero means the value never expires.
type Cache interface {
	io.Closer

	// Get returns the value and true when key exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
