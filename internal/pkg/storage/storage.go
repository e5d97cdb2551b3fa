// Package storage fetches operator supplied blobs, such as the DSKPP private
// key, from the local filesystem or an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned by every backend for a missing object.
	ErrNotFound = errors.New("storage: object not found")

	// ErrObjectTooLarge is returned by ReadAll when an object exceeds the limit.
	ErrObjectTooLarge = errors.New("storage: object too large")
)

type Storage interface {
	io.Closer

	// Open streams bucket/key. The caller closes the Object.
	Open(ctx context.Context, bucket, key string) (*Object, error)
}

// Object is an open blob. Size is -1 when the backend does not report it.
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
}

// ReadAll loads bucket/key into memory, refusing objects over limit bytes.
// A limit of zero or less disables the check.
func ReadAll(ctx context.Context, s Storage, bucket, key string, limit int64) ([]byte, error) {
	obj, err := s.Open(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	if limit <= 0 {
		return io.ReadAll(obj)
	}
	if obj.Size > limit {
		return nil, ErrObjectTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(obj, limit+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", bucket, key, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}
