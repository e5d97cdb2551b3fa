package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that would leave the bucket directory.
var ErrInvalidKey = errors.New("storage: invalid object key")

// File maps bucket/key to Root/bucket/key. With no Root and no bucket an
// absolute key is opened as is, so a plain path works in config.
type File struct {
	root string
}

type FileOptions struct {
	Root string
}

func NewFile(opts FileOptions) *File {
	return &File{root: opts.Root}
}

func (f *File) Open(ctx context.Context, bucket, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.path(bucket, key)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- confined to root by path
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st, err := file.Stat()
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	if st.IsDir() {
		return nil, errors.Join(ErrNotFound, file.Close())
	}

	return &Object{ReadCloser: file, Size: st.Size()}, nil
}

func (f *File) Close() error { return nil }

func (f *File) path(bucket, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if f.root == "" && bucket == "" && filepath.IsAbs(key) {
		return filepath.Clean(key), nil
	}

	base := filepath.Join(f.root, bucket)
	full := filepath.Join(base, key)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return full, nil
}
