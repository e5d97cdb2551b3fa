package storage

import (
	"context"
	"errors"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCS struct {
	client *gcs.Client
}

// GCSOptions: a ready Client wins over ClientOptions.
type GCSOptions struct {
	Client        *gcs.Client
	ClientOptions []option.ClientOption
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	if opts.Client != nil {
		return &GCS{client: opts.Client}, nil
	}

	client, err := gcs.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	return &GCS{client: client}, nil
}

func (g *GCS) Open(ctx context.Context, bucket, key string) (*Object, error) {
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Object{ReadCloser: r, Size: r.Attrs.Size, ContentType: r.Attrs.ContentType}, nil
}

func (g *GCS) Close() error { return g.client.Close() }
