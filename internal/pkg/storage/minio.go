package storage

import (
	"context"
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIO struct {
	client *minio.Client
}

type MinIOOptions struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	UseSSL       bool
}

func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinIO{client: client}, nil
}

// Open stats the object first. minio-go opens lazily, so a missing key would
// otherwise only surface on the first Read.
func (m *MinIO) Open(ctx context.Context, bucket, key string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioErr(err)
	}

	st, err := obj.Stat()
	if err != nil {
		return nil, errors.Join(minioErr(err), obj.Close())
	}

	return &Object{ReadCloser: obj, Size: st.Size, ContentType: st.ContentType}, nil
}

func (m *MinIO) Close() error { return nil }

func minioErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
