package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverFile  = "file"
	DriverS3    = "s3"
	DriverGCS   = "gcs"
	DriverMinIO = "minio"
)

var ErrUnknownDriver = errors.New("storage: unknown driver")

// FactoryOptions holds settings for every backend. Only the selected
// driver's section is read.
type FactoryOptions struct {
	File  FileOptions
	S3    S3Options
	GCS   GCSOptions
	MinIO MinIOOptions
}

// NewFromDriver builds the backend named by storage.driver. Empty means file.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", DriverFile:
		return NewFile(opts.File), nil
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverGCS:
		return NewGCS(ctx, opts.GCS)
	case DriverMinIO:
		return NewMinIO(opts.MinIO)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, d)
	}
}
