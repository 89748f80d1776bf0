// Package storage keeps uploaded photo bytes on the local disk or in S3.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/vedran77/activities/internal/config"
)

type Storage interface {
	// Write stores r under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public address clients use to fetch key.
	URL(key string) string
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Local.BasePath, cfg.BaseURL)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
