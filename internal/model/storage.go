package model

import (
	"context"
	"io"
)

// Storage is a flat blob store addressed by key.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
