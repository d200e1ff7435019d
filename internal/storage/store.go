package storage

import (
	"context"
	"io"
)

// Store keeps uploaded objects addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
