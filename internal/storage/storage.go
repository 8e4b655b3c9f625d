// Package storage defines the interface for the digest blob store.
// This abstraction keeps the jobs independent of a specific backend
// (Google Cloud Storage, the local filesystem, or memory for tests).
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when no object exists at the key.
var ErrObjectNotFound = errors.New("object not found")

// Store is the blob store the digest jobs write to and the viewer reads from.
type Store interface {
	// PutObject uploads data under the given key and returns a backend URI.
	// A subsequent put to the same key replaces the object (last writer wins).
	PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error)

	// GetObject returns the content stored under key, or ErrObjectNotFound.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// ListObjects returns all keys with the given prefix, sorted.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
