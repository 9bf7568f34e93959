// Package blob stores uploaded registration documents.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store holds opaque objects by key.
type Store interface {
	// Put writes an object, replacing any existing one.
	// PRE: key is a relative slash-separated path
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error

	// Open returns the object's content. The caller closes it.
	// POST: returns ErrNotFound when the key does not exist
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
