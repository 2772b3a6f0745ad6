// Package storage defines the narrow blob-storage contract the file layer
// depends on, with S3-compatible, bbolt and in-memory implementations.
package storage

import (
	"context"
	"io"
)

// BlobStore persists opaque ciphertext blobs. Implementations must never
// overwrite an existing object: Put with an already used key fails with
// common.ErrConflict where the backend can detect it, and callers derive
// keys from a collision-resistant scheme regardless.
type BlobStore interface {
	// Put streams the content of r into the store under key and returns the
	// location to use for later Get/Delete calls.
	Put(ctx context.Context, key string, r io.Reader) (string, error)

	// Get returns a reader over the blob at location. A missing blob yields
	// common.ErrorNotFound.
	Get(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the blob at location. Deleting a missing blob is not
	// an error.
	Delete(ctx context.Context, location string) error
}
