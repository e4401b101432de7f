// Package storage defines the blob storage abstraction used to publish run
// artifacts such as digest manifests. Implementations live in the gcs, local,
// and memory subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes an object and returns a URI that locates it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
