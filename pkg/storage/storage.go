// Package storage defines the blob storage abstraction used by the upload
// pipeline. Backends: local filesystem, S3-compatible object storage through
// the AWS SDK, and MinIO through its native client.
package storage

import (
	"context"
	"io"
	"io/fs"
)

// ErrNotFound is returned (wrapped) by GetObject when the key does not exist.
// Adapters wrap fs.ErrNotExist so callers can use errors.Is with either.
var ErrNotFound = fs.ErrNotExist

// Storage defines the interface for object storage operations.
type Storage interface {
	// PutObject uploads a blob.
	// key: object key such as "images/{id}/display.png"
	// contentType: MIME type of the blob
	// size: blob size in bytes, or -1 when unknown
	PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error

	// GetObject retrieves a blob. The caller must close the reader.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteObject removes a blob. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists checks if an object exists in storage.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// GenerateURL creates an access URL for the object.
	// Local storage and S3 proxy mode return a relative path under /uploads,
	// S3 presigned mode a presigned URL and S3 public mode the bucket URL.
	GenerateURL(ctx context.Context, key string) (string, error)

	// Type returns the storage type identifier.
	Type() string
}

// ReadAll fetches a whole object into memory.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
