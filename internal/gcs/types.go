package gcs

import (
	"context"
	"io"
)

// StorageService provides an interface for cloud storage operations.
type StorageService interface {
	// UploadObject streams r into bucket/object with the given content type.
	UploadObject(ctx context.Context, bucket, object, contentType string, r io.Reader) error

	// FetchFromGCS downloads object bytes from a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
