package gcsuploader

import (
	"context"
	"io"

	"github.com/dvloznov/finance-ledger/internal/gcs"
)

// StorageService re-exports the shared storage interface.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadObject delegates to UploadObject.
func (s *GCSStorageService) UploadObject(ctx context.Context, bucket, object, contentType string, r io.Reader) error {
	return UploadObject(ctx, bucket, object, contentType, r)
}

// FetchFromGCS delegates to FetchFromGCS.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

var _ StorageService = (*GCSStorageService)(nil)
