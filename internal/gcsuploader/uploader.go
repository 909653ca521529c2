package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// GCSStorageService is the StorageService backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates the storage client. Close releases it.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close closes the underlying client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv; charset=utf-8"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// ObjectExists reports whether bucketName holds objectName.
func (s *GCSStorageService) ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error) {
	_, err := s.client.Bucket(bucketName).Object(objectName).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat gs://%s/%s: %w", bucketName, objectName, err)
	}
}

// ObjectName returns the object path used for a stage artifact: <stage>/<file>.
func ObjectName(stage, fileName string) string {
	return path.Join(stage, fileName)
}

// GCSURI formats a gs:// URI.
func GCSURI(bucketName, objectName string) string {
	return "gs://" + bucketName + "/" + strings.TrimPrefix(objectName, "/")
}
