package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// ObjectExists reports whether the object is already in the bucket.
	ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error)
}

// ErrNotProcessed is returned for periods missing from the ledger.
var ErrNotProcessed = errors.New("period has not been processed")

// PeriodUploader mirrors a processed period's CSV files into a bucket.
type PeriodUploader struct {
	storage StorageService
	layout  artifacts.Layout
	ledger  ledger.Ledger
}

// NewPeriodUploader creates a PeriodUploader.
func NewPeriodUploader(storage StorageService, layout artifacts.Layout, led ledger.Ledger) *PeriodUploader {
	return &PeriodUploader{storage: storage, layout: layout, ledger: led}
}

// UploadPeriod copies each stage file of p to gs://<bucket>/<stage>/<file>
// and returns the URIs written. Only periods in the ledger are uploaded.
// With overwrite false, objects already present are left alone.
func (u *PeriodUploader) UploadPeriod(ctx context.Context, bucket string, p period.Period, overwrite bool) ([]string, error) {
	log := logger.FromContext(ctx).With().Str("period", p.String()).Str("bucket", bucket).Logger()

	if bucket == "" {
		return nil, fmt.Errorf("upload %s: bucket is required", p)
	}
	if !u.ledger.IsProcessed(ctx, p) {
		return nil, fmt.Errorf("upload %s: %w", p, ErrNotProcessed)
	}

	var uris []string
	for _, stage := range period.Stages {
		local := u.layout.StageFile(stage, p)
		if _, err := os.Stat(local); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("stage", string(stage)).Str("path", local).Msg("Stage file missing, not uploading")
				continue
			}
			return uris, fmt.Errorf("upload %s: %w", p, err)
		}

		object := ObjectName(string(stage), period.FileName(stage, p))
		uri := GCSURI(bucket, object)

		if !overwrite {
			exists, err := u.storage.ObjectExists(ctx, bucket, object)
			if err != nil {
				return uris, fmt.Errorf("upload %s: %w", p, err)
			}
			if exists {
				log.Info().Str("uri", uri).Msg("Object already present, skipping")
				continue
			}
		}

		if err := u.storage.UploadFile(ctx, bucket, object, local); err != nil {
			return uris, fmt.Errorf("upload %s: %s: %w", p, stage, err)
		}
		log.Info().Str("stage", string(stage)).Str("uri", uri).Msg("Uploaded stage file")
		uris = append(uris, uri)
	}
	return uris, nil
}

var _ StorageService = (*GCSStorageService)(nil)
