package blobstore

import (
	"context"

	"github.com/nishad/bdp/internal/config"
	bdperrors "github.com/nishad/bdp/internal/errors"
)

// NewFromConfig selects the Blob Store Adapter implementation based on
// config.BlobConfig, the way the teacher's search package picks a backend
// via CreateSearchBackend: a LocalPath switches to the filesystem-backed
// store for single-node operation and tests, otherwise the S3-compatible
// store is dialed.
func NewFromConfig(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	if cfg.LocalPath != "" {
		return NewLocalStore(cfg.LocalPath)
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, bdperrors.E("blobstore.NewFromConfig", bdperrors.KindValidation,
			"blob store requires either local_path or endpoint+bucket")
	}
	return NewS3Store(ctx, S3Config{
		Endpoint:  cfg.Endpoint,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		PathStyle: cfg.PathStyle,
		UseTLS:    cfg.UseTLS,
	})
}
