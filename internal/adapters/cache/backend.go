package cache

import (
	"context"

	"go.trai.ch/rig/internal/adapters/cas"
	"go.trai.ch/rig/internal/adapters/httpstore"
	"go.trai.ch/rig/internal/adapters/s3store"
	"go.trai.ch/rig/internal/adapters/settings"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// OpenBlobStore returns the blob store selected by cfg.Cache.Backend.
func OpenBlobStore(ctx context.Context, cfg *settings.Settings) (ports.BlobStore, error) {
	switch cfg.Cache.Backend {
	case settings.BackendLocal:
		return cas.NewStore(cfg.Cache.Dir)
	case settings.BackendS3:
		return s3store.New(ctx, s3store.Options{
			Bucket:    cfg.Cache.S3.Bucket,
			Prefix:    cfg.Cache.S3.Prefix,
			Region:    cfg.Cache.S3.Region,
			Endpoint:  cfg.Cache.S3.Endpoint,
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
		})
	case settings.BackendHTTP:
		return httpstore.NewClient(cfg.Cache.URL, nil), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownCacheBackend, "cannot open cache"), "backend", cfg.Cache.Backend)
	}
}
