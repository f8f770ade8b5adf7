package cache

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/adapters/logger"
	"go.trai.ch/rig/internal/adapters/settings"
	"go.trai.ch/rig/internal/core/ports"
)

const (
	// BlobStoreNodeID is the unique identifier for the blob store Graft node.
	BlobStoreNodeID graft.ID = "adapter.cache.blobs"
	// NodeID is the unique identifier for the cache store Graft node.
	NodeID graft.ID = "adapter.cache"
)

func init() {
	graft.Register(graft.Node[ports.BlobStore]{
		ID:        BlobStoreNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID},
		Run: func(ctx context.Context) (ports.BlobStore, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return OpenBlobStore(ctx, cfg)
		},
	})

	graft.Register(graft.Node[ports.CacheStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{BlobStoreNodeID, settings.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			blobs, err := graft.Dep[ports.BlobStore](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(blobs, cfg.Cache.Namespace, log), nil
		},
	})
}
