package ports

import (
	"context"
	"io"

	"go.trai.ch/rig/internal/core/domain"
)

// CacheStore restores and saves directory trees under cache keys.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache_store.go -destination=mocks/mock_cache_store.go -package=mocks
type CacheStore interface {
	// Restore unpacks the entry stored under key into the environment.
	// A missing entry yields domain.RestoreMiss and a nil error.
	Restore(ctx context.Context, key domain.CacheKey, paths PathMapper) (domain.RestoreOutcome, error)

	// Save archives the given environment paths and stores them under key.
	// Saving an existing key overwrites it.
	Save(ctx context.Context, key domain.CacheKey, include []string, paths PathMapper) error
}

// BlobStore is an opaque key-value store for archive bytes.
type BlobStore interface {
	// Get opens the blob stored under key.
	// Returns nil, nil if not found.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores the bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader) error
}
