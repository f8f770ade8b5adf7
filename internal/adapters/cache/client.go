// Package cache implements ports.CacheStore on top of a blob store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/rig/internal/adapters/archive"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*Client)(nil)

// Client archives environment paths into a ports.BlobStore.
type Client struct {
	blobs     ports.BlobStore
	namespace string
	logger    ports.Logger
}

// NewClient creates a Client storing entries as "<namespace>/<key>".
func NewClient(blobs ports.BlobStore, namespace string, logger ports.Logger) *Client {
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return &Client{blobs: blobs, namespace: namespace, logger: logger}
}

// BlobName returns the blob store key used for key.
func (c *Client) BlobName(key domain.CacheKey) string {
	return c.namespace + "/" + key.String()
}

// Restore fetches the entry stored under key and unpacks each archived root to
// the place the environment maps it to.
func (c *Client) Restore(
	ctx context.Context, key domain.CacheKey, paths ports.PathMapper,
) (domain.RestoreOutcome, error) {
	name := c.BlobName(key)

	rc, err := c.blobs.Get(ctx, name)
	if err != nil {
		return domain.RestoreMiss, errors.Join(domain.ErrCacheStoreFailed, zerr.With(err, "key", key.String()))
	}
	if rc == nil {
		return domain.RestoreMiss, nil
	}
	defer rc.Close() //nolint:errcheck // Read-only stream

	if _, err := archive.Read(rc, paths.HostPath); err != nil {
		return domain.RestoreMiss, errors.Join(domain.ErrCacheStoreFailed,
			zerr.With(zerr.Wrap(err, "failed to unpack cache entry"), "key", key.String()))
	}
	return domain.RestoreHit, nil
}

// Save archives include and uploads the result under key. Paths that do not
// exist are skipped with a warning; if none exist nothing is uploaded.
func (c *Client) Save(ctx context.Context, key domain.CacheKey, include []string, paths ports.PathMapper) error {
	roots, err := c.collectRoots(include, paths)
	if err != nil {
		return errors.Join(domain.ErrCacheStoreFailed, zerr.With(err, "key", key.String()))
	}
	if len(roots) == 0 {
		return errors.Join(domain.ErrCacheStoreFailed,
			zerr.With(zerr.Wrap(domain.ErrNothingToCache, "no paths to save"), "key", key.String()))
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := archive.Write(pw, roots)
		_ = pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := c.blobs.Put(gctx, c.BlobName(key), pr)
		_ = pr.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		return errors.Join(domain.ErrCacheStoreFailed, zerr.With(err, "key", key.String()))
	}
	return nil
}

func (c *Client) collectRoots(include []string, paths ports.PathMapper) ([]archive.Root, error) {
	roots := make([]archive.Root, 0, len(include))
	for _, p := range include {
		host, err := paths.HostPath(p)
		if err != nil {
			return nil, zerr.With(err, "path", p)
		}
		if _, err := os.Lstat(host); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				c.logger.Warn(fmt.Sprintf("cache path %s does not exist, skipping", p))
				continue
			}
			return nil, zerr.With(zerr.Wrap(err, "failed to stat cache path"), "path", p)
		}
		roots = append(roots, archive.Root{Name: p, HostPath: host})
	}
	return roots, nil
}
