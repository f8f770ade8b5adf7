// Package cas implements a blob store on the local filesystem.
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	blobExt   = ".tgz"
	digestExt = ".xxh"
)

var _ ports.BlobStore = (*Store)(nil)

// Store keeps one file per key, named by the SHA-256 of the key.
// A sidecar file records the xxhash of each blob so rewriting identical
// content leaves the blob untouched.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, errors.Join(domain.ErrStoreCreateFailed, zerr.With(err, "dir", dir))
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) blobPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name[:2], name+blobExt)
}

// Get opens the blob stored under key. Returns nil, nil if not found.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.blobPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(domain.ErrStoreReadFailed, zerr.With(err, "key", key))
	}
	return f, nil
}

// Put stores r under key. The write is atomic: readers see either the old
// blob or the new one.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	target := s.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Removed only if the rename did not happen

	digest := xxhash.New()
	if _, err := io.Copy(io.MultiWriter(tmp, digest), contextReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	sum := strconv.FormatUint(digest.Sum64(), 16)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unchanged(target, sum) {
		return nil
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	//nolint:gosec // Path is derived from a hash of the key
	if err := os.WriteFile(target+digestExt, []byte(sum), domain.FilePerm); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	return nil
}

// unchanged reports whether target already holds content with digest sum.
func (s *Store) unchanged(target, sum string) bool {
	if _, err := os.Stat(target); err != nil {
		return false
	}
	//nolint:gosec // Path is derived from a hash of the key
	existing, err := os.ReadFile(target + digestExt)
	return err == nil && string(existing) == sum
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
