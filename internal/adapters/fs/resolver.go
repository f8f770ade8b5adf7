package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.KeyResolver = (*KeyResolver)(nil)

// KeyResolver resolves cache key templates by checksumming files with SHA-256.
type KeyResolver struct {
	walker *Walker
}

// NewKeyResolver creates a new KeyResolver.
func NewKeyResolver(walker *Walker) *KeyResolver {
	return &KeyResolver{walker: walker}
}

// Resolve substitutes each checksum placeholder in tmpl with the lowercase hex
// SHA-256 of the named path as seen through paths.
func (r *KeyResolver) Resolve(tmpl domain.KeyTemplate, paths ports.PathMapper) (domain.CacheKey, error) {
	return tmpl.Resolve(func(p string) (string, error) {
		host, err := paths.HostPath(p)
		if err != nil {
			return "", err
		}
		sum, err := r.Checksum(host)
		if err != nil {
			return "", zerr.With(err, "placeholder", p)
		}
		return sum, nil
	})
}

// Checksum returns the hex SHA-256 of a file's bytes. For a directory it
// hashes each file's relative path and content digest in lexical order.
// The result does not depend on modification times or permissions.
func (r *KeyResolver) Checksum(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return "", zerr.With(zerr.Wrap(domain.ErrChecksumFileNotFound, "cannot compute checksum"), "path", path)
		}
		return "", errors.Join(domain.ErrChecksumReadFailed, zerr.With(err, "path", path))
	}

	if !info.IsDir() {
		h := sha256.New()
		if err := hashFile(h, path); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	tree := sha256.New()
	for rel, err := range r.walker.WalkFiles(path) {
		if err != nil {
			return "", errors.Join(domain.ErrChecksumReadFailed, zerr.With(err, "path", path))
		}
		file := sha256.New()
		if err := hashFile(file, filepath.Join(path, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
		_, _ = io.WriteString(tree, rel)
		_, _ = tree.Write([]byte{0})
		_, _ = tree.Write(file.Sum(nil))
	}
	return hex.EncodeToString(tree.Sum(nil)), nil
}

func hashFile(h hash.Hash, path string) error {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return zerr.With(zerr.Wrap(domain.ErrChecksumFileNotFound, "cannot compute checksum"), "path", path)
		}
		return errors.Join(domain.ErrChecksumReadFailed, zerr.With(err, "path", path))
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(h, f); err != nil {
		return errors.Join(domain.ErrChecksumReadFailed, zerr.With(err, "path", path))
	}
	return nil
}
