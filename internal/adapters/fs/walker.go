// Package fs provides file system adapters for walking and checksumming files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/rig/internal/core/domain"
)

// Walker provides file walking functionality.
type Walker struct {
	skipDirs map[string]bool
}

// NewWalker creates a Walker that skips version control metadata and rig's
// own workspace directory.
func NewWalker() *Walker {
	return &Walker{skipDirs: map[string]bool{".git": true, ".jj": true, domain.RigDirName: true}}
}

// WalkFiles yields every non-directory entry under root in lexical order.
// Paths are relative to root and use forward slashes.
// The walk stops at the first error, which is yielded with an empty path.
func (w *Walker) WalkFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				yield("", err)
				return filepath.SkipAll
			}

			if d.IsDir() {
				if path != root && w.skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				yield("", err)
				return filepath.SkipAll
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
