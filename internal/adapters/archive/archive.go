// Package archive encodes cache entries as gzip-compressed tarballs.
//
// Each archive starts with a manifest entry listing the roots it holds, in the
// order they were declared. Content for root i is stored under the directory
// "i/" (or as the single file "i" when the root is a regular file), so roots
// such as "target" and "~/.cargo" can be unpacked to wherever the restoring
// environment maps them.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/zerr"
)

// ManifestName is the name of the first entry of every archive.
const ManifestName = ".rig-manifest.json"

const manifestVersion = 1

// Manifest lists the roots stored in an archive.
type Manifest struct {
	Version int      `json:"version"`
	Roots   []string `json:"roots"`
}

// Root is one path to archive: Name as the job declared it, HostPath where it lives.
type Root struct {
	Name     string
	HostPath string
}

// Write archives roots to w. Every root must exist.
func Write(w io.Writer, roots []Root) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	manifest := Manifest{Version: manifestVersion}
	for _, r := range roots {
		manifest.Roots = append(manifest.Roots, r.Name)
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return zerr.Wrap(err, "failed to encode manifest")
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     ManifestName,
		Mode:     domain.FilePerm,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		return zerr.Wrap(err, "failed to write manifest header")
	}
	if _, err := tw.Write(data); err != nil {
		return zerr.Wrap(err, "failed to write manifest")
	}

	for i, r := range roots {
		if err := writeRoot(tw, strconv.Itoa(i), r.HostPath); err != nil {
			return zerr.With(err, "root", r.Name)
		}
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish archive")
	}
	if err := gz.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish compression")
	}
	return nil
}

func writeRoot(tw *tar.Writer, prefix, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to walk"), "path", p)
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return zerr.Wrap(err, "failed to relativize path")
		}
		name := prefix
		if rel != "." {
			name = path.Join(prefix, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat"), "path", p)
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", p)
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "unsupported file"), "path", p)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "", ""
		hdr.Uid, hdr.Gid = 0, 0

		if err := tw.WriteHeader(hdr); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to write header"), "path", p)
		}
		if hdr.Typeflag != tar.TypeReg {
			return nil
		}
		return copyFileInto(tw, p)
	})
}

func copyFileInto(w io.Writer, p string) error {
	f, err := os.Open(p) //nolint:gosec // Path comes from walking a declared cache root
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open"), "path", p)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(w, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy"), "path", p)
	}
	return nil
}

// Read unpacks the archive in r. resolve maps each manifest root to the host
// path it should be written to. Entries are first unpacked into a staging
// directory beside each target and only moved into place once the whole
// archive has been read, so a truncated or corrupt archive leaves the targets
// untouched. Existing files are overwritten.
func Read(r io.Reader, resolve func(root string) (string, error)) (*Manifest, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Join(domain.ErrArchiveCorrupt, err)
	}
	defer gz.Close() //nolint:errcheck // Reader close only releases resources
	tr := tar.NewReader(gz)

	manifest, err := readManifest(tr)
	if err != nil {
		return nil, err
	}

	stages := make([]stage, 0, len(manifest.Roots))
	defer func() {
		for _, st := range stages {
			_ = os.RemoveAll(st.dir)
		}
	}()

	staged := make([]string, len(manifest.Roots))
	for i, root := range manifest.Roots {
		target, err := resolve(root)
		if err != nil {
			return nil, zerr.With(err, "root", root)
		}
		st, err := newStage(target)
		if err != nil {
			return nil, zerr.With(err, "root", root)
		}
		stages = append(stages, st)
		staged[i] = st.path
	}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Join(domain.ErrArchiveCorrupt, err)
		}

		root, dest, err := destination(hdr.Name, staged)
		if err != nil {
			return nil, err
		}
		if err := checkParents(root, dest); err != nil {
			return nil, zerr.With(err, "entry", hdr.Name)
		}
		if err := extract(tr, hdr, dest); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = errors.Join(domain.ErrArchiveCorrupt, err)
			}
			return nil, zerr.With(err, "entry", hdr.Name)
		}
	}

	for i, st := range stages {
		if err := st.commit(); err != nil {
			return nil, zerr.With(err, "root", manifest.Roots[i])
		}
	}
	return manifest, nil
}

const stagePattern = ".rig-restore-*"

// stage is a scratch directory on the same file system as target that root
// content is unpacked into before being moved over target.
type stage struct {
	target string
	dir    string
	path   string
}

func newStage(target string) (stage, error) {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return stage{}, zerr.Wrap(err, "failed to create parent directory")
	}
	dir, err := os.MkdirTemp(parent, stagePattern)
	if err != nil {
		return stage{}, zerr.Wrap(err, "failed to create staging directory")
	}
	return stage{target: target, dir: dir, path: filepath.Join(dir, "root")}, nil
}

// commit moves every staged entry to the matching path under target, merging
// directories with what is already there.
func (s stage) commit() error {
	if _, err := os.Lstat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to walk staged entry"), "path", p)
		}
		rel, err := filepath.Rel(s.path, p)
		if err != nil {
			return zerr.Wrap(err, "failed to relativize path")
		}
		dest := s.target
		if rel != "." {
			dest = filepath.Join(s.target, rel)
		}
		if err := checkParents(s.target, dest); err != nil {
			return err
		}

		if !d.IsDir() {
			if err := prepare(dest); err != nil {
				return err
			}
			if err := os.Rename(p, dest); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to move restored entry"), "path", dest)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat"), "path", p)
		}
		if existing, err := os.Lstat(dest); err == nil && !existing.IsDir() {
			if err := os.Remove(dest); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to replace existing path"), "path", dest)
			}
		}
		if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", dest)
		}
		return os.Chmod(dest, info.Mode().Perm())
	})
}

func readManifest(tr *tar.Reader) (*Manifest, error) {
	hdr, err := tr.Next()
	if err != nil {
		return nil, errors.Join(domain.ErrArchiveCorrupt, err)
	}
	if hdr.Name != ManifestName {
		return nil, zerr.With(zerr.Wrap(domain.ErrArchiveCorrupt, "missing manifest"), "first_entry", hdr.Name)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(tr, 1<<20)).Decode(&m); err != nil {
		return nil, errors.Join(domain.ErrArchiveCorrupt, err)
	}
	if m.Version != manifestVersion {
		return nil, zerr.With(zerr.Wrap(domain.ErrArchiveCorrupt, "unknown manifest version"), "version", m.Version)
	}
	return &m, nil
}

// destination maps an entry name "i/rel" to its host path under targets[i],
// rejecting names that would escape the root.
func destination(name string, targets []string) (root, dest string, err error) {
	if path.IsAbs(name) || slices.Contains(strings.Split(name, "/"), "..") {
		return "", "", zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "rejected entry"), "entry", name)
	}

	clean := path.Clean(strings.TrimSuffix(name, "/"))
	first, rest, _ := strings.Cut(clean, "/")
	idx, err := strconv.Atoi(first)
	if err != nil || idx < 0 || idx >= len(targets) {
		return "", "", zerr.With(zerr.Wrap(domain.ErrArchiveCorrupt, "entry outside any root"), "entry", name)
	}

	root = targets[idx]
	if rest == "" {
		return root, root, nil
	}
	return root, filepath.Join(root, filepath.FromSlash(rest)), nil
}

// checkParents rejects dest when a directory between root and dest is a symlink,
// which would let an earlier entry redirect writes outside the root.
func checkParents(root, dest string) error {
	rel, err := filepath.Rel(root, filepath.Dir(dest))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to stat parent")
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "parent is a symlink"), "path", current)
		}
	}
	return nil
}

func extract(tr *tar.Reader, hdr *tar.Header, dest string) error {
	mode := fs.FileMode(hdr.Mode).Perm() //nolint:gosec // Mode bits come from a tar header

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
			return zerr.Wrap(err, "failed to create directory")
		}
		return os.Chmod(dest, mode|0o700)
	case tar.TypeReg:
		if err := prepare(dest); err != nil {
			return err
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode) //nolint:gosec // dest is validated
		if err != nil {
			return zerr.Wrap(err, "failed to create file")
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // Size is bounded by the archive the user stored
			_ = f.Close()
			return zerr.Wrap(err, "failed to write file")
		}
		return f.Close()
	case tar.TypeSymlink:
		if err := prepare(dest); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, dest)
	default:
		return nil
	}
}

// prepare creates the parent of dest and removes whatever currently occupies dest.
func prepare(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create parent directory")
	}
	if err := os.RemoveAll(dest); err != nil {
		return zerr.Wrap(err, "failed to replace existing path")
	}
	return nil
}
