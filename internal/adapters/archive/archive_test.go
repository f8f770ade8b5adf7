package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rig/internal/adapters/archive"
	"go.trai.ch/rig/internal/core/domain"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "target", "debug", "app"), "binary", 0o755)
	writeFile(t, filepath.Join(src, "target", "CACHEDIR.TAG"), "tag", 0o644)
	require.NoError(t, os.Symlink("debug/app", filepath.Join(src, "target", "latest")))
	writeFile(t, filepath.Join(src, "home", ".cargo", "config.toml"), "[net]", 0o600)
	writeFile(t, filepath.Join(src, "Cargo.lock"), "lock", 0o644)

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, []archive.Root{
		{Name: "target", HostPath: filepath.Join(src, "target")},
		{Name: "~/.cargo", HostPath: filepath.Join(src, "home", ".cargo")},
		{Name: "Cargo.lock", HostPath: filepath.Join(src, "Cargo.lock")},
	}))

	dst := t.TempDir()
	mapping := map[string]string{
		"target":     filepath.Join(dst, "ws", "target"),
		"~/.cargo":   filepath.Join(dst, "home", ".cargo"),
		"Cargo.lock": filepath.Join(dst, "ws", "Cargo.lock"),
	}
	manifest, err := archive.Read(&buf, func(root string) (string, error) { return mapping[root], nil })
	require.NoError(t, err)

	assert.Equal(t, []string{"target", "~/.cargo", "Cargo.lock"}, manifest.Roots)
	assert.Equal(t, "binary", readFile(t, filepath.Join(dst, "ws", "target", "debug", "app")))
	assert.Equal(t, "[net]", readFile(t, filepath.Join(dst, "home", ".cargo", "config.toml")))
	assert.Equal(t, "lock", readFile(t, filepath.Join(dst, "ws", "Cargo.lock")))

	info, err := os.Stat(filepath.Join(dst, "ws", "target", "debug", "app"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "ws", "target", "latest"))
	require.NoError(t, err)
	assert.Equal(t, "debug/app", link)
}

func TestRead_OverwritesExisting(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "out", "f"), "new", 0o644)

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, []archive.Root{{Name: "out", HostPath: filepath.Join(src, "out")}}))

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "out", "f"), "old", 0o644)
	_, err := archive.Read(&buf, func(string) (string, error) { return filepath.Join(dst, "out"), nil })
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, filepath.Join(dst, "out", "f")))
}

func TestRead_TruncatedArchiveLeavesTargetsUntouched(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, filepath.Join(src, "out", name), strings.Repeat(name, 4096), 0o644)
	}

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, []archive.Root{{Name: "out", HostPath: filepath.Join(src, "out")}}))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()*2/3])

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "out", "a"), "old", 0o644)

	_, err := archive.Read(truncated, func(string) (string, error) { return filepath.Join(dst, "out"), nil })
	require.Error(t, err)

	assert.Equal(t, "old", readFile(t, filepath.Join(dst, "out", "a")))
	assert.NoFileExists(t, filepath.Join(dst, "out", "b"))
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out", entries[0].Name())
}

func TestRead_SingleFileRoot(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "Cargo.lock"), "new", 0o644)

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, []archive.Root{{Name: "Cargo.lock", HostPath: filepath.Join(src, "Cargo.lock")}}))

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "Cargo.lock"), "old", 0o644)
	_, err := archive.Read(&buf, func(string) (string, error) { return filepath.Join(dst, "Cargo.lock"), nil })
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, filepath.Join(dst, "Cargo.lock")))
}

type entry struct {
	hdr  tar.Header
	body string
}

func craft(t *testing.T, withManifest bool, entries ...entry) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if withManifest {
		data, err := json.Marshal(archive.Manifest{Version: 1, Roots: []string{"out"}})
		require.NoError(t, err)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: archive.ManifestName, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
		_, err = tw.Write(data)
		require.NoError(t, err)
	}
	for _, e := range entries {
		hdr := e.hdr
		hdr.Size = int64(len(e.body))
		require.NoError(t, tw.WriteHeader(&hdr))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestRead_RejectsTraversal(t *testing.T) {
	dst := t.TempDir()
	buf := craft(t, true, entry{
		hdr:  tar.Header{Name: "0/../../escape", Mode: 0o644, Typeflag: tar.TypeReg},
		body: "pwned",
	})

	_, err := archive.Read(buf, func(string) (string, error) { return filepath.Join(dst, "out"), nil })
	require.ErrorIs(t, err, domain.ErrUnsafeArchivePath)
	assert.NoFileExists(t, filepath.Join(dst, "escape"))
}

func TestRead_RejectsWriteThroughSymlink(t *testing.T) {
	dst := t.TempDir()
	outside := t.TempDir()
	buf := craft(t, true,
		entry{hdr: tar.Header{Name: "0/", Mode: 0o755, Typeflag: tar.TypeDir}},
		entry{hdr: tar.Header{Name: "0/link", Linkname: outside, Typeflag: tar.TypeSymlink}},
		entry{hdr: tar.Header{Name: "0/link/evil", Mode: 0o644, Typeflag: tar.TypeReg}, body: "x"},
	)

	_, err := archive.Read(buf, func(string) (string, error) { return filepath.Join(dst, "out"), nil })
	require.ErrorIs(t, err, domain.ErrUnsafeArchivePath)
	assert.NoFileExists(t, filepath.Join(outside, "evil"))
}

func TestRead_MissingManifest(t *testing.T) {
	buf := craft(t, false, entry{hdr: tar.Header{Name: "0/f", Mode: 0o644, Typeflag: tar.TypeReg}, body: "x"})
	_, err := archive.Read(buf, func(string) (string, error) { return t.TempDir(), nil })
	assert.ErrorIs(t, err, domain.ErrArchiveCorrupt)
}

func TestRead_NotGzip(t *testing.T) {
	_, err := archive.Read(bytes.NewBufferString("plain text"), func(string) (string, error) { return "", nil })
	assert.ErrorIs(t, err, domain.ErrArchiveCorrupt)
}
