package executor_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
)

type snapshot map[string]map[string][]byte

// memCache is an in-memory ports.CacheStore holding regular files only.
type memCache struct {
	mu      sync.Mutex
	entries map[domain.CacheKey]snapshot
	saves   int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[domain.CacheKey]snapshot)}
}

func (m *memCache) Restore(_ context.Context, key domain.CacheKey, paths ports.PathMapper) (domain.RestoreOutcome, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return domain.RestoreMiss, nil
	}

	for root, files := range entry {
		dest, err := paths.HostPath(root)
		if err != nil {
			return domain.RestoreMiss, err
		}
		for rel, data := range files {
			target := filepath.Join(dest, rel)
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return domain.RestoreMiss, err
			}
			if err := os.WriteFile(target, data, domain.FilePerm); err != nil {
				return domain.RestoreMiss, err
			}
		}
	}
	return domain.RestoreHit, nil
}

func (m *memCache) Save(_ context.Context, key domain.CacheKey, include []string, paths ports.PathMapper) error {
	entry := make(snapshot)
	for _, root := range include {
		src, err := paths.HostPath(root)
		if err != nil {
			return err
		}
		files := make(map[string][]byte)
		err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(src, p)
			files[rel] = data
			return nil
		})
		if err != nil {
			return err
		}
		entry[root] = files
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	m.saves++
	return nil
}

func (m *memCache) keys() []domain.CacheKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CacheKey, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out
}
