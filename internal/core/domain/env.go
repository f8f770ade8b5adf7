package domain

import (
	"maps"
	"slices"
	"strings"
)

// EnvList converts a variable map to sorted KEY=VALUE pairs.
func EnvList(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// MergeEnv merges KEY=VALUE lists. Later layers override earlier ones and the
// result is sorted by key. Entries without "=" are dropped.
func MergeEnv(layers ...[]string) []string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for _, entry := range layer {
			k, v, ok := strings.Cut(entry, "=")
			if !ok || k == "" {
				continue
			}
			merged[k] = v
		}
	}
	return EnvList(merged)
}
