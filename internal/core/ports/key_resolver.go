package ports

import "go.trai.ch/rig/internal/core/domain"

// KeyResolver turns a key template into a concrete cache key.
//
//go:generate go run go.uber.org/mock/mockgen -source=key_resolver.go -destination=mocks/mock_key_resolver.go -package=mocks
type KeyResolver interface {
	// Resolve substitutes every checksum placeholder with the SHA-256 of the named
	// file as seen through paths. It has no side effects.
	Resolve(tmpl domain.KeyTemplate, paths PathMapper) (domain.CacheKey, error)
}
