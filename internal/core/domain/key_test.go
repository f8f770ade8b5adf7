package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rig/internal/core/domain"
)

func TestParseKeyTemplate(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		paths []string
	}{
		{name: "literal only", raw: "static-key", paths: nil},
		{name: "single checksum", raw: `rust-{{ checksum "Cargo.lock" }}`, paths: []string{"Cargo.lock"}},
		{name: "literal suffix", raw: `rust-{{ checksum "Cargo.lock" }}.0`, paths: []string{"Cargo.lock"}},
		{name: "tight braces", raw: `a-{{checksum "x"}}-{{ checksum "~/y" }}`, paths: []string{"x", "~/y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := domain.ParseKeyTemplate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, tmpl.String())
			assert.Equal(t, tt.paths, tmpl.Paths())
		})
	}
}

func TestParseKeyTemplate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unterminated", raw: `rust-{{ checksum "Cargo.lock"`},
		{name: "unknown function", raw: `rust-{{ epoch }}`},
		{name: "unquoted path", raw: `rust-{{ checksum Cargo.lock }}`},
		{name: "empty path", raw: `rust-{{ checksum "" }}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseKeyTemplate(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidKeyTemplate))
		})
	}
}

func TestParseKeyTemplate_Empty(t *testing.T) {
	_, err := domain.ParseKeyTemplate("  ")
	assert.ErrorIs(t, err, domain.ErrMissingCacheKey)
}

func TestKeyTemplate_Resolve(t *testing.T) {
	tmpl := domain.MustParseKeyTemplate(`rust-{{ checksum "Cargo.lock" }}.0`)
	sums := map[string]string{"Cargo.lock": "abc123"}

	key, err := tmpl.Resolve(func(p string) (string, error) { return sums[p], nil })
	require.NoError(t, err)
	assert.Equal(t, domain.CacheKey("rust-abc123.0"), key)

	sums["Cargo.lock"] = "def456"
	key2, err := tmpl.Resolve(func(p string) (string, error) { return sums[p], nil })
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestKeyTemplate_ResolvePropagatesError(t *testing.T) {
	tmpl := domain.MustParseKeyTemplate(`k-{{ checksum "missing" }}`)
	_, err := tmpl.Resolve(func(string) (string, error) { return "", domain.ErrChecksumFileNotFound })
	assert.ErrorIs(t, err, domain.ErrChecksumFileNotFound)
}

func TestKeyTemplate_LiteralNeedsNoChecksum(t *testing.T) {
	tmpl := domain.MustParseKeyTemplate("plain")
	key, err := tmpl.Resolve(func(string) (string, error) {
		t.Fatal("checksum should not be called")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "plain", key.String())
}
