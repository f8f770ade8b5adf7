package domain

import (
	"errors"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

const (
	templateOpen  = "{{"
	templateClose = "}}"
	checksumFunc  = "checksum"
)

// CacheKey is a fully resolved cache key. Two keys are equal iff their strings are equal.
type CacheKey string

// String returns the key text.
func (k CacheKey) String() string { return string(k) }

// keySegment is either literal text or a checksum placeholder naming a path.
type keySegment struct {
	literal string
	path    string
	isPath  bool
}

// KeyTemplate is a parsed cache key template such as `deps-{{ checksum "go.sum" }}`.
type KeyTemplate struct {
	raw      string
	segments []keySegment
}

// ParseKeyTemplate parses raw into a KeyTemplate.
// Only the `checksum "<path>"` function is recognised inside `{{ }}`.
func ParseKeyTemplate(raw string) (KeyTemplate, error) {
	if strings.TrimSpace(raw) == "" {
		return KeyTemplate{}, ErrMissingCacheKey
	}

	var segments []keySegment
	rest := raw
	for rest != "" {
		start := strings.Index(rest, templateOpen)
		if start < 0 {
			segments = append(segments, keySegment{literal: rest})
			break
		}
		if start > 0 {
			segments = append(segments, keySegment{literal: rest[:start]})
		}
		rest = rest[start+len(templateOpen):]

		end := strings.Index(rest, templateClose)
		if end < 0 {
			return KeyTemplate{}, invalidTemplate(raw, zerr.New("unterminated placeholder"))
		}
		path, err := parsePlaceholder(rest[:end])
		if err != nil {
			return KeyTemplate{}, invalidTemplate(raw, err)
		}
		segments = append(segments, keySegment{path: path, isPath: true})
		rest = rest[end+len(templateClose):]
	}

	return KeyTemplate{raw: raw, segments: segments}, nil
}

// MustParseKeyTemplate is like ParseKeyTemplate but panics on error.
func MustParseKeyTemplate(raw string) KeyTemplate {
	t, err := ParseKeyTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func invalidTemplate(raw string, cause error) error {
	return errors.Join(ErrInvalidKeyTemplate, zerr.With(cause, "template", raw))
}

func parsePlaceholder(body string) (string, error) {
	fn, arg, ok := strings.Cut(strings.TrimSpace(body), " ")
	if !ok || fn != checksumFunc {
		return "", zerr.New("expected checksum \"<path>\"")
	}
	path, err := strconv.Unquote(strings.TrimSpace(arg))
	if err != nil {
		return "", zerr.New("checksum path must be a quoted string")
	}
	if path == "" {
		return "", zerr.New("checksum path is empty")
	}
	return path, nil
}

// String returns the template source text.
func (t KeyTemplate) String() string { return t.raw }

// IsZero reports whether the template was never parsed.
func (t KeyTemplate) IsZero() bool { return t.raw == "" }

// Paths returns the paths named by checksum placeholders, in order of appearance.
func (t KeyTemplate) Paths() []string {
	var paths []string
	for _, seg := range t.segments {
		if seg.isPath {
			paths = append(paths, seg.path)
		}
	}
	return paths
}

// Resolve substitutes each placeholder with the digest returned by checksum.
// The first checksum error aborts resolution.
func (t KeyTemplate) Resolve(checksum func(path string) (string, error)) (CacheKey, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if !seg.isPath {
			b.WriteString(seg.literal)
			continue
		}
		sum, err := checksum(seg.path)
		if err != nil {
			return "", err
		}
		b.WriteString(sum)
	}
	return CacheKey(b.String()), nil
}
