package logger

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ErrorEntry is one link of an error chain as printed to the user.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries walks err, emitting one entry per zerr link.
// A joined error contributes the entries of each member in order.
// A foreign error ends the walk with its full text.
// Metadata on a link without a message is folded into the neighbouring entry.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	var pending map[string]any

	emit := func(e ErrorEntry) {
		if len(pending) > 0 {
			if e.Metadata == nil {
				e.Metadata = map[string]any{}
			}
			maps.Copy(e.Metadata, pending)
			pending = nil
		}
		entries = append(entries, e)
	}

	for err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				for _, entry := range collectErrorEntries(e) {
					emit(entry)
				}
			}
			return entries
		}

		z, ok := err.(*zerr.Error)
		if !ok {
			emit(ErrorEntry{Message: err.Error()})
			return entries
		}

		if z.Message() != "" {
			emit(ErrorEntry{Message: z.Message(), Metadata: z.Metadata()})
		} else if meta := z.Metadata(); len(meta) > 0 {
			if pending == nil {
				pending = map[string]any{}
			}
			maps.Copy(pending, meta)
		}
		err = z.Unwrap()
	}
	return entries
}

// formatErrorEntries renders entries as "Error: ..." followed by a "Caused by:" list.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string
	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")
		if i == 0 {
			lines = append(lines, "Error: "+msgLines[0])
			for _, l := range msgLines[1:] {
				lines = append(lines, "       "+l)
			}
			lines = append(lines, formatMetadata(entry.Metadata, "       ")...)
			continue
		}
		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+msgLines[0])
		for _, l := range msgLines[1:] {
			lines = append(lines, "      "+l)
		}
		lines = append(lines, formatMetadata(entry.Metadata, "      ")...)
	}
	return strings.Join(lines, "\n")
}

func formatMetadata(meta map[string]any, indent string) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, meta[k]))
	}
	return lines
}
