package tdms

import (
	"fmt"
	"strings"
)

// rootPath is the TDMS object path of the file's root object.
const rootPath = "/"

// buildPath constructs the single-quoted, escaped TDMS object path for a
// group (channel == "") or a channel within a group.
func buildPath(group, channel string) string {
	if group == "" {
		return rootPath
	}
	var b strings.Builder
	b.WriteByte('/')
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(group, "'", "''"))
	b.WriteByte('\'')
	if channel != "" {
		b.WriteString("/'")
		b.WriteString(strings.ReplaceAll(channel, "'", "''"))
		b.WriteByte('\'')
	}
	return b.String()
}

// parsePath splits a TDMS object path into its unescaped segments. The
// root path "/" yields no segments. Each segment is a single-quoted,
// possibly multi-character name in which a doubled quote ('') represents
// one literal quote; a slash inside a quoted segment does not end it.
func parsePath(path string) ([]string, error) {
	if path == rootPath || path == "" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("%w: path %q must start with '/'", ErrInvalidArgument, path)
	}

	var segments []string
	i := 1
	for i < len(path) {
		if path[i] != '\'' {
			return nil, fmt.Errorf("%w: path %q: expected ' at index %d", ErrInvalidArgument, path, i)
		}
		i++ // past opening quote

		var seg strings.Builder
		closed := false
		for i < len(path) {
			if path[i] == '\'' {
				if i+1 < len(path) && path[i+1] == '\'' {
					seg.WriteByte('\'')
					i += 2
					continue
				}
				i++ // past closing quote
				closed = true
				break
			}
			seg.WriteByte(path[i])
			i++
		}
		if !closed {
			return nil, fmt.Errorf("%w: path %q: unterminated quoted segment", ErrInvalidArgument, path)
		}
		segments = append(segments, seg.String())

		if i < len(path) {
			if path[i] != '/' {
				return nil, fmt.Errorf("%w: path %q: expected '/' at index %d", ErrInvalidArgument, path, i)
			}
			i++ // past separator
		}
	}

	return segments, nil
}
