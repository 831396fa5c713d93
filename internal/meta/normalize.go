package meta

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanString performs basic string cleaning (Unicode, trim, collapse)
func CleanString(s string) string {
	if s == "" {
		return ""
	}

	// Unicode NFC normalization
	s = norm.NFC.String(s)

	return collapseWhitespace(s)
}

// CleanBlob returns a copy of the metadata blob with cleaned keys and values.
// Keys are lowercased; fields whose key or value is blank after cleaning are dropped.
func CleanBlob(blob map[string]string) map[string]string {
	if len(blob) == 0 {
		return nil
	}

	out := make(map[string]string, len(blob))
	for k, v := range blob {
		key := strings.ToLower(CleanString(k))
		val := CleanString(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// collapseWhitespace replaces runs of whitespace with a single space
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
