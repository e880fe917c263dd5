package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// SafeJoin joins a slash-separated request path onto base and rejects
// anything that would escape it.
func SafeJoin(base, requestPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(requestPath, "\\", "/"))
	joined := filepath.Join(base, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	rel, err := filepath.Rel(base, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", requestPath, base)
	}
	return joined, nil
}
