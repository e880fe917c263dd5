package server

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validatePath ensures that the user-provided path is within the base directory
// and prevents path traversal attacks.
func validatePath(baseDir, userPath string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	absUserPath, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(userPath)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	relPath, err := filepath.Rel(absBase, absUserPath)
	if err != nil {
		return "", fmt.Errorf("path validation error: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected")
	}

	return absUserPath, nil
}

// normalizeRequestPath cleans the request path and converts it to forward
// slashes.
func normalizeRequestPath(rawPath string) string {
	return filepath.ToSlash(filepath.Clean("/" + rawPath))
}
