package utils

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// HashContent computes the BLAKE3 hash of content and returns it hex encoded
func HashContent(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString computes the BLAKE3 hash of a string
func HashString(s string) string {
	return HashContent([]byte(s))
}

// HashFile streams a file through BLAKE3. Modification times are ignored on
// purpose: they do not survive checkouts or CI caches.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
