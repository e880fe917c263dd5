package cache

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Signature identifies the state of a corpus. Two corpora with equal
// signatures are treated as interchangeable by the caches.
type Signature string

// Fingerprinter computes the corpus signature stored next to cached
// documents. Implementations can be swapped without touching callers.
type Fingerprinter interface {
	Fingerprint(posts []models.SourcePost) Signature
}

// CountFingerprinter uses the number of posts. Cheap, and enough to catch
// added or removed posts.
type CountFingerprinter struct{}

func (CountFingerprinter) Fingerprint(posts []models.SourcePost) Signature {
	return Signature("count:" + strconv.Itoa(len(posts)))
}

// HashFingerprinter hashes every field a processed post is derived from,
// in corpus order, so edits and reorderings also invalidate.
type HashFingerprinter struct{}

func (HashFingerprinter) Fingerprint(posts []models.SourcePost) Signature {
	h := blake3.New()
	for i := range posts {
		p := &posts[i]
		writePostIdentity(h, p)
		writeField(h, p.Permalink)
		writeList(h, p.Tags)
		writeList(h, p.Categories)
		writeField(h, p.Image)
		_, _ = h.Write([]byte{0x1e})
	}
	return Signature("blake3:" + hex.EncodeToString(h.Sum(nil)))
}

// FingerprinterByName resolves the fingerprint setting of quill.yaml.
func FingerprinterByName(name string) (Fingerprinter, error) {
	switch name {
	case "", "count":
		return CountFingerprinter{}, nil
	case "hash":
		return HashFingerprinter{}, nil
	}
	return nil, fmt.Errorf("unknown fingerprint %q", name)
}

// PostContentHash hashes one post's id, title, date and body. It keys the
// rendered-HTML cache.
func PostContentHash(p *models.SourcePost) string {
	h := blake3.New()
	writePostIdentity(h, p)
	return hex.EncodeToString(h.Sum(nil))
}

func writePostIdentity(h *blake3.Hasher, p *models.SourcePost) {
	_, _ = h.Write([]byte(strconv.Itoa(p.ID)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(p.Title))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(p.Date.UTC().Format(time.RFC3339)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(p.Source)
}

func writeField(h *blake3.Hasher, v string) {
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(v))
}

// writeList length-prefixes the list so ["a b"] and ["a", "b"] differ
func writeList(h *blake3.Hasher, values []string) {
	writeField(h, strconv.Itoa(len(values)))
	for _, v := range values {
		writeField(h, v)
	}
}

// FingerprintFile hashes the raw bytes of a file.
func FingerprintFile(fs afero.Fs, path string) (string, error) {
	sum, err := utils.HashFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	return sum, nil
}
