package run

import (
	"errors"

	"github.com/Kush-Singh-26/quill/builder/assets"
	"github.com/Kush-Singh-26/quill/builder/cache"
)

// NamespaceStat describes one document of the cache store
type NamespaceStat struct {
	Name   string
	Path   string
	Exists bool
	Bytes  int64
}

// CacheStats is what `quill cache stats` prints
type CacheStats struct {
	Dir        string
	Namespaces []NamespaceStat
	ImageMeta  int
	Images     int
	HTML       int // -1 when the rendered-HTML cache is not open
	HTMLBlobs  int64
}

// Stats inspects the cache directory without modifying it
func (b *Builder) Stats() (*CacheStats, error) {
	st := &CacheStats{Dir: b.cfg.CacheDir, HTML: -1}

	for _, ns := range cache.AllNamespaces() {
		st.Namespaces = append(st.Namespaces, NamespaceStat{
			Name:   ns,
			Path:   b.store.Path(ns),
			Exists: b.store.Exists(ns),
			Bytes:  b.store.Size(ns),
		})
	}
	st.ImageMeta = b.imageMeta.Len()

	n, err := assets.DiskEntries(b.fs, b.cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	st.Images = n

	if b.html != nil {
		if n, err := b.html.Len(); err == nil {
			st.HTML = n
		} else {
			b.logger.Warn("Failed to count rendered-HTML entries", "error", err)
		}
		if n, err := b.html.BlobBytes(); err == nil {
			st.HTMLBlobs = n
		}
	}
	return st, nil
}

// ErrNoHTMLCache means the rendered-HTML cache could not be opened
var ErrNoHTMLCache = errors.New("rendered-HTML cache is not open")

// CollectGarbage deletes rendered-HTML blobs that no post references
func (b *Builder) CollectGarbage(dryRun bool) (*cache.GCResult, error) {
	if b.html == nil {
		return nil, ErrNoHTMLCache
	}
	return b.html.RunGC(dryRun)
}
