package cache

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"sync"

	_ "github.com/chai2010/webp"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ImageMeta is the cached size of one image file.
type ImageMeta struct {
	Width  int   `json:"width" msgpack:"width"`
	Height int   `json:"height" msgpack:"height"`
	Mtime  int64 `json:"mtime" msgpack:"mtime"`
}

func (m ImageMeta) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Width, validation.Required, validation.Min(1)),
		validation.Field(&m.Height, validation.Required, validation.Min(1)),
		validation.Field(&m.Mtime, validation.Min(int64(0))),
	)
}

// ImageMetaDocument is the image-metadata namespace.
type ImageMetaDocument struct {
	SchemaVersion int                  `json:"schemaVersion" msgpack:"schema_version"`
	Entries       map[string]ImageMeta `json:"entries" msgpack:"entries"`
}

func (d *ImageMetaDocument) Version() int { return d.SchemaVersion }

func (d *ImageMetaDocument) Validate() error {
	if d.Entries == nil {
		return fmt.Errorf("entries: cannot be blank")
	}
	for path, m := range d.Entries {
		if path == "" {
			return fmt.Errorf("entries: empty path")
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("entries[%s]: %w", path, err)
		}
	}
	return nil
}

// ImageMetaCache remembers image dimensions by path, trusting an entry while
// the file's modification time is unchanged.
type ImageMetaCache struct {
	store *Store
	mu    sync.Mutex
	doc   ImageMetaDocument
	dirty bool
}

// OpenImageMetaCache loads the namespace. A missing or invalid document
// starts empty.
func OpenImageMetaCache(store *Store) *ImageMetaCache {
	c := &ImageMetaCache{store: store}
	if !store.Load(NamespaceImageMeta, ImageMetaSchemaVersion, &c.doc) {
		c.doc = ImageMetaDocument{
			SchemaVersion: ImageMetaSchemaVersion,
			Entries:       make(map[string]ImageMeta),
		}
	}
	return c
}

// Dimensions returns width and height of the image at path. Entries are
// keyed by absolute path.
func (c *ImageMetaCache) Dimensions(path string) (int, int, error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	fs := c.store.Fs()
	info, err := fs.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	mtime := info.ModTime().UnixMilli()

	c.mu.Lock()
	m, ok := c.doc.Entries[key]
	c.mu.Unlock()
	if ok && m.Mtime == mtime {
		return m.Width, m.Height, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	cfg, _, err := image.DecodeConfig(f)
	_ = f.Close()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config %s: %w", path, err)
	}

	c.mu.Lock()
	c.doc.Entries[key] = ImageMeta{Width: cfg.Width, Height: cfg.Height, Mtime: mtime}
	c.dirty = true
	c.mu.Unlock()

	return cfg.Width, cfg.Height, nil
}

// Len returns the number of cached entries
func (c *ImageMetaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.doc.Entries)
}

// Flush persists the document when anything changed.
func (c *ImageMetaCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := c.store.Save(NamespaceImageMeta, &c.doc); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
