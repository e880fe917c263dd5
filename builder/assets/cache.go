package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/locker"
	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

const metaSuffix = ".meta.json"

// Meta describes a cached rendition. A disk entry is only reused when every
// field matches what the current source would produce.
type Meta struct {
	ContentType string `json:"contentType"`
	SourceHash  string `json:"sourceHash"`
	Width       *int   `json:"width"`
	Height      *int   `json:"height"`
	IsWebP      bool   `json:"isWebP"`
}

func (m Meta) matches(o Meta) bool {
	return m.ContentType == o.ContentType &&
		m.SourceHash == o.SourceHash &&
		m.IsWebP == o.IsWebP &&
		intPtrEqual(m.Width, o.Width) &&
		intPtrEqual(m.Height, o.Height)
}

// Asset is an encoded rendition ready to serve
type Asset struct {
	Data []byte
	Meta Meta
}

// Config wires a Cache. Root is the directory logical paths resolve
// against; CacheDir holds the images/ directory.
type Config struct {
	Fs         afero.Fs
	Root       string
	CacheDir   string
	Fixed      Size
	MaxSize    int // largest width or height served, DefaultMaxDimension when zero
	Encoding   EncodingSettings
	Transcoder Transcoder
	Logger     *slog.Logger
	Metrics    *metrics.BuildMetrics
}

// Cache produces derived images. Renditions are kept in memory for the
// life of the process and written through to disk in the background.
type Cache struct {
	fs         afero.Fs
	root       string
	dir        string
	fixed      Size
	maxSize    int
	encoding   EncodingSettings
	transcoder Transcoder
	logger     *slog.Logger
	metrics    *metrics.BuildMetrics

	keys *locker.Locker

	mu     sync.RWMutex
	memory map[string]*Asset

	writes sync.WaitGroup
}

// New creates a Cache. Zero-valued fields fall back to OsFs, the default
// encodings, ImagingTranscoder and slog.Default.
func New(cfg Config) *Cache {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Encoding == (EncodingSettings{}) {
		cfg.Encoding = DefaultEncodingSettings()
	}
	if cfg.Transcoder == nil {
		cfg.Transcoder = ImagingTranscoder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewBuildMetrics()
	}
	return &Cache{
		fs:         cfg.Fs,
		root:       cfg.Root,
		dir:        filepath.Join(cfg.CacheDir, cache.ImagesDir),
		fixed:      cfg.Fixed,
		maxSize:    cfg.MaxSize,
		encoding:   cfg.Encoding,
		transcoder: cfg.Transcoder,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		keys:       locker.NewLocker(),
		memory:     make(map[string]*Asset),
	}
}

// Key is the on-disk name for a logical path
func Key(logicalPath string) string {
	return utils.HashString(logicalPath)
}

// Get returns the rendition for a logical path such as
// uploads/2023/05/photo-300x300.webp. Missing sources yield ErrNotFound.
func (c *Cache) Get(ctx context.Context, logicalPath string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := ParseRequest(logicalPath, c.maxSize)
	if err != nil {
		return nil, err
	}
	key := Key(req.Path)

	c.keys.Lock(key)
	defer c.keys.Unlock(key)

	c.mu.RLock()
	asset, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.IncrementCacheHit(metrics.CacheImageMemory)
		return asset, nil
	}

	src, err := resolveSource(c.fs, c.root, req, c.fixed)
	if err != nil {
		return nil, err
	}
	srcHash, err := cache.FingerprintFile(c.fs, src)
	if err != nil {
		return nil, err
	}

	enc := c.encoding.EncodingFor(req, sourceExt(src))
	want := Meta{
		ContentType: enc.Kind.ContentType(),
		SourceHash:  srcHash,
		Width:       req.Width,
		Height:      req.Height,
		IsWebP:      req.WebP,
	}

	if asset, ok := c.readDisk(key, want); ok {
		c.metrics.IncrementCacheHit(metrics.CacheImageDisk)
		c.remember(key, asset)
		return asset, nil
	}
	c.metrics.IncrementCacheMiss(metrics.CacheImageDisk)

	data, err := c.transcode(src, req, enc)
	if err != nil {
		return nil, err
	}
	c.metrics.IncrementImagesProcessed()

	asset = &Asset{Data: data, Meta: want}
	c.remember(key, asset)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		c.writeDisk(key, asset)
	}()

	return asset, nil
}

func (c *Cache) transcode(src string, req Request, enc Encoding) ([]byte, error) {
	f, err := c.fs.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	data, err := c.transcoder.Transcode(f, req.Width, req.Height, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to transcode %s: %w", req.Path, err)
	}
	c.logger.Debug("Transcoded image", "request", req.String(), "source", src, "bytes", len(data))
	return data, nil
}

func (c *Cache) remember(key string, asset *Asset) {
	c.mu.Lock()
	c.memory[key] = asset
	c.mu.Unlock()
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.dir, key)
}

// readDisk returns the stored rendition when its meta is readable, valid
// and equal to want. Anything else is a miss.
func (c *Cache) readDisk(key string, want Meta) (*Asset, bool) {
	raw, err := afero.ReadFile(c.fs, c.blobPath(key)+metaSuffix)
	if err != nil {
		return nil, false
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		c.logger.Warn("Corrupt image meta, regenerating", "key", key, "error", err)
		return nil, false
	}
	if !validContentType(meta.ContentType) || !meta.matches(want) {
		return nil, false
	}

	data, err := afero.ReadFile(c.fs, c.blobPath(key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return &Asset{Data: data, Meta: meta}, true
}

// writeDisk stores the blob before its meta so a reader never sees meta
// without data.
func (c *Cache) writeDisk(key string, asset *Asset) {
	meta, err := json.Marshal(asset.Meta)
	if err != nil {
		c.logger.Warn("Failed to encode image meta", "key", key, "error", err)
		return
	}
	if err := utils.WriteFileAtomic(c.fs, c.blobPath(key), asset.Data); err != nil {
		c.logger.Warn("Failed to write cached image", "key", key, "error", err)
		return
	}
	if err := utils.WriteFileAtomic(c.fs, c.blobPath(key)+metaSuffix, meta); err != nil {
		c.logger.Warn("Failed to write image meta", "key", key, "error", err)
		return
	}
	c.metrics.IncrementFilesWritten()
}

// Len is the number of renditions held in memory
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

// Close waits for pending disk writes
func (c *Cache) Close() error {
	c.writes.Wait()
	return nil
}

// DiskEntries counts the renditions stored under cacheDir
func DiskEntries(fs afero.Fs, cacheDir string) (int, error) {
	entries, err := afero.ReadDir(fs, filepath.Join(cacheDir, cache.ImagesDir))
	if err != nil {
		if exists, _ := afero.DirExists(fs, filepath.Join(cacheDir, cache.ImagesDir)); !exists {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cached images: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), metaSuffix) {
			n++
		}
	}
	return n, nil
}
