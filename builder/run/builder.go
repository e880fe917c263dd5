// Package run wires the caches, the content loader and the related-posts
// service into the operations exposed by the quill command.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/assets"
	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/config"
	"github.com/Kush-Singh-26/quill/builder/content"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/related"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Options tunes NewBuilder. The rendered-HTML cache needs a real
// filesystem; it is skipped when NoHTMLCache is set.
type Options struct {
	Fs          afero.Fs
	Logger      *slog.Logger
	NoHTMLCache bool
}

// Builder holds the long-lived caches for one process. Each Build uses a
// fresh related-posts service so that watch mode sees new content.
type Builder struct {
	cfg     *config.Config
	fs      afero.Fs
	logger  *slog.Logger
	metrics *metrics.BuildMetrics

	store     *cache.Store
	html      *cache.HTMLCache
	imageMeta *cache.ImageMetaCache
	images    *assets.Cache
	loader    *content.Loader
	fp        cache.Fingerprinter

	mu      sync.Mutex
	related *related.Service

	closeOnce sync.Once
	closeErr  error
}

// NewBuilder opens the caches under cfg.CacheDir
func NewBuilder(cfg *config.Config, opts Options) (*Builder, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	codec, err := cache.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	fp, err := cache.FingerprinterByName(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		cfg:     cfg,
		fs:      opts.Fs,
		logger:  opts.Logger,
		metrics: metrics.NewBuildMetrics(),
		fp:      fp,
	}
	b.store = cache.NewStore(opts.Fs, cfg.CacheDir, codec, opts.Logger)
	b.imageMeta = cache.OpenImageMetaCache(b.store)

	if !opts.NoHTMLCache {
		b.html, err = cache.OpenHTMLCache(filepath.Join(cfg.CacheDir, cache.RenderedHTMLDir), cfg.CacheDBTimeout, opts.Logger)
		if err != nil {
			// The build still works, it just renders every post
			opts.Logger.Warn("Rendered-HTML cache unavailable", "error", err)
			b.html = nil
		}
	}

	loaderOpts := content.Options{
		Dir:           cfg.ContentDir,
		IncludeDrafts: cfg.IncludeDrafts,
		Workers:       cfg.Workers,
		Logger:        opts.Logger,
		Metrics:       b.metrics,
	}
	if b.html != nil {
		loaderOpts.HTML = b.html
	}
	if cfg.MinifyHTML {
		loaderOpts.Minifier = utils.NewHTMLMinifier()
	}
	b.loader = content.NewLoader(opts.Fs, loaderOpts)

	b.images = assets.New(assets.Config{
		Fs:       opts.Fs,
		Root:     cfg.AssetsDir,
		CacheDir: cfg.CacheDir,
		Fixed:    assets.Size{Width: cfg.Images.Thumbnail.Width, Height: cfg.Images.Thumbnail.Height},
		MaxSize:  cfg.Images.MaxDimension,
		Encoding: assets.EncodingSettings{
			WebPQuality:   cfg.Images.WebPQuality,
			JPEGQuality:   cfg.Images.JPEGQuality,
			PaletteColors: cfg.Images.PaletteColors,
		},
		Logger:  opts.Logger,
		Metrics: b.metrics,
	})

	return b, nil
}

// Config returns the builder's configuration
func (b *Builder) Config() *config.Config {
	return b.cfg
}

// Metrics returns the counters shared by every cache of this builder
func (b *Builder) Metrics() *metrics.BuildMetrics {
	return b.metrics
}

// Images returns the derived-asset cache
func (b *Builder) Images() *assets.Cache {
	return b.images
}

// Related returns the current related-posts service, creating it on first
// use.
func (b *Builder) Related() *related.Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.related == nil {
		b.related = b.newRelated()
	}
	return b.related
}

// Reset drops the related-posts service so the next call reloads content
func (b *Builder) Reset() {
	b.mu.Lock()
	b.related = nil
	b.mu.Unlock()
}

func (b *Builder) newRelated() *related.Service {
	return related.New(b.store, b.cfg.SearchOptions(), b.fp, b.loader, b.logger, b.metrics)
}

// Close waits for pending image writes, persists image metadata and closes
// the rendered-HTML cache. Later calls return the first result.
func (b *Builder) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.close()
	})
	return b.closeErr
}

func (b *Builder) close() error {
	var firstErr error
	if err := b.images.Close(); err != nil {
		firstErr = err
	}
	if err := b.imageMeta.Flush(); err != nil {
		b.logger.Warn("Failed to save image metadata", "error", err)
	}
	if b.html != nil {
		if err := b.html.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close rendered-HTML cache: %w", err)
		}
	}
	return firstErr
}

// Image runs one derived-asset request
func (b *Builder) Image(ctx context.Context, logicalPath string) (*assets.Asset, error) {
	return b.images.Get(ctx, logicalPath)
}

// lock guards the cache directory against a concurrent build or prewarm in
// another process. In-memory filesystems are not locked.
func (b *Builder) lock() (*utils.FileLock, error) {
	if _, ok := b.fs.(*afero.OsFs); !ok {
		return nil, nil
	}
	return utils.AcquireLock(b.cfg.CacheDir)
}
