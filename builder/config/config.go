// Package config holds the tunable settings of a quill build. Defaults can be
// overridden by quill.yaml, and the CLI may override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Kush-Singh-26/quill/builder/search"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// DefaultFile is the configuration file looked up in the working directory
const DefaultFile = "quill.yaml"

// Config contains all tunable build parameters
type Config struct {
	// Directories
	ContentDir string `yaml:"contentDir"` // Markdown posts (default: content/posts)
	AssetsDir  string `yaml:"assetsDir"`  // Root of /wp-content/ requests (default: wp-content)
	UploadsDir string `yaml:"uploadsDir"` // Images enumerated by prewarm (default: wp-content/uploads)
	OutputDir  string `yaml:"outputDir"`  // Build artifacts (default: public)
	CacheDir   string `yaml:"cacheDir"`   // Cache root (default: .quill-cache)

	// Cache settings
	Codec          string        `yaml:"codec"`          // json or msgpack (default: json)
	Fingerprint    string        `yaml:"fingerprint"`    // count or hash (default: count)
	CacheDBTimeout time.Duration `yaml:"cacheDBTimeout"` // BoltDB open timeout (default: 10s)

	// Worker settings
	Workers      int `yaml:"workers"`      // Related-posts workers (default: CPU count, max 12)
	ImageWorkers int `yaml:"imageWorkers"` // Parallel image prewarm workers (default: 8)

	// Content
	IncludeDrafts bool `yaml:"includeDrafts"` // Load posts marked draft (default: false)
	IncludeBody   bool `yaml:"includeBody"`   // Index rendered bodies for related posts (default: false)
	RelatedLimit  int  `yaml:"relatedLimit"`  // Related posts per post (default: 3)
	MinifyHTML    bool `yaml:"minifyHTML"`    // Minify HTML before caching it (default: true)

	Search SearchConfig `yaml:"search"`
	Images ImageConfig  `yaml:"images"`

	// Server and watcher
	Addr             string        `yaml:"addr"`             // Listen address for serve (default: localhost:4321)
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"`  // Server shutdown timeout (default: 5s)
	DebounceDuration time.Duration `yaml:"debounceDuration"` // File watcher debounce (default: 500ms)
}

// SearchConfig tunes the related-posts index. Changing any value makes the
// persisted index stale.
type SearchConfig struct {
	Fields                []search.Field `yaml:"fields"`
	MatchThreshold        float64        `yaml:"matchThreshold"`
	IgnorePositionInField bool           `yaml:"ignorePositionInField"`
	ExhaustiveMatching    bool           `yaml:"exhaustiveMatching"`
	MinTokenLength        int            `yaml:"minTokenLength"`
}

// VariantSize is a resized rendition enumerated for every upload. A zero
// dimension is derived from the original aspect ratio.
type VariantSize struct {
	Label  string `yaml:"label"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// ImageConfig holds encoder settings and the variant sizes.
type ImageConfig struct {
	WebPQuality   int           `yaml:"webpQuality"`   // default: 80
	JPEGQuality   int           `yaml:"jpegQuality"`   // default: 90
	PaletteColors int           `yaml:"paletteColors"` // PNG palette size (default: 256)
	MaxDimension  int           `yaml:"maxDimension"`  // Largest -WxH served (default: 4096)
	Thumbnail     VariantSize   `yaml:"thumbnail"`     // Pre-generated crop used as-is when present (default: 150x150)
	Sizes         []VariantSize `yaml:"sizes"`
}

// Default returns the default configuration
func Default() *Config {
	opts := search.DefaultOptions(false)
	return &Config{
		ContentDir: "content/posts",
		AssetsDir:  "wp-content",
		UploadsDir: "wp-content/uploads",
		OutputDir:  "public",
		CacheDir:   ".quill-cache",

		Codec:          "json",
		Fingerprint:    "count",
		CacheDBTimeout: 10 * time.Second,

		Workers:      utils.GetDefaultWorkerCount(),
		ImageWorkers: 8,

		RelatedLimit: 3,
		MinifyHTML:   true,

		Search: SearchConfig{
			Fields:                opts.Fields,
			MatchThreshold:        opts.MatchThreshold,
			IgnorePositionInField: opts.IgnorePositionInField,
			ExhaustiveMatching:    opts.ExhaustiveMatching,
			MinTokenLength:        opts.MinTokenLength,
		},
		Images: ImageConfig{
			WebPQuality:   80,
			JPEGQuality:   90,
			PaletteColors: 256,
			MaxDimension:  4096,
			Thumbnail:     VariantSize{Label: "thumbnail", Width: 150, Height: 150},
			Sizes: []VariantSize{
				{Label: "thumbnail", Width: 150, Height: 150},
				{Label: "medium", Width: 185, Height: 185},
				{Label: "medium_large", Width: 636},
			},
		},

		Addr:             "localhost:4321",
		ShutdownTimeout:  5 * time.Second,
		DebounceDuration: 500 * time.Millisecond,
	}
}

// Load reads path from fs over the defaults. A missing file yields the
// defaults. A malformed file yields the defaults and an error the caller
// may report.
func Load(fsys afero.Fs, path string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	parsed := Default()
	if err := yaml.Unmarshal(data, parsed); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(parsed.Search.Fields) == 0 {
		parsed.Search.Fields = cfg.Search.Fields
	}
	if len(parsed.Images.Sizes) == 0 {
		parsed.Images.Sizes = cfg.Images.Sizes
	}

	parsed.validate()
	return parsed, nil
}

// SearchOptions returns the index options. The body field is added when
// IncludeBody is set and the field list does not already name it.
func (c *Config) SearchOptions() search.Options {
	fields := make([]search.Field, len(c.Search.Fields))
	copy(fields, c.Search.Fields)

	opts := search.Options{
		Fields:                fields,
		MatchThreshold:        c.Search.MatchThreshold,
		IgnorePositionInField: c.Search.IgnorePositionInField,
		ExhaustiveMatching:    c.Search.ExhaustiveMatching,
		MinTokenLength:        c.Search.MinTokenLength,
	}
	if c.IncludeBody && !opts.IncludesBody() {
		opts.Fields = append(opts.Fields, search.Field{Name: search.FieldBody, Weight: 1.0})
	}
	return opts
}

// Validate clamps values again after command-line overrides
func (c *Config) Validate() {
	c.validate()
}

// validate ensures configuration values are within reasonable bounds
func (c *Config) validate() {
	// Workers
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Workers > utils.MaxWorkers {
		c.Workers = utils.MaxWorkers
	}
	if c.ImageWorkers < 1 {
		c.ImageWorkers = 1
	}
	if c.ImageWorkers > 64 {
		c.ImageWorkers = 64
	}

	if c.RelatedLimit < 0 {
		c.RelatedLimit = 0
	}

	// Search
	if c.Search.MatchThreshold < 0 {
		c.Search.MatchThreshold = 0
	}
	if c.Search.MatchThreshold > 1 {
		c.Search.MatchThreshold = 1
	}
	if c.Search.MinTokenLength < 1 {
		c.Search.MinTokenLength = 1
	}

	// Images
	c.Images.WebPQuality = clamp(c.Images.WebPQuality, 1, 100)
	c.Images.JPEGQuality = clamp(c.Images.JPEGQuality, 1, 100)
	c.Images.PaletteColors = clamp(c.Images.PaletteColors, 2, 256)
	c.Images.MaxDimension = clamp(c.Images.MaxDimension, 16, 16384)

	// Timeouts
	if c.CacheDBTimeout < 1*time.Second {
		c.CacheDBTimeout = 1 * time.Second
	}
	if c.ShutdownTimeout < 1*time.Second {
		c.ShutdownTimeout = 1 * time.Second
	}
	if c.ShutdownTimeout > 60*time.Second {
		c.ShutdownTimeout = 60 * time.Second
	}
	if c.DebounceDuration < 10*time.Millisecond {
		c.DebounceDuration = 10 * time.Millisecond
	}
	if c.DebounceDuration > 5*time.Second {
		c.DebounceDuration = 5 * time.Second
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
