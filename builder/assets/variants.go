package assets

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// VariantSize is a named rendition. A zero dimension follows the original
// aspect ratio.
type VariantSize struct {
	Label  string
	Width  int
	Height int
}

// Variant is one servable rendition of an upload. Path is a logical path
// relative to the assets root.
type Variant struct {
	Label  string
	Path   string
	Width  int
	Height int
}

// ImageVariants groups the renditions of one source file
type ImageVariants struct {
	Source   string
	Variants []Variant
}

// DimensionSource reports the pixel size of an image file
type DimensionSource interface {
	Dimensions(path string) (int, int, error)
}

// Variants walks uploadsDir and lists, for every source image, the
// original, its WebP twin and each size strictly smaller than the original
// (with a WebP twin). Files that are themselves -WxH crops are skipped.
func Variants(afs afero.Fs, root, uploadsDir string, sizes []VariantSize, dims DimensionSource, logger *slog.Logger) ([]ImageVariants, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var out []ImageVariants
	err := afero.Walk(afs, uploadsDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := path.Ext(info.Name())
		if !isSourceExt(strings.ToLower(ext)) || resizePattern.MatchString(info.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("upload %s is outside %s", p, root)
		}
		logical := filepath.ToSlash(rel)
		stem := strings.TrimSuffix(logical, ext)

		w, h, derr := dims.Dimensions(p)
		if derr != nil {
			logger.Warn("Could not read image dimensions", "path", p, "error", derr)
		}

		iv := ImageVariants{
			Source: logical,
			Variants: []Variant{
				{Label: "original", Path: logical, Width: w, Height: h},
				{Label: "original-webp", Path: stem + ".webp", Width: w, Height: h},
			},
		}

		if derr == nil && w > 0 && h > 0 {
			for _, size := range sizes {
				rw, rh := scaledSize(size, w, h)
				if rw <= 0 || rh <= 0 || rw >= w || rh >= h {
					continue
				}
				resized := fmt.Sprintf("%s-%dx%d", stem, rw, rh)
				iv.Variants = append(iv.Variants,
					Variant{Label: size.Label, Path: resized + ext, Width: rw, Height: rh},
					Variant{Label: size.Label + "-webp", Path: resized + ".webp", Width: rw, Height: rh},
				)
			}
		}

		out = append(out, iv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate uploads: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// scaledSize fills a zero dimension from the original aspect ratio
func scaledSize(size VariantSize, w, h int) (int, int) {
	rw, rh := size.Width, size.Height
	if rw == 0 && rh == 0 {
		return 0, 0
	}
	if rw == 0 {
		rw = int(math.Round(float64(rh) * float64(w) / float64(h)))
	}
	if rh == 0 {
		rh = int(math.Round(float64(rw) * float64(h) / float64(w)))
	}
	return rw, rh
}

func isSourceExt(ext string) bool {
	for _, e := range SourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
