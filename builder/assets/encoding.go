package assets

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/median"
)

// Kind is an output format
type Kind int

const (
	KindWebP Kind = iota
	KindPNG
	KindJPEG
	KindGIF
)

func (k Kind) String() string {
	switch k {
	case KindWebP:
		return "webp"
	case KindPNG:
		return "png"
	case KindJPEG:
		return "jpeg"
	case KindGIF:
		return "gif"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ContentType is the MIME type served for the kind
func (k Kind) ContentType() string {
	return "image/" + k.String()
}

// validContentType reports whether ct is one the cache can produce
func validContentType(ct string) bool {
	for _, k := range []Kind{KindWebP, KindPNG, KindJPEG, KindGIF} {
		if k.ContentType() == ct {
			return true
		}
	}
	return false
}

// Encoding describes how a rendition is written. Quality applies to WebP
// and JPEG, PaletteColors to PNG and GIF, CompressionLevel to PNG.
type Encoding struct {
	Kind             Kind
	Quality          int
	PaletteColors    int
	CompressionLevel png.CompressionLevel
}

// EncodingSettings holds the per-kind defaults used by EncodingFor
type EncodingSettings struct {
	WebPQuality   int
	JPEGQuality   int
	PaletteColors int
}

// DefaultEncodingSettings matches the values the site has always shipped
func DefaultEncodingSettings() EncodingSettings {
	return EncodingSettings{WebPQuality: 80, JPEGQuality: 90, PaletteColors: 256}
}

// EncodingFor picks the output encoding: WebP when requested, otherwise
// the source's own format with JPEG as the fallback.
func (s EncodingSettings) EncodingFor(req Request, srcExt string) Encoding {
	if req.WebP {
		return Encoding{Kind: KindWebP, Quality: s.WebPQuality}
	}
	switch srcExt {
	case ".png":
		return Encoding{Kind: KindPNG, PaletteColors: s.PaletteColors, CompressionLevel: png.BestCompression}
	case ".gif":
		return Encoding{Kind: KindGIF, PaletteColors: s.PaletteColors}
	default:
		return Encoding{Kind: KindJPEG, Quality: s.JPEGQuality}
	}
}

// Encode writes img to w in the encoding's format
func (e Encoding) Encode(w io.Writer, img image.Image) error {
	switch e.Kind {
	case KindWebP:
		return encodeWebP(w, img, e.Quality)
	case KindPNG:
		return encodePalettePNG(w, img, e.PaletteColors, e.CompressionLevel)
	case KindJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
	case KindGIF:
		return imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(clampColors(e.PaletteColors)))
	default:
		return fmt.Errorf("unsupported output kind %v", e.Kind)
	}
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: float32(quality)})
}

func encodePalettePNG(w io.Writer, img image.Image, colors int, level png.CompressionLevel) error {
	paletted := quantize(img, clampColors(colors))
	return imaging.Encode(w, paletted, imaging.PNG, imaging.PNGCompressionLevel(level))
}

func clampColors(n int) int {
	if n < 2 {
		return 2
	}
	if n > 256 {
		return 256
	}
	return n
}

// quantize reduces img to at most n colours with a median-cut palette and
// dithers the image onto it.
func quantize(img image.Image, n int) *image.Paletted {
	bounds := img.Bounds()
	palette := median.Quantizer(n).Quantize(make(color.Palette, 0, n), img)
	if len(palette) == 0 {
		palette = append(palette, color.NRGBA{})
	}

	out := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette)
	draw.FloydSteinberg.Draw(out, out.Bounds(), img, bounds.Min)
	return out
}
