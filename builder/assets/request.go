// Package assets serves derived images: resized and re-encoded renditions
// of uploads, cached in memory and on disk and invalidated by the content
// hash of the source file.
package assets

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotFound means no source file resolves for a requested path.
var ErrNotFound = errors.New("asset not found")

// DefaultMaxDimension bounds the width and height a request may ask for
const DefaultMaxDimension = 4096

var resizePattern = regexp.MustCompile(`(?i)-(\d+)x(\d+)(\.webp|\.png|\.jpg|\.jpeg|\.gif)$`)

// Request is a parsed derived-asset path such as
// uploads/2023/05/photo-300x300.webp.
type Request struct {
	Path   string // logical path, slash separated, no leading slash
	Width  *int
	Height *int
	WebP   bool
}

// ParseRequest parses a logical path. Dimensions are set only when the
// name carries a -WxH suffix, and neither may exceed maxDimension
// (DefaultMaxDimension when not positive).
func ParseRequest(logicalPath string, maxDimension int) (Request, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}

	p := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(logicalPath, "\\", "/")), "/")
	if p == "" || p == "." {
		return Request{}, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	req := Request{
		Path: p,
		WebP: strings.EqualFold(path.Ext(p), ".webp"),
	}

	if m := resizePattern.FindStringSubmatch(p); m != nil {
		w, errW := strconv.Atoi(m[1])
		h, errH := strconv.Atoi(m[2])
		if errW != nil || errH != nil || w <= 0 || h <= 0 {
			return Request{}, fmt.Errorf("%w: bad dimensions in %s", ErrNotFound, p)
		}
		if w > maxDimension || h > maxDimension {
			return Request{}, fmt.Errorf("%w: %dx%d exceeds %d in %s", ErrNotFound, w, h, maxDimension, p)
		}
		req.Width = &w
		req.Height = &h
	}
	return req, nil
}

// Resized reports whether the request carries dimensions
func (r Request) Resized() bool {
	return r.Width != nil && r.Height != nil
}

// base strips a -WxH suffix and any extension from the path
func (r Request) base() string {
	p := r.Path
	if loc := resizePattern.FindStringIndex(p); loc != nil {
		return p[:loc[0]]
	}
	return strings.TrimSuffix(p, path.Ext(p))
}

func (r Request) String() string {
	if r.Resized() {
		return fmt.Sprintf("%s (%dx%d, webp=%v)", r.Path, *r.Width, *r.Height, r.WebP)
	}
	return fmt.Sprintf("%s (webp=%v)", r.Path, r.WebP)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
