package assets

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/utils"
)

// SourceExtensions are probed in order when a resized or WebP rendition
// needs its original.
var SourceExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// Size is a fixed rendition size
type Size struct {
	Width  int
	Height int
}

// resolveSource finds the file a request is derived from, relative to
// root. A pre-generated crop matching the fixed size is used as-is;
// resized and WebP requests probe the original's extensions; anything else
// must exist at its exact path.
func resolveSource(fs afero.Fs, root string, req Request, fixed Size) (string, error) {
	exists := func(logical string) (string, bool) {
		full, err := utils.SafeJoin(root, logical)
		if err != nil {
			return "", false
		}
		info, err := fs.Stat(full)
		if err != nil || info.IsDir() {
			return "", false
		}
		return full, true
	}

	if req.Resized() && fixed.Width > 0 && *req.Width == fixed.Width && *req.Height == fixed.Height {
		variant := fmt.Sprintf("%s-%dx%d", req.base(), fixed.Width, fixed.Height)
		for _, ext := range SourceExtensions {
			if full, ok := exists(variant + ext); ok {
				return full, nil
			}
		}
	}

	if req.Resized() || req.WebP {
		base := req.base()
		for _, ext := range SourceExtensions {
			if full, ok := exists(base + ext); ok {
				return full, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, req.Path)
	}

	if full, ok := exists(req.Path); ok {
		return full, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, req.Path)
}

// sourceExt is the lower-cased extension of a resolved source file
func sourceExt(p string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))
}
