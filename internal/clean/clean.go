// Package clean removes cache directories.
package clean

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/cache"
)

// Result lists what Run removed
type Result struct {
	Removed []string
	Elapsed time.Duration
}

// Run deletes the search-index directory under cacheDir, or the whole
// cache directory when all is set. Missing directories are not an error.
func Run(fs afero.Fs, cacheDir string, all bool) (*Result, error) {
	start := time.Now()
	targets := []string{filepath.Join(cacheDir, cache.IndexDir)}
	if all {
		targets = []string{cacheDir}
	}

	res := &Result{}
	for _, target := range targets {
		removed, err := removeDir(fs, target)
		if err != nil {
			return res, err
		}
		if removed {
			res.Removed = append(res.Removed, target)
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func removeDir(fs afero.Fs, path string) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		return false, nil
	}

	if err := fs.RemoveAll(path); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return true, nil
}
