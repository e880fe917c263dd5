package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// RelatedFile is the build artifact written to the output directory
const RelatedFile = "related.json"

// ErrPostNotFound means no indexed post has the requested permalink
var ErrPostNotFound = errors.New("post not found")

// BuildResult summarizes one build pass
type BuildResult struct {
	Posts   int
	Rebuilt bool // index was built instead of loaded from cache
	Output  string
}

// Build loads posts, builds or loads the related-posts index and writes
// related.json.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	lock, err := b.lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	b.metrics.RecordStart()
	defer b.metrics.RecordEnd()

	b.Reset()
	svc := b.Related()

	entries, err := svc.RelatedAll(ctx, b.cfg.RelatedLimit, b.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to compute related posts: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", RelatedFile, err)
	}
	out := filepath.Join(b.cfg.OutputDir, RelatedFile)
	if err := utils.WriteFileAtomic(b.fs, out, data); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}
	b.metrics.IncrementFilesWritten()

	b.logger.Debug("Build finished", "posts", len(entries), "rebuilt", svc.Rebuilt(), "output", out)
	return &BuildResult{Posts: len(entries), Rebuilt: svc.Rebuilt(), Output: out}, nil
}

// RelatedFor returns up to limit posts related to the post at permalink
func (b *Builder) RelatedFor(ctx context.Context, permalink string, limit int) (models.ProcessedPost, []models.ProcessedPost, error) {
	svc := b.Related()
	post, ok, err := svc.Find(ctx, permalink)
	if err != nil {
		return models.ProcessedPost{}, nil, err
	}
	if !ok {
		return models.ProcessedPost{}, nil, fmt.Errorf("%w: %s", ErrPostNotFound, permalink)
	}
	rel, err := svc.RelatedTo(ctx, post, limit)
	if err != nil {
		return models.ProcessedPost{}, nil, err
	}
	return post, rel, nil
}
