package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/Kush-Singh-26/quill/builder/assets"
)

// PrewarmResult counts the renditions requested by Prewarm
type PrewarmResult struct {
	Sources  int
	Variants int
	Missing  int
}

// Prewarm enumerates every upload's variants and requests each one through
// the image cache with ImageWorkers goroutines. Variants without a source
// are counted, not fatal.
func (b *Builder) Prewarm(ctx context.Context) (*PrewarmResult, error) {
	lock, err := b.lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	sizes := make([]assets.VariantSize, 0, len(b.cfg.Images.Sizes))
	for _, s := range b.cfg.Images.Sizes {
		sizes = append(sizes, assets.VariantSize{Label: s.Label, Width: s.Width, Height: s.Height})
	}

	sources, err := assets.Variants(b.fs, b.cfg.AssetsDir, b.cfg.UploadsDir, sizes, b.imageMeta, b.logger)
	if err != nil {
		return nil, err
	}
	if err := b.imageMeta.Flush(); err != nil {
		b.logger.Warn("Failed to save image metadata", "error", err)
	}

	res := &PrewarmResult{Sources: len(sources)}
	var missing atomic.Int64

	p := pool.New().WithMaxGoroutines(b.cfg.ImageWorkers).WithContext(ctx)
	for _, src := range sources {
		for _, v := range src.Variants {
			res.Variants++
			logical := v.Path
			p.Go(func(ctx context.Context) error {
				if _, err := b.images.Get(ctx, logical); err != nil {
					if errors.Is(err, assets.ErrNotFound) {
						missing.Add(1)
						b.logger.Warn("Variant has no source", "path", logical)
						return nil
					}
					return fmt.Errorf("failed to prewarm %s: %w", logical, err)
				}
				return nil
			})
		}
	}
	err = p.Wait()
	res.Missing = int(missing.Load())
	if err != nil {
		return res, err
	}
	return res, nil
}
