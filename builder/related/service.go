package related

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/search"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Service hands out the related-posts index. The index is built, or loaded
// from the cache, at most once per Service; every caller then shares the
// same read-only handle.
type Service struct {
	store   *cache.Store
	opts    search.Options
	fp      cache.Fingerprinter
	source  PostSource
	logger  *slog.Logger
	metrics *metrics.BuildMetrics

	once  sync.Once
	idx   *search.Index
	fresh bool
	err   error
}

// New creates the service. A nil fingerprinter counts posts.
func New(store *cache.Store, opts search.Options, fp cache.Fingerprinter, source PostSource, logger *slog.Logger, m *metrics.BuildMetrics) *Service {
	if fp == nil {
		fp = cache.CountFingerprinter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewBuildMetrics()
	}
	return &Service{
		store:   store,
		opts:    opts,
		fp:      fp,
		source:  source,
		logger:  logger,
		metrics: m,
	}
}

// Index returns the ready-to-query index, loading the corpus on first use.
func (s *Service) Index(ctx context.Context) (*search.Index, error) {
	s.once.Do(func() {
		s.idx, s.fresh, s.err = s.buildOrLoad(ctx)
	})
	return s.idx, s.err
}

// Rebuilt reports whether Index had to build instead of loading the cache.
func (s *Service) Rebuilt() bool {
	return s.fresh
}

func (s *Service) buildOrLoad(ctx context.Context) (*search.Index, bool, error) {
	sources, err := s.source.Posts(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load posts: %w", err)
	}
	sig := string(s.fp.Fingerprint(sources))

	if idx, ok := s.loadCached(sig, len(sources)); ok {
		s.metrics.IncrementCacheHit(metrics.CacheIndex)
		s.logger.Debug("Loaded related-posts index from cache", "posts", idx.Len(), "fingerprint", sig)
		return idx, false, nil
	}
	s.metrics.IncrementCacheMiss(metrics.CacheIndex)

	posts := models.ProcessAll(sources, s.opts.IncludesBody())
	idx, serialized, err := search.Build(posts, s.opts)
	if err != nil {
		return nil, false, err
	}

	s.persist(sig, posts, serialized)
	return idx, true, nil
}

// loadCached returns the cached index when both documents are present,
// valid and derived from the current corpus and options.
func (s *Service) loadCached(sig string, count int) (*search.Index, bool) {
	var posts PostsDocument
	if !s.store.Load(cache.NamespacePosts, cache.PostsSchemaVersion, &posts) {
		return nil, false
	}
	if posts.Fingerprint != sig || posts.PostCount != count {
		s.logger.Debug("Posts cache is stale", "cached", posts.Fingerprint, "current", sig)
		return nil, false
	}

	var doc IndexDocument
	if !s.store.Load(cache.NamespaceIndex, cache.IndexSchemaVersion, &doc) {
		return nil, false
	}
	if doc.Fingerprint != sig || doc.PostCount != count || doc.ConfigHash != s.opts.Hash() {
		s.logger.Debug("Index cache is stale", "fingerprint", doc.Fingerprint, "configHash", doc.ConfigHash)
		return nil, false
	}

	idx, err := search.Deserialize(doc.Index, posts.Posts)
	if err != nil {
		s.logger.Warn("Cached index unusable, rebuilding", "error", err)
		return nil, false
	}
	return idx, true
}

// persist writes both documents. Failures only cost the next build time.
func (s *Service) persist(sig string, posts []models.ProcessedPost, serialized *search.Serialized) {
	postsDoc := &PostsDocument{
		SchemaVersion: cache.PostsSchemaVersion,
		PostCount:     len(posts),
		Fingerprint:   sig,
		Posts:         posts,
	}
	if err := s.store.Save(cache.NamespacePosts, postsDoc); err != nil {
		s.logger.Warn("Failed to write posts cache", "error", err)
		return
	}

	indexDoc := &IndexDocument{
		SchemaVersion: cache.IndexSchemaVersion,
		ConfigHash:    s.opts.Hash(),
		Fingerprint:   sig,
		PostCount:     len(posts),
		Index:         serialized,
	}
	if err := s.store.Save(cache.NamespaceIndex, indexDoc); err != nil {
		s.logger.Warn("Failed to write index cache", "error", err)
	}
}

// RelatedTo returns up to limit posts related to post.
func (s *Service) RelatedTo(ctx context.Context, post models.ProcessedPost, limit int) ([]models.ProcessedPost, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	return RelatedTo(idx, post, limit), nil
}

// Find returns the indexed post with the given permalink.
func (s *Service) Find(ctx context.Context, permalink string) (models.ProcessedPost, bool, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return models.ProcessedPost{}, false, err
	}
	for _, p := range idx.Posts() {
		if p.Permalink == permalink {
			return p, true, nil
		}
	}
	return models.ProcessedPost{}, false, nil
}

// RelatedAll computes related permalinks for every post using workers
// goroutines. Entries follow corpus order.
func (s *Service) RelatedAll(ctx context.Context, limit, workers int) ([]models.RelatedEntry, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}

	posts := idx.Posts()
	entries := make([]models.RelatedEntry, len(posts))

	// Each task writes only its own slot
	pool := utils.NewWorkerPool(ctx, workers, func(_ context.Context, i int) {
		entries[i] = models.RelatedEntry{
			Permalink: posts[i].Permalink,
			Related:   Permalinks(RelatedTo(idx, posts[i], limit)),
		}
		s.metrics.IncrementPostsProcessed()
	})
	pool.Start()
	for i := range posts {
		pool.Submit(i)
	}
	pool.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
