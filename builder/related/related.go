// Package related computes "related posts" from a fuzzy index over post
// metadata, and owns the cache documents that let a build skip rebuilding
// that index.
package related

import (
	"context"
	"strings"

	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/search"
)

// DefaultLimit is the number of related posts shown under a post
const DefaultLimit = 3

// Query builds the composite query for a post: its tags, then its
// categories, space separated.
func Query(post models.ProcessedPost) string {
	return strings.Join(post.Tags, " ") + " " + strings.Join(post.Categories, " ")
}

// RelatedTo returns up to limit posts related to post, best match first.
// Posts without tags or without categories have no related posts. The post
// itself is never part of the result.
func RelatedTo(idx *search.Index, post models.ProcessedPost, limit int) []models.ProcessedPost {
	if limit < 0 {
		limit = 0
	}
	out := make([]models.ProcessedPost, 0, limit)
	if idx == nil || limit == 0 || len(post.Tags) == 0 || len(post.Categories) == 0 {
		return out
	}

	// One extra hit absorbs the post itself
	for _, hit := range idx.Search(Query(post), limit+1) {
		if hit.Post.Permalink == post.Permalink {
			continue
		}
		out = append(out, hit.Post)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Permalinks maps posts to their permalinks
func Permalinks(posts []models.ProcessedPost) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Permalink
	}
	return out
}

// PostSource supplies the corpus. Errors are fatal for the build.
type PostSource interface {
	Posts(ctx context.Context) ([]models.SourcePost, error)
}

// PostSourceFunc adapts a function to PostSource
type PostSourceFunc func(ctx context.Context) ([]models.SourcePost, error)

func (f PostSourceFunc) Posts(ctx context.Context) ([]models.SourcePost, error) {
	return f(ctx)
}
