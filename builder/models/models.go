// defines the data structures shared by the content adapter, caches and search
package models

import (
	"time"
)

// SourcePost is a post as supplied by the content adapter: frontmatter plus
// the raw markdown and its rendered HTML.
type SourcePost struct {
	ID         int
	Title      string
	Date       time.Time
	Updated    *time.Time
	Author     string
	Excerpt    string
	Permalink  string
	Image      string
	Categories []string
	Tags       []string
	Draft      bool
	Series     string

	Path   string // source file, relative to the content dir
	Source []byte // raw markdown body (frontmatter stripped)
	HTML   string // rendered body
	Text   string // readable text of the body, indexed when bodies are
}

// ProcessedPost is the projection of a post used for related-content retrieval.
type ProcessedPost struct {
	Title      string   `json:"title" msgpack:"title"`
	Tags       []string `json:"tags" msgpack:"tags"`
	Categories []string `json:"categories" msgpack:"categories"`
	Permalink  string   `json:"permalink" msgpack:"permalink"`
	Image      *string  `json:"image" msgpack:"image"`
	Body       string   `json:"body,omitempty" msgpack:"body,omitempty"`
}

// Process projects a SourcePost. The body is only kept when includeBody is set.
func Process(p SourcePost, includeBody bool) ProcessedPost {
	pp := ProcessedPost{
		Title:      p.Title,
		Tags:       nonNil(p.Tags),
		Categories: nonNil(p.Categories),
		Permalink:  p.Permalink,
	}
	if p.Image != "" {
		img := p.Image
		pp.Image = &img
	}
	if includeBody {
		pp.Body = p.Text
	}
	return pp
}

// ProcessAll projects every post in corpus order.
func ProcessAll(posts []SourcePost, includeBody bool) []ProcessedPost {
	out := make([]ProcessedPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, Process(p, includeBody))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// RelatedEntry is one line of the related.json build artifact.
type RelatedEntry struct {
	Permalink string   `json:"permalink"`
	Related   []string `json:"related"`
}
