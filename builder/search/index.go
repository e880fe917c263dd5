// Package search builds the fuzzy index behind related posts.
//
// Every indexed field value is normalized and tokenized once. A query is
// split into terms; each term matches vocabulary tokens within an edit
// budget proportional to the match threshold. Per field, term scores are
// averaged, and the fields a document matched are combined into one score
// weighted by field. Lower scores are better.
package search

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/Kush-Singh-26/quill/builder/models"
)

// Epsilon stands in for a perfect field score so weights still apply.
const Epsilon = 1e-9

// Hit is one search result.
type Hit struct {
	Post     models.ProcessedPost
	Score    float64
	Position int // index of the post in the corpus
}

// posting locates a token inside a document field
type posting struct {
	doc    int
	field  int
	offset int
}

// Index is a read-only fuzzy index over a post corpus. It is safe for
// concurrent queries.
type Index struct {
	opts     Options
	analyzer *Analyzer
	posts    []models.ProcessedPost
	records  [][][]Token // doc -> field -> tokens

	postings map[string][]posting
	vocab    []string
	trigrams map[string][]string
}

// Build indexes posts. The result only depends on posts and opts.
func Build(posts []models.ProcessedPost, opts Options) (*Index, *Serialized, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid search options: %w", err)
	}

	analyzer := NewAnalyzer(opts.MinTokenLength)
	records := make([][][]Token, len(posts))
	for i := range posts {
		fields := make([][]Token, len(opts.Fields))
		for f, field := range opts.Fields {
			fields[f] = analyzeField(analyzer, &posts[i], field.Name)
		}
		records[i] = fields
	}

	idx := newIndex(posts, opts, records)
	return idx, idx.Serialize(), nil
}

func analyzeField(a *Analyzer, p *models.ProcessedPost, name string) []Token {
	switch name {
	case FieldTitle:
		return a.Analyze(p.Title)
	case FieldTags:
		return analyzeValues(a, p.Tags)
	case FieldCategories:
		return analyzeValues(a, p.Categories)
	case FieldBody:
		return a.Analyze(p.Body)
	}
	return nil
}

// analyzeValues tokenizes each value of a list field. Offsets restart for
// every value, so the position of a tag in the list does not count.
func analyzeValues(a *Analyzer, values []string) []Token {
	var out []Token
	for _, v := range values {
		out = append(out, a.Analyze(v)...)
	}
	return out
}

// newIndex derives the lookup structures from the per-field tokens.
func newIndex(posts []models.ProcessedPost, opts Options, records [][][]Token) *Index {
	idx := &Index{
		opts:     opts,
		analyzer: NewAnalyzer(opts.MinTokenLength),
		posts:    posts,
		records:  records,
		postings: make(map[string][]posting),
	}

	for doc, fields := range records {
		for f, tokens := range fields {
			for _, tok := range tokens {
				idx.postings[tok.Text] = append(idx.postings[tok.Text], posting{doc: doc, field: f, offset: tok.Offset})
			}
		}
	}

	idx.vocab = make([]string, 0, len(idx.postings))
	for tok := range idx.postings {
		idx.vocab = append(idx.vocab, tok)
	}
	sort.Strings(idx.vocab)
	idx.trigrams = buildNgramIndex(idx.vocab)

	return idx
}

// Options returns the options the index was built with
func (idx *Index) Options() Options {
	return idx.opts
}

// Len returns the number of indexed posts
func (idx *Index) Len() int {
	return len(idx.posts)
}

// Posts returns the indexed corpus in order. Callers must not modify it.
func (idx *Index) Posts() []models.ProcessedPost {
	return idx.posts
}

// Search returns up to limit posts matching query, best first. Equal
// scores keep corpus order.
func (idx *Index) Search(query string, limit int) []Hit {
	if limit <= 0 {
		return nil
	}
	terms := idx.analyzer.Terms(query)
	if len(terms) == 0 {
		return nil
	}

	nFields := len(idx.opts.Fields)
	nTerms := len(terms)
	// best[doc][field*nTerms+term] is the best score of term in field, -1 if none
	best := make(map[int][]float64)

	for t, term := range terms {
		termLen := float64(utf8.RuneCountInString(term))

		cands := make([]candidate, 0, 4)
		if _, ok := idx.postings[term]; ok {
			cands = append(cands, candidate{token: term})
		}
		if len(cands) == 0 || idx.opts.ExhaustiveMatching {
			cands = append(cands, idx.expand(term, allowedEdits(term, idx.opts.MatchThreshold), idx.opts.ExhaustiveMatching)...)
		}

		for _, c := range cands {
			base := float64(c.dist) / termLen
			for _, p := range idx.postings[c.token] {
				score := base
				if !idx.opts.IgnorePositionInField {
					score += float64(p.offset) / PositionDistance
				}
				if score > idx.opts.MatchThreshold {
					continue
				}

				slots, ok := best[p.doc]
				if !ok {
					slots = make([]float64, nFields*nTerms)
					for i := range slots {
						slots[i] = -1
					}
					best[p.doc] = slots
				}
				i := p.field*nTerms + t
				if slots[i] < 0 || score < slots[i] {
					slots[i] = score
				}
			}
		}
	}

	docs := make([]int, 0, len(best))
	for doc := range best {
		docs = append(docs, doc)
	}
	sort.Ints(docs)

	hits := make([]Hit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, Hit{
			Post:     idx.posts[doc],
			Score:    idx.combine(best[doc], nTerms),
			Position: doc,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score < hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// combine folds per-field term scores into the document score.
func (idx *Index) combine(slots []float64, nTerms int) float64 {
	total := 1.0
	for f, field := range idx.opts.Fields {
		matched := false
		sum := 0.0
		for t := 0; t < nTerms; t++ {
			s := slots[f*nTerms+t]
			if s < 0 {
				sum += 1
				continue
			}
			matched = true
			sum += s
		}
		if !matched {
			continue
		}
		fieldScore := math.Max(sum/float64(nTerms), Epsilon)
		total *= math.Pow(fieldScore, field.Weight)
	}
	return total
}
