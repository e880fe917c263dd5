// Package content loads Markdown posts from the content directory and
// renders their bodies. It is the post source behind the related-posts
// index and the rendered-HTML cache.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	chroma_html "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/spf13/afero"
	admonitions "github.com/stefanfritsch/goldmark-admonitions"
	"github.com/tdewolff/minify/v2"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Frontmatter keys every post must carry
var requiredFields = []string{"id", "title", "date", "permalink"}

// HTMLStore memoizes rendered bodies by post ID and content hash
type HTMLStore interface {
	Get(postID, contentHash string) (string, bool)
	Put(postID, contentHash, html string) error
}

// Options configures a Loader. HTML and Minifier may be nil.
type Options struct {
	Dir           string
	IncludeDrafts bool
	Workers       int
	HTML          HTMLStore
	Minifier      *minify.M
	Logger        *slog.Logger
	Metrics       *metrics.BuildMetrics
}

// Loader reads every post under Dir. It implements related.PostSource.
type Loader struct {
	fs   afero.Fs
	opts Options
	md   goldmark.Markdown
}

func codeBlockWrapper(w util.BufWriter, c highlighting.CodeBlockContext, entering bool) {
	if entering {
		lang, _ := c.Language()
		if len(lang) == 0 {
			lang = []byte("text")
		}
		_, _ = w.WriteString(`<div class="code-wrapper" data-lang="` + string(lang) + `">`)
	} else {
		_, _ = w.WriteString(`</div>`)
	}
}

// NewMarkdown returns the goldmark pipeline used for posts
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			meta.Meta,
			&admonitions.Extender{},
			highlighting.NewHighlighting(
				highlighting.WithStyle("nord"),
				highlighting.WithFormatOptions(
					chroma_html.WithClasses(true),
				),
				highlighting.WithWrapperRenderer(codeBlockWrapper),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// NewLoader creates a loader over fs
func NewLoader(fs afero.Fs, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewBuildMetrics()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Loader{fs: fs, opts: opts, md: NewMarkdown()}
}

// Files lists the Markdown files under the content directory in path order
func (l *Loader) Files() ([]string, error) {
	var files []string
	err := afero.Walk(l.fs, l.opts.Dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != l.opts.Dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk content directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Posts loads, validates and renders every post. Drafts are dropped unless
// IncludeDrafts is set. Posts are ordered newest first, then by path. Any
// unreadable post fails the whole load.
func (l *Loader) Posts(ctx context.Context) ([]models.SourcePost, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	posts := make([]models.SourcePost, len(files))
	errs := make([]error, len(files))

	// Each task writes only its own slot
	pool := utils.NewWorkerPool(ctx, l.opts.Workers, func(_ context.Context, i int) {
		posts[i], errs[i] = l.Load(files[i])
	})
	pool.Start()
	for i := range files {
		pool.Submit(i)
	}
	pool.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := posts[:0]
	seen := make(map[string]string, len(posts))
	for _, p := range posts {
		if p.Draft && !l.opts.IncludeDrafts {
			continue
		}
		if prev, dup := seen[p.Permalink]; dup {
			return nil, fmt.Errorf("%w: %s and %s share permalink %s", cache.ErrSourceUnreadable, prev, p.Path, p.Permalink)
		}
		seen[p.Permalink] = p.Path
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Load parses and renders one post file
func (l *Loader) Load(path string) (models.SourcePost, error) {
	raw, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return models.SourcePost{}, fmt.Errorf("%w: %s: %v", cache.ErrSourceUnreadable, path, err)
	}

	pc := parser.NewContext()
	doc := l.md.Parser().Parse(text.NewReader(raw), parser.WithContext(pc))
	fm, err := meta.TryGet(pc)
	if err != nil {
		return models.SourcePost{}, fmt.Errorf("%w: %s: bad frontmatter: %v", cache.ErrSourceUnreadable, path, err)
	}
	for _, key := range requiredFields {
		if v, ok := fm[key]; !ok || v == nil || utils.GetString(fm, key) == "" {
			return models.SourcePost{}, fmt.Errorf("%w: %s: missing frontmatter field %q", cache.ErrSourceUnreadable, path, key)
		}
	}

	id, ok := utils.GetInt(fm, "id")
	if !ok {
		return models.SourcePost{}, fmt.Errorf("%w: %s: id is not a number", cache.ErrSourceUnreadable, path)
	}
	date, ok := utils.GetTime(fm, "date")
	if !ok {
		return models.SourcePost{}, fmt.Errorf("%w: %s: unparseable date %q", cache.ErrSourceUnreadable, path, utils.GetString(fm, "date"))
	}

	rel, err := filepath.Rel(l.opts.Dir, path)
	if err != nil {
		rel = path
	}

	post := models.SourcePost{
		ID:         id,
		Title:      utils.GetString(fm, "title"),
		Date:       date,
		Author:     utils.GetString(fm, "author"),
		Excerpt:    utils.GetString(fm, "excerpt"),
		Permalink:  utils.GetString(fm, "permalink"),
		Image:      utils.GetString(fm, "image"),
		Categories: utils.GetSlice(fm, "categories"),
		Tags:       utils.GetSlice(fm, "tags"),
		Draft:      utils.GetBool(fm, "draft"),
		Series:     utils.GetString(fm, "series"),
		Path:       filepath.ToSlash(rel),
		Source:     body(raw),
		Text:       plainText(doc, raw),
	}
	if updated, ok := utils.GetTime(fm, "updated"); ok {
		post.Updated = &updated
	}

	post.HTML, err = l.render(&post, doc, raw)
	if err != nil {
		return models.SourcePost{}, fmt.Errorf("failed to render %s: %w", path, err)
	}
	return post, nil
}

// render returns the cached body when the content hash still matches,
// otherwise renders, minifies and stores it.
func (l *Loader) render(post *models.SourcePost, doc ast.Node, raw []byte) (string, error) {
	key := strconv.Itoa(post.ID)
	hash := cache.PostContentHash(post)

	if l.opts.HTML != nil {
		if cached, ok := l.opts.HTML.Get(key, hash); ok {
			l.opts.Metrics.IncrementCacheHit(metrics.CacheHTML)
			return cached, nil
		}
		l.opts.Metrics.IncrementCacheMiss(metrics.CacheHTML)
	}

	buf := utils.SharedBufferPool.Get()
	defer utils.SharedBufferPool.Put(buf)
	if err := l.md.Renderer().Render(buf, raw, doc); err != nil {
		return "", err
	}
	out := utils.MinifyHTML(l.opts.Minifier, buf.String())

	if l.opts.HTML != nil {
		if err := l.opts.HTML.Put(key, hash, out); err != nil {
			l.opts.Logger.Warn("Failed to cache rendered HTML", "post", key, "error", err)
		}
	}
	return out, nil
}

// body strips a leading YAML frontmatter block
func body(raw []byte) []byte {
	out := raw
	if bytes.HasPrefix(raw, []byte("---")) {
		if i := bytes.Index(raw[3:], []byte("\n---")); i >= 0 {
			out = bytes.TrimLeft(raw[3+i+4:], "\r\n")
		}
	}
	return append([]byte(nil), out...)
}
