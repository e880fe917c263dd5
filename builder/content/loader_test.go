package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/testutil"
	"github.com/Kush-Singh-26/quill/builder/utils"
)

type memHTML struct {
	mu      sync.Mutex
	entries map[string][2]string
	puts    int
}

func newMemHTML() *memHTML { return &memHTML{entries: make(map[string][2]string)} }

func (m *memHTML) Get(id, hash string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e[0] != hash {
		return "", false
	}
	return e[1], true
}

func (m *memHTML) Put(id, hash, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = [2]string{hash, html}
	m.puts++
	return nil
}

func newLoader(fs afero.Fs, opts Options) *Loader {
	opts.Dir = "/content/posts"
	opts.Logger = testutil.QuietLogger()
	return NewLoader(fs, opts)
}

func TestLoader_Posts(t *testing.T) {
	fs := testutil.CreateTestFilesystemWithContent(map[string]string{
		"/content/posts/a.md":         testutil.CreateTestMarkdown(1, "Bicep basics", "/a/", []string{"azure", "bicep"}, []string{"cloud"}),
		"/content/posts/2023/b.md":    testutil.CreateTestMarkdown(2, "Functions", "/b/", []string{"azure"}, []string{"development"}),
		"/content/posts/notes.txt":    "not a post",
		"/content/posts/.drafts/x.md": "---\n---\n",
	})

	posts, err := newLoader(fs, Options{Workers: 4}).Posts(context.Background())
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}

	// Same date, so path order decides
	if posts[0].Path != "2023/b.md" || posts[1].Path != "a.md" {
		t.Errorf("order = %s, %s", posts[0].Path, posts[1].Path)
	}

	a := posts[1]
	if a.ID != 1 || a.Title != "Bicep basics" || a.Permalink != "/a/" {
		t.Errorf("frontmatter = %+v", a)
	}
	if strings.Join(a.Tags, ",") != "azure,bicep" || strings.Join(a.Categories, ",") != "cloud" {
		t.Errorf("tags = %v, categories = %v", a.Tags, a.Categories)
	}
	if a.Date.Year() != 2026 || a.Date.Month() != 1 || a.Date.Day() != 15 {
		t.Errorf("date = %v", a.Date)
	}
	if strings.HasPrefix(string(a.Source), "---") {
		t.Error("Source should not include frontmatter")
	}
	if !strings.Contains(a.HTML, "<strong>Bicep basics</strong>") {
		t.Errorf("HTML = %q", a.HTML)
	}
}

func TestLoader_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no id", "---\ntitle: x\ndate: 2024-01-01\npermalink: /x/\n---\nbody"},
		{"no title", "---\nid: 1\ndate: 2024-01-01\npermalink: /x/\n---\nbody"},
		{"no date", "---\nid: 1\ntitle: x\npermalink: /x/\n---\nbody"},
		{"no permalink", "---\nid: 1\ntitle: x\ndate: 2024-01-01\n---\nbody"},
		{"id not a number", "---\nid: abc\ntitle: x\ndate: 2024-01-01\npermalink: /x/\n---\nbody"},
		{"bad date", "---\nid: 1\ntitle: x\ndate: someday\npermalink: /x/\n---\nbody"},
		{"no frontmatter", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testutil.CreateTestFilesystemWithContent(map[string]string{
				"/content/posts/ok.md":  testutil.CreateTestMarkdown(9, "Fine", "/ok/", []string{"a"}, []string{"b"}),
				"/content/posts/bad.md": tt.doc,
			})
			_, err := newLoader(fs, Options{}).Posts(context.Background())
			if !errors.Is(err, cache.ErrSourceUnreadable) {
				t.Errorf("Posts() error = %v, want ErrSourceUnreadable", err)
			}
			if err != nil && !strings.Contains(err.Error(), "bad.md") {
				t.Errorf("error should name the file: %v", err)
			}
		})
	}
}

func TestLoader_Drafts(t *testing.T) {
	draft := strings.Replace(
		testutil.CreateTestMarkdown(2, "Draft", "/draft/", nil, nil),
		"permalink:", "draft: true\npermalink:", 1)
	fs := testutil.CreateTestFilesystemWithContent(map[string]string{
		"/content/posts/a.md":     testutil.CreateTestMarkdown(1, "Live", "/live/", nil, nil),
		"/content/posts/draft.md": draft,
	})

	tests := []struct {
		include bool
		want    int
	}{
		{false, 1},
		{true, 2},
	}
	for _, tt := range tests {
		posts, err := newLoader(fs, Options{IncludeDrafts: tt.include}).Posts(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) != tt.want {
			t.Errorf("IncludeDrafts=%v: got %d posts, want %d", tt.include, len(posts), tt.want)
		}
	}
}

func TestLoader_DuplicatePermalink(t *testing.T) {
	fs := testutil.CreateTestFilesystemWithContent(map[string]string{
		"/content/posts/a.md": testutil.CreateTestMarkdown(1, "One", "/same/", nil, nil),
		"/content/posts/b.md": testutil.CreateTestMarkdown(2, "Two", "/same/", nil, nil),
	})
	if _, err := newLoader(fs, Options{}).Posts(context.Background()); !errors.Is(err, cache.ErrSourceUnreadable) {
		t.Errorf("Posts() error = %v, want ErrSourceUnreadable", err)
	}
}

func TestLoader_HTMLCache(t *testing.T) {
	fs := testutil.CreateTestFilesystemWithContent(map[string]string{
		"/content/posts/a.md": testutil.CreateTestMarkdown(1, "Cached", "/a/", nil, nil),
	})
	store := newMemHTML()
	m := metrics.NewBuildMetrics()
	opts := Options{HTML: store, Minifier: utils.NewHTMLMinifier(), Metrics: m}

	first, err := newLoader(fs, opts).Posts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := newLoader(fs, opts).Posts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first[0].HTML != second[0].HTML {
		t.Error("cached HTML differs from rendered HTML")
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1", store.puts)
	}
	if m.Hits(metrics.CacheHTML) != 1 || m.Misses(metrics.CacheHTML) != 1 {
		t.Errorf("html hits/misses = %d/%d", m.Hits(metrics.CacheHTML), m.Misses(metrics.CacheHTML))
	}

	// Editing the body changes the content hash
	testutil.WriteTestFile(fs, "/content/posts/a.md",
		[]byte(testutil.CreateTestMarkdown(1, "Cached", "/a/", nil, nil)+"\nMore text.\n"))
	if _, err := newLoader(fs, opts).Posts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.puts != 2 {
		t.Errorf("puts after edit = %d, want 2", store.puts)
	}
}

func TestLoader_PlainText(t *testing.T) {
	doc := "---\nid: 1\ntitle: Cartoons\ndate: 2024-01-01\npermalink: /c/\n---\n\n" +
		"# Cartoons\n\n" +
		"Tom &amp; Jerry &quot;rock&quot; &#169;\n\n" +
		"<style>.nord{color:red}</style>\n\n" +
		"!!!note Heads up\nInside the admonition.\n!!!\n\n" +
		"```go\nfmt.Println(1)\n```\n"
	fs := testutil.CreateTestFilesystemWithContent(map[string]string{"/content/posts/c.md": doc})

	posts, err := newLoader(fs, Options{}).Posts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	text := posts[0].Text

	for _, want := range []string{"Cartoons", `Tom & Jerry "rock" ©`, "Inside the admonition.", "fmt.Println(1)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text missing %q: %q", want, text)
		}
	}
	for _, noise := range []string{"&amp;", "&quot;", "nord", "color", "<", "!!!", "id: 1"} {
		if strings.Contains(text, noise) {
			t.Errorf("Text contains %q: %q", noise, text)
		}
	}
	if strings.Contains(posts[0].HTML, "!!!") {
		t.Errorf("admonition markers left in HTML: %q", posts[0].HTML)
	}
}

func TestBody(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"---\ntitle: x\n---\n\nHello", "Hello"},
		{"Hello", "Hello"},
		{"---\nunterminated", "---\nunterminated"},
	}
	for _, tt := range tests {
		if got := string(body([]byte(tt.in))); got != tt.want {
			t.Errorf("body(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
