package new

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/content"
	"github.com/Kush-Singh-26/quill/builder/testutil"
)

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Spaces  Around ", "spaces-around"},
		{`What: "quotes"?`, "what-quotes"},
		{"a/b\\c", "abc"},
		{"???", ""},
		{strings.Repeat("é", 150), strings.Repeat("é", 100)},
		{strings.Repeat("a", 99) + " ünïcode", strings.Repeat("a", 99)},
	}
	for _, tt := range tests {
		got := sanitizeSlug(tt.title)
		if got != tt.want {
			t.Errorf("sanitizeSlug(%q) = %q, want %q", tt.title, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("sanitizeSlug(%q) is not valid UTF-8", tt.title)
		}
	}
}

func TestCreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "content/posts"
	testutil.WriteTestFile(fs, filepath.Join(dir, "old.md"),
		[]byte(testutil.CreateTestMarkdown(41, "Old", "/old/", nil, nil)))

	post, err := Create(fs, Options{
		Dir:   dir,
		Title: "Azure Bicep Notes",
		Tags:  []string{"azure", "bicep"},
		Now:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.ID != 42 || post.Permalink != "/azure-bicep-notes/" {
		t.Errorf("post = %+v", post)
	}

	loaded, err := content.NewLoader(fs, content.Options{Dir: dir}).Load(post.Path)
	if err != nil {
		t.Fatalf("created post does not load: %v", err)
	}
	if loaded.Title != "Azure Bicep Notes" || len(loaded.Tags) != 2 || loaded.Date.Day() != 2 {
		t.Errorf("loaded = %+v", loaded)
	}

	if _, err := Create(fs, Options{Dir: dir, Title: "Azure Bicep Notes"}); !errors.Is(err, ErrExists) {
		t.Errorf("second Create() error = %v, want ErrExists", err)
	}
}

func TestCreate_EmptyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	post, err := Create(fs, Options{Dir: "posts", Title: "First"})
	if err != nil {
		t.Fatal(err)
	}
	if post.ID != 1 {
		t.Errorf("ID = %d, want 1", post.ID)
	}
	if _, err := Create(fs, Options{Dir: "posts", Title: "???"}); err == nil {
		t.Error("expected error for empty slug")
	}
}
