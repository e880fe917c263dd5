package cache

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestImageMetaCache_Dimensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/uploads/a.png", 40, 20)
	store := newTestStore(fs, JSON)

	c := OpenImageMetaCache(store)
	w, h, err := c.Dimensions("/uploads/a.png")
	if err != nil {
		t.Fatalf("Dimensions() error = %v", err)
	}
	if w != 40 || h != 20 {
		t.Errorf("Dimensions() = %dx%d, want 40x20", w, h)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reopened := OpenImageMetaCache(store)
	if reopened.Len() != 1 {
		t.Errorf("reopened Len() = %d, want 1", reopened.Len())
	}
}

func TestImageMetaCache_AbsoluteKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "uploads/b.png", 8, 4)
	c := OpenImageMetaCache(newTestStore(fs, JSON))

	for _, p := range []string{"uploads/b.png", "./uploads/b.png", "uploads/../uploads/b.png"} {
		if _, _, err := c.Dimensions(p); err != nil {
			t.Fatalf("Dimensions(%s) error = %v", p, err)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want one entry for one file", c.Len())
	}
	want, err := filepath.Abs("uploads/b.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.doc.Entries[want]; !ok {
		t.Errorf("entries = %v, want key %s", c.doc.Entries, want)
	}
}

func TestImageMetaCache_MtimeChangeRereads(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 10, 10)
	c := OpenImageMetaCache(newTestStore(fs, JSON))

	if _, _, err := c.Dimensions("/a.png"); err != nil {
		t.Fatal(err)
	}

	writePNG(t, fs, "/a.png", 30, 15)
	later := time.Now().Add(time.Hour)
	if err := fs.Chtimes("/a.png", later, later); err != nil {
		t.Fatal(err)
	}

	w, h, err := c.Dimensions("/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if w != 30 || h != 15 {
		t.Errorf("Dimensions() = %dx%d, want 30x15", w, h)
	}
}

func TestImageMetaCache_InvalidDocumentDropped(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(fs, JSON)
	doc := `{"schemaVersion":1,"entries":{"/a.png":{"width":10,"height":10,"mtime":1},"/b.png":{"width":0,"height":5,"mtime":1}}}`
	if err := afero.WriteFile(fs, store.Path(NamespaceImageMeta), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if n := OpenImageMetaCache(store).Len(); n != 0 {
		t.Errorf("Len() = %d, one bad record should reject the whole document", n)
	}
}

func TestImageMetaCache_MissingFile(t *testing.T) {
	c := OpenImageMetaCache(newTestStore(afero.NewMemMapFs(), JSON))
	if _, _, err := c.Dimensions("/nope.png"); !errors.Is(err, ErrSourceUnreadable) {
		t.Errorf("error = %v, want ErrSourceUnreadable", err)
	}
}
