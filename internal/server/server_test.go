package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kush-Singh-26/quill/builder/assets"
	"github.com/Kush-Singh-26/quill/builder/testutil"
)

type fakeAssets map[string]*assets.Asset

func (f fakeAssets) Get(_ context.Context, p string) (*assets.Asset, error) {
	if p == "boom.png" {
		return nil, errors.New("decoder exploded")
	}
	a, ok := f[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assets.ErrNotFound, p)
	}
	return a, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "related.json"), []byte(`[]`), 0644); err != nil {
		t.Fatal(err)
	}
	w := 300
	return New(Config{
		StaticDir: dir,
		Logger:    testutil.QuietLogger(),
		Assets: fakeAssets{
			"uploads/photo-300x300.webp": {
				Data: []byte("RIFFfake"),
				Meta: assets.Meta{ContentType: "image/webp", SourceHash: "abc", Width: &w, Height: &w, IsWebP: true},
			},
		},
	})
}

func TestHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		method      string
		path        string
		status      int
		contentType string
	}{
		{"asset", http.MethodGet, "/wp-content/uploads/photo-300x300.webp", http.StatusOK, "image/webp"},
		{"asset head", http.MethodHead, "/wp-content/uploads/photo-300x300.webp", http.StatusOK, "image/webp"},
		{"missing asset", http.MethodGet, "/wp-content/uploads/nope.png", http.StatusNotFound, ""},
		{"broken asset", http.MethodGet, "/wp-content/boom.png", http.StatusInternalServerError, ""},
		{"post method", http.MethodPost, "/wp-content/uploads/photo-300x300.webp", http.StatusMethodNotAllowed, ""},
		{"static file", http.MethodGet, "/related.json", http.StatusOK, "application/json"},
		{"missing static", http.MethodGet, "/nope.html", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.contentType != "" && rec.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", rec.Header().Get("Content-Type"), tt.contentType)
			}
		})
	}
}

func TestHandler_NotModified(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-content/uploads/photo-300x300.webp", nil))
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/wp-content/uploads/photo-300x300.webp", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", rec.Code)
	}
}

func TestValidatePath(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/related.json", false},
		{"/a/b/c.html", false},
		{"../secret", true},
		{"/../../etc/passwd", true},
	}
	for _, tt := range tests {
		_, err := validatePath(base, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/wp-content/uploads/photo-300x300.webp")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
