// Package server serves derived images under /wp-content/ and the build
// output directory for everything else.
package server

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Kush-Singh-26/quill/builder/assets"
)

// AssetPrefix is the URL prefix of derived images
const AssetPrefix = "/wp-content/"

// AssetSource produces derived images by logical path
type AssetSource interface {
	Get(ctx context.Context, logicalPath string) (*assets.Asset, error)
}

// Config wires a Server
type Config struct {
	Addr            string
	StaticDir       string
	Assets          AssetSource
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the preview HTTP server
type Server struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a server
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// gzipResponseWriter wraps the underlying ResponseWriter to enable Gzip compression
type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(code)
}

func gzipHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer func() { _ = gz.Close() }()
		gzw := &gzipResponseWriter{Writer: gz, ResponseWriter: w}
		next(gzw, r)
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(AssetPrefix, s.handleAsset)
	mux.HandleFunc("/", gzipHandler(s.handleStatic))
	return mux
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	logical := strings.TrimPrefix(r.URL.Path, AssetPrefix)
	asset, err := s.cfg.Assets.Get(r.Context(), logical)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			http.Error(w, "404 - Not Found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to serve image", "path", logical, "error", err)
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}

	etag := `"` + asset.Meta.SourceHash + `"`
	if asset.Meta.Width != nil {
		etag = fmt.Sprintf(`"%s-%dx%d"`, asset.Meta.SourceHash, *asset.Meta.Width, *asset.Meta.Height)
	}
	if asset.Meta.IsWebP {
		etag = strings.TrimSuffix(etag, `"`) + `-webp"`
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", asset.Meta.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(asset.Data)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	normalizedPath := normalizeRequestPath(r.URL.Path)

	fullPath, err := validatePath(s.cfg.StaticDir, normalizedPath)
	if err != nil {
		http.Error(w, "403 - Forbidden: Invalid path", http.StatusForbidden)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		} else {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		}
		return
	}
	if info.IsDir() {
		fullPath = filepath.Join(fullPath, "index.html")
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	http.ServeFile(w, r, fullPath)
}

// Run listens on Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
