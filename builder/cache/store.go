package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Document is a cache payload that knows its own schema version and how to
// validate itself. Validation is all-or-nothing: one bad record rejects the
// whole document.
type Document interface {
	Version() int
	Validate() error
}

// Store keeps one document per namespace under a root directory.
//
// Several build workers may Save the same namespace concurrently. Every
// writer derives its payload from the same inputs, so last-writer-wins is
// fine; the atomic rename guarantees nobody reads a half-written file.
type Store struct {
	fs     afero.Fs
	root   string
	codec  Codec
	logger *slog.Logger
}

// NewStore creates a document store rooted at root on fs.
func NewStore(fs afero.Fs, root string, codec Codec, logger *slog.Logger) *Store {
	if codec == nil {
		codec = JSON
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fs:     fs,
		root:   root,
		codec:  codec,
		logger: logger,
	}
}

// Root returns the cache root directory
func (s *Store) Root() string {
	return s.root
}

// Fs returns the filesystem the store writes to
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Codec returns the document codec
func (s *Store) Codec() Codec {
	return s.codec
}

// Path returns the backing file of a namespace
func (s *Store) Path(namespace string) string {
	return filepath.Join(s.root, filepath.FromSlash(namespace)+s.codec.Ext())
}

// Load decodes the namespace into doc. It reports false when the file is
// missing, cannot be decoded, carries another schema version, or fails
// validation. On false the contents of doc must not be used.
func (s *Store) Load(namespace string, want int, doc Document) bool {
	path := s.Path(namespace)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			s.logger.Warn("Failed to read cache document", "namespace", namespace, "path", path, "error", err)
		}
		return false
	}

	if err := s.codec.Unmarshal(data, doc); err != nil {
		s.logger.Warn("Corrupt cache document, ignoring", "namespace", namespace, "path", path, "error", err)
		return false
	}

	if got := doc.Version(); got != want {
		s.logger.Debug("Cache document schema changed", "namespace", namespace, "have", got, "want", want)
		return false
	}

	if err := doc.Validate(); err != nil {
		s.logger.Warn("Cache document failed validation, ignoring", "namespace", namespace, "path", path, "error", err)
		return false
	}

	return true
}

// Save encodes doc and atomically replaces the namespace file.
func (s *Store) Save(namespace string, doc Document) error {
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", namespace, err)
	}
	if err := utils.WriteFileAtomic(s.fs, s.Path(namespace), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", namespace, err)
	}
	return nil
}

// Invalidate deletes the namespace file. A missing file is not an error.
func (s *Store) Invalidate(namespace string) error {
	err := s.fs.Remove(s.Path(namespace))
	if err != nil && !os.IsNotExist(err) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to invalidate %s: %w", namespace, err)
	}
	return nil
}

// Exists reports whether a namespace file is present (valid or not).
func (s *Store) Exists(namespace string) bool {
	ok, _ := afero.Exists(s.fs, s.Path(namespace))
	return ok
}

// Size returns the size of the namespace file in bytes, 0 if absent.
func (s *Store) Size(namespace string) int64 {
	info, err := s.fs.Stat(s.Path(namespace))
	if err != nil {
		return 0
	}
	return info.Size()
}
