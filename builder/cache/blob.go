package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/utils"
)

// BlobStore keeps large rendered bodies by content hash under
// dir/<h[0:2]>/<h[2:4]>/<h>.raw or .zst.
type BlobStore struct {
	fs      afero.Fs
	dir     string
	fast    *zstd.Encoder
	best    *zstd.Encoder
	decoder *zstd.Decoder
}

// NewBlobStore creates a blob store in dir on fs
func NewBlobStore(fs afero.Fs, dir string) (*BlobStore, error) {
	fast, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	best, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = fast.Close()
		_ = best.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &BlobStore{fs: fs, dir: dir, fast: fast, best: best, decoder: decoder}, nil
}

// Close releases the codecs
func (s *BlobStore) Close() error {
	_ = s.fast.Close()
	_ = s.best.Close()
	s.decoder.Close()
	return nil
}

func compressionFor(size int) CompressionType {
	switch {
	case size < RawThreshold:
		return CompressionNone
	case size < FastZstdMax:
		return CompressionZstdFast
	default:
		return CompressionZstdLevel3
	}
}

func (ct CompressionType) ext() string {
	if ct == CompressionNone {
		return ".raw"
	}
	return ".zst"
}

func (s *BlobStore) path(hash string, ct CompressionType) string {
	if len(hash) < 4 {
		return filepath.Join(s.dir, hash+ct.ext())
	}
	return filepath.Join(s.dir, hash[0:2], hash[2:4], hash+ct.ext())
}

// locate finds the stored file of hash, whichever encoding it has
func (s *BlobStore) locate(hash string) (string, CompressionType, fs.FileInfo, bool) {
	for _, ct := range []CompressionType{CompressionNone, CompressionZstdFast} {
		p := s.path(hash, ct)
		if info, err := s.fs.Stat(p); err == nil {
			return p, ct, info, true
		}
	}
	return "", 0, nil, false
}

// Put stores content and returns its hash. Storing the same bytes twice is
// a no-op.
func (s *BlobStore) Put(content []byte) (string, error) {
	hash := utils.HashContent(content)
	if _, _, _, ok := s.locate(hash); ok {
		return hash, nil
	}

	ct := compressionFor(len(content))
	data := content
	switch ct {
	case CompressionZstdFast:
		data = s.fast.EncodeAll(content, nil)
	case CompressionZstdLevel3:
		data = s.best.EncodeAll(content, nil)
	}

	if err := utils.WriteFileAtomic(s.fs, s.path(hash, ct), data); err != nil {
		return "", err
	}
	return hash, nil
}

// Get returns the content stored under hash
func (s *BlobStore) Get(hash string) ([]byte, error) {
	p, ct, _, ok := s.locate(hash)
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", hash)
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, err
	}
	if ct == CompressionNone {
		return data, nil
	}
	return s.decoder.DecodeAll(data, nil)
}

// Exists reports whether hash is stored
func (s *BlobStore) Exists(hash string) bool {
	_, _, _, ok := s.locate(hash)
	return ok
}

// Delete removes hash and returns the bytes freed
func (s *BlobStore) Delete(hash string) (int64, error) {
	p, _, info, ok := s.locate(hash)
	if !ok {
		return 0, nil
	}
	if err := s.fs.Remove(p); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// walk visits every blob file
func (s *BlobStore) walk(fn func(hash string, info fs.FileInfo)) error {
	err := afero.Walk(s.fs, s.dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if ext := filepath.Ext(name); ext == ".raw" || ext == ".zst" {
			fn(strings.TrimSuffix(name, ext), info)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Hashes lists every stored hash
func (s *BlobStore) Hashes() ([]string, error) {
	var hashes []string
	err := s.walk(func(hash string, _ fs.FileInfo) {
		hashes = append(hashes, hash)
	})
	return hashes, err
}

// Size returns the bytes used on disk
func (s *BlobStore) Size() (int64, error) {
	var total int64
	err := s.walk(func(_ string, info fs.FileInfo) {
		total += info.Size()
	})
	return total, err
}
