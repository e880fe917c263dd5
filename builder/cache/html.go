package cache

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	bolt "go.etcd.io/bbolt"
)

// HTMLCache stores rendered post HTML keyed by post ID. Metadata lives in
// BoltDB; bodies of 32KB and more go to the content-addressed blob store.
// An entry is only returned while its content hash still matches the post.
type HTMLCache struct {
	db       *bolt.DB
	blobs    *BlobStore
	basePath string
	logger   *slog.Logger
}

// OpenHTMLCache opens or creates the rendered-HTML cache in basePath.
func OpenHTMLCache(basePath string, timeout time.Duration, logger *slog.Logger) (*HTMLCache, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := &bolt.Options{
		Timeout:         timeout,
		FreelistType:    bolt.FreelistArrayType,
		PageSize:        16384,
		InitialMmapSize: 4 * 1024 * 1024,
	}

	db, err := bolt.Open(filepath.Join(basePath, "html.db"), 0644, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	blobs, err := NewBlobStore(afero.NewOsFs(), filepath.Join(basePath, "store"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	c := &HTMLCache{
		db:       db,
		blobs:    blobs,
		basePath: basePath,
		logger:   logger,
	}

	if err := c.initSchema(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

// Close closes the cache
func (c *HTMLCache) Close() error {
	if c.blobs != nil {
		_ = c.blobs.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// initSchema creates the buckets. A schema version change drops every record.
func (c *HTMLCache) initSchema() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(BucketMeta))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketMeta, err)
		}

		stored := meta.Get([]byte(KeySchemaVersion))
		if stored != nil && binary.BigEndian.Uint32(stored) != HTMLSchemaVersion {
			if err := tx.DeleteBucket([]byte(BucketRendered)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRendered)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketRendered, err)
		}

		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, HTMLSchemaVersion)
		return meta.Put([]byte(KeySchemaVersion), v)
	})
}

// Get returns the cached HTML for postID if it was rendered from content
// with the given hash. A stale entry is deleted and reported as a miss.
func (c *HTMLCache) Get(postID, contentHash string) (string, bool) {
	var rec *RenderedHTML
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketRendered)).Get([]byte(postID))
		if data == nil {
			return nil
		}
		var r RenderedHTML
		if err := Decode(data, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if err != nil {
		c.logger.Warn("Corrupt rendered HTML record, ignoring", "post", postID, "error", err)
		c.evict(postID)
		return "", false
	}
	if rec == nil {
		return "", false
	}

	if rec.ContentHash != contentHash || rec.Version != HTMLSchemaVersion {
		c.evict(postID)
		return "", false
	}

	if len(rec.InlineHTML) > 0 {
		return string(rec.InlineHTML), true
	}
	if rec.HTMLHash == "" {
		return "", true
	}

	content, err := c.blobs.Get(rec.HTMLHash)
	if err != nil {
		c.logger.Warn("Rendered HTML blob missing", "post", postID, "hash", rec.HTMLHash, "error", err)
		c.evict(postID)
		return "", false
	}
	return string(content), true
}

// Put stores the HTML rendered from content with the given hash.
func (c *HTMLCache) Put(postID, contentHash, html string) error {
	rec := RenderedHTML{
		PostID:      postID,
		ContentHash: contentHash,
		Timestamp:   time.Now().Unix(),
		Version:     HTMLSchemaVersion,
	}

	if len(html) < InlineHTMLThreshold {
		rec.InlineHTML = []byte(html)
	} else {
		hash, err := c.blobs.Put([]byte(html))
		if err != nil {
			return fmt.Errorf("failed to store HTML for %s: %w", postID, err)
		}
		rec.HTMLHash = hash
	}

	data, err := Encode(&rec)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketRendered)).Put([]byte(postID), data)
	})
}

func (c *HTMLCache) evict(postID string) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketRendered)).Delete([]byte(postID))
	})
	if err != nil {
		c.logger.Warn("Failed to evict rendered HTML", "post", postID, "error", err)
	}
}

// Len returns the number of cached posts
func (c *HTMLCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(BucketRendered)).Stats().KeyN
		return nil
	})
	return n, err
}

// BlobBytes returns the disk space used by out-of-line bodies
func (c *HTMLCache) BlobBytes() (int64, error) {
	return c.blobs.Size()
}

// GCResult contains statistics from a GC run
type GCResult struct {
	ScannedBlobs int
	LiveBlobs    int
	DeletedBlobs int
	DeletedBytes int64
	Duration     time.Duration
}

// RunGC deletes blobs that no record references anymore.
func (c *HTMLCache) RunGC(dryRun bool) (*GCResult, error) {
	start := time.Now()
	result := &GCResult{}

	live := make(map[string]bool)
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketRendered)).ForEach(func(_, v []byte) error {
			var rec RenderedHTML
			if err := Decode(v, &rec); err != nil {
				return nil // Skip corrupt entries
			}
			if rec.HTMLHash != "" {
				live[rec.HTMLHash] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan live hashes: %w", err)
	}
	result.LiveBlobs = len(live)

	hashes, err := c.blobs.Hashes()
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	for _, hash := range hashes {
		result.ScannedBlobs++
		if live[hash] {
			continue
		}
		result.DeletedBlobs++
		if dryRun {
			continue
		}
		n, err := c.blobs.Delete(hash)
		if err != nil {
			c.logger.Warn("Failed to delete HTML blob", "hash", hash, "error", err)
			continue
		}
		result.DeletedBytes += n
	}

	result.Duration = time.Since(start)
	return result, nil
}
