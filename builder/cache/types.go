// Package cache provides the disk-backed build cache for quill: namespaced
// documents written by atomic rename, a bbolt + content-addressed store for
// rendered HTML, and the fingerprints used to decide when any of it is stale.
package cache

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// Schema versions. Bump when the shape of the matching document changes.
const (
	PostsSchemaVersion     = 2
	IndexSchemaVersion     = 3
	ImageMetaSchemaVersion = 1
	HTMLSchemaVersion      = 1
)

// Constants for compression thresholds
const (
	RawThreshold        = 8 * 1024   // < 8KB stored raw
	FastZstdMax         = 128 * 1024 // 8KB-128KB use zstd fast
	InlineHTMLThreshold = 32 * 1024  // smaller HTML is stored inside the bbolt record
)

var (
	// ErrSourceUnreadable wraps failures reading a source file (post or image).
	ErrSourceUnreadable = errors.New("source unreadable")
)

// RenderedHTML is the bbolt record for one post's cached HTML.
type RenderedHTML struct {
	PostID      string `msgpack:"post_id"`
	ContentHash string `msgpack:"content_hash"`
	HTMLHash    string `msgpack:"html_hash,omitempty"`   // set for large posts
	InlineHTML  []byte `msgpack:"inline_html,omitempty"` // < 32KB posts stored inline
	Timestamp   int64  `msgpack:"timestamp"`
	Version     int    `msgpack:"version"`
}

// CompressionType indicates how a blob is stored
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionZstdFast
	CompressionZstdLevel3
)

// Encode serializes a value to msgpack bytes
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes msgpack bytes to a value
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
