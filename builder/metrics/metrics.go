// Package metrics provides build performance tracking.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Cache identifies which cache a hit or miss belongs to.
type Cache int

const (
	CacheIndex Cache = iota
	CacheHTML
	CacheImageMemory
	CacheImageDisk
	numCaches
)

func (c Cache) String() string {
	switch c {
	case CacheIndex:
		return "index"
	case CacheHTML:
		return "html"
	case CacheImageMemory:
		return "image-memory"
	case CacheImageDisk:
		return "image-disk"
	}
	return "unknown"
}

// BuildMetrics tracks performance data during the build process. Counters
// are updated from worker goroutines and are safe for concurrent use.
type BuildMetrics struct {
	// Timing
	StartTime time.Time
	EndTime   time.Time

	postsProcessed  atomic.Int64
	imagesProcessed atomic.Int64
	filesWritten    atomic.Int64
	hits            [numCaches]atomic.Int64
	misses          [numCaches]atomic.Int64
}

// NewBuildMetrics creates a new metrics instance.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{
		StartTime: time.Now(),
	}
}

// RecordStart marks the start of a build phase.
func (m *BuildMetrics) RecordStart() {
	m.StartTime = time.Now()
}

// RecordEnd marks the end of the build.
func (m *BuildMetrics) RecordEnd() {
	m.EndTime = time.Now()
}

// TotalDuration returns the total build duration.
func (m *BuildMetrics) TotalDuration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// IncrementPostsProcessed increments the posts counter.
func (m *BuildMetrics) IncrementPostsProcessed() {
	m.postsProcessed.Add(1)
}

// IncrementImagesProcessed counts one transcode.
func (m *BuildMetrics) IncrementImagesProcessed() {
	m.imagesProcessed.Add(1)
}

// IncrementFilesWritten counts one output file.
func (m *BuildMetrics) IncrementFilesWritten() {
	m.filesWritten.Add(1)
}

// IncrementCacheHit increments the hit counter of c.
func (m *BuildMetrics) IncrementCacheHit(c Cache) {
	m.hits[c].Add(1)
}

// IncrementCacheMiss increments the miss counter of c.
func (m *BuildMetrics) IncrementCacheMiss(c Cache) {
	m.misses[c].Add(1)
}

func (m *BuildMetrics) PostsProcessed() int  { return int(m.postsProcessed.Load()) }
func (m *BuildMetrics) ImagesProcessed() int { return int(m.imagesProcessed.Load()) }
func (m *BuildMetrics) FilesWritten() int    { return int(m.filesWritten.Load()) }
func (m *BuildMetrics) Hits(c Cache) int     { return int(m.hits[c].Load()) }
func (m *BuildMetrics) Misses(c Cache) int   { return int(m.misses[c].Load()) }

// CacheHits sums hits over all caches.
func (m *BuildMetrics) CacheHits() int {
	n := 0
	for c := Cache(0); c < numCaches; c++ {
		n += m.Hits(c)
	}
	return n
}

// CacheMisses sums misses over all caches.
func (m *BuildMetrics) CacheMisses() int {
	n := 0
	for c := Cache(0); c < numCaches; c++ {
		n += m.Misses(c)
	}
	return n
}

// CacheHitRate returns the cache hit percentage.
func (m *BuildMetrics) CacheHitRate() float64 {
	hits, misses := m.CacheHits(), m.CacheMisses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// String returns a single-line summary of the build metrics.
func (m *BuildMetrics) String() string {
	hits, misses := m.CacheHits(), m.CacheMisses()
	index := "miss"
	if m.Hits(CacheIndex) > 0 {
		index = "hit"
	}

	return fmt.Sprintf("📊 Built %d posts, %d images in %v (index: %s, cache: %d/%d hits, %.0f%%)\n",
		m.PostsProcessed(),
		m.ImagesProcessed(),
		m.TotalDuration().Round(time.Millisecond),
		index,
		hits,
		hits+misses,
		m.CacheHitRate(),
	)
}

// Print outputs the metrics to stdout.
func (m *BuildMetrics) Print() {
	fmt.Println(m.String())
}
