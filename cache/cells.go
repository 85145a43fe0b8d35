package cache

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/simplelru"
	log "github.com/sirupsen/logrus"
	"go.tabledb.dev/core/cell"
)

// Key of a cached cell.
type Key struct {
	Table  int
	Row    int
	Column int
}

// Config of a Cells cache.
type Config struct {
	// MaxBytes is the approximate memory budget of the cache.
	MaxBytes int64
	// MaxCellBytes is the largest cell (by cell.CurrentSizeOf) which will be cached.
	MaxCellBytes int
	// HighWatermark is the fraction of MaxBytes which, when exceeded, begins eviction.
	HighWatermark float64
	// LowWatermark is the fraction of MaxBytes to which eviction reduces usage.
	LowWatermark float64
}

// DefaultConfig returns a Config having a |maxBytes| budget.
func DefaultConfig(maxBytes int64) Config {
	return Config{
		MaxBytes:      maxBytes,
		MaxCellBytes:  16 * 1024,
		HighWatermark: 0.95,
		LowWatermark:  0.70,
	}
}

// Cells is a byte-budgeted cache of decoded cells, keyed on table, row and
// column, which evicts in least-recently-used order. When its usage crosses
// the high watermark it evicts down to the low watermark. All operations are
// serialized by a single lock.
type Cells struct {
	mu    sync.Mutex
	cfg   Config
	lru   *simplelru.LRU
	bytes int64
}

// New returns an empty Cells cache of Config.
func New(cfg Config) *Cells {
	if cfg.HighWatermark <= 0 || cfg.HighWatermark > 1 {
		cfg.HighWatermark = 1
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark
	}
	var c = &Cells{cfg: cfg}

	var lru, err = simplelru.NewLRU(maxEntries(cfg.MaxBytes), c.onEvict)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	c.lru = lru
	return c
}

// Get the cached cell of |key|.
func (c *Cells) Get(key Key) (cell.Cell, bool) {
	defer c.mu.Unlock()
	c.mu.Lock()

	if v, ok := c.lru.Get(key); ok {
		cacheHitsTotal.Inc()
		return v.(cell.Cell), true
	}
	cacheMissesTotal.Inc()
	return cell.Cell{}, false
}

// Put |v| as the cached cell of |key|. Cells larger than MaxCellBytes are
// not cached.
func (c *Cells) Put(key Key, v cell.Cell) {
	var size = cell.CurrentSizeOf(v)

	defer c.mu.Unlock()
	c.mu.Lock()

	if size > c.cfg.MaxCellBytes {
		return
	}
	// Remove a current entry (if any) so that its size is released.
	c.lru.Remove(key)
	c.lru.Add(key, v)
	c.bytes += int64(size)
	c.evictIfNeeded()
	cacheBytes.Set(float64(c.bytes))
}

// Remove the cached cell of |key|, returning it if present.
func (c *Cells) Remove(key Key) (cell.Cell, bool) {
	defer c.mu.Unlock()
	c.mu.Lock()

	var v, ok = c.lru.Peek(key)
	if !ok {
		return cell.Cell{}, false
	}
	c.lru.Remove(key)
	cacheBytes.Set(float64(c.bytes))
	return v.(cell.Cell), true
}

// Wipe all cached cells.
func (c *Cells) Wipe() {
	defer c.mu.Unlock()
	c.mu.Lock()

	c.lru.Purge()
	cacheBytes.Set(float64(c.bytes))
}

// Resize the byte budget of the cache, evicting as required.
func (c *Cells) Resize(maxBytes int64) {
	defer c.mu.Unlock()
	c.mu.Lock()

	c.cfg.MaxBytes = maxBytes
	c.lru.Resize(maxEntries(maxBytes))
	c.evictIfNeeded()
	cacheBytes.Set(float64(c.bytes))

	log.WithFields(log.Fields{
		"maxBytes": humanize.IBytes(uint64(maxBytes)),
		"bytes":    humanize.IBytes(uint64(c.bytes)),
		"cells":    c.lru.Len(),
	}).Debug("resized cell cache")
}

// Bytes returns the approximate number of bytes held by the cache.
func (c *Cells) Bytes() int64 {
	defer c.mu.Unlock()
	c.mu.Lock()

	return c.bytes
}

// Len returns the number of cached cells.
func (c *Cells) Len() int {
	defer c.mu.Unlock()
	c.mu.Lock()

	return c.lru.Len()
}

// evictIfNeeded evicts oldest entries while usage exceeds the high watermark,
// until usage is at or below the low watermark. c.mu must be held.
func (c *Cells) evictIfNeeded() {
	var high = int64(float64(c.cfg.MaxBytes) * c.cfg.HighWatermark)
	if c.bytes <= high {
		return
	}
	var low = int64(float64(c.cfg.MaxBytes) * c.cfg.LowWatermark)

	for c.bytes > low {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		cacheEvictionsTotal.Inc()
	}
}

// onEvict is called by the LRU for every removed entry, whether by
// Remove, RemoveOldest, Purge, or Resize. c.mu is held.
func (c *Cells) onEvict(_ interface{}, v interface{}) {
	c.bytes -= int64(cell.CurrentSizeOf(v.(cell.Cell)))
}

// maxEntries bounds the LRU's entry count such that the byte budget, rather
// than the count, governs eviction.
func maxEntries(maxBytes int64) int {
	var n = maxBytes / minCellSize
	if n < 1 {
		return 1
	} else if n > 1<<30 {
		return 1 << 30
	}
	return int(n)
}

var minCellSize = int64(cell.CurrentSizeOf(cell.True))
