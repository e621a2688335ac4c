package source

import (
	"bytes"
	"container/list"
	"context"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheBytes bounds a Cache created with a non-positive limit.
const DefaultCacheBytes int64 = 128 << 20

// Fetcher returns the encoded bytes of a frame.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Prefetcher stores a frame in a cache without handing it to a caller.
type Prefetcher interface {
	Prefetch(ctx context.Context, rawURL string) error
}

// CacheStats is a snapshot of cache activity.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Bytes     int64
	MaxBytes  int64
}

// Cache plays the part of the browser image cache that preloading warms. When the wrapped
// loader is a Fetcher it keeps encoded bytes and decodes on every Load; otherwise it keeps
// decoded images, charged at four bytes per pixel. Either way the total stays under a byte
// limit, least recently used entries going first. Concurrent loads of one URL are collapsed.
type Cache struct {
	next     Loader
	fetcher  Fetcher
	maxBytes int64
	group    singleflight.Group
	logger   *slog.Logger

	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // front is most recently used
	size      int64
	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	url  string
	data []byte
	img  image.Image
	size int64
}

// NewCache wraps next with a cache holding at most maxBytes.
func NewCache(next Loader, maxBytes int64, logger *slog.Logger) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f, _ := next.(Fetcher)
	return &Cache{
		next:     next,
		fetcher:  f,
		maxBytes: maxBytes,
		logger:   logger,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Load returns the frame for rawURL, fetching it once if it is not cached.
// Failed loads are not cached.
func (c *Cache) Load(ctx context.Context, rawURL string) (image.Image, error) {
	e, err := c.entry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if e.img != nil {
		return e.img, nil
	}
	return Decode(bytes.NewReader(e.data))
}

// Prefetch makes sure rawURL is cached without decoding it.
func (c *Cache) Prefetch(ctx context.Context, rawURL string) error {
	_, err := c.entry(ctx, rawURL)
	return err
}

func (c *Cache) entry(ctx context.Context, rawURL string) (*cacheEntry, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}

	c.mu.Lock()
	if el, ok := c.entries[rawURL]; ok {
		c.hits++
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return el.Value.(*cacheEntry), nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(rawURL, func() (any, error) {
		e := &cacheEntry{url: rawURL}
		if c.fetcher != nil {
			data, err := c.fetcher.Fetch(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			e.data, e.size = data, int64(len(data))
		} else {
			img, err := c.next.Load(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			b := img.Bounds()
			e.img, e.size = img, int64(b.Dx())*int64(b.Dy())*4
		}
		c.add(e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheEntry), nil
}

func (c *Cache) add(e *cacheEntry) {
	if e.size > c.maxBytes {
		c.logger.Debug("frame larger than cache", "url", e.url, "bytes", e.size)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.url]; ok {
		return
	}
	c.entries[e.url] = c.order.PushFront(e)
	c.size += e.size
	for c.size > c.maxBytes {
		oldest := c.order.Back()
		old := c.order.Remove(oldest).(*cacheEntry)
		delete(c.entries, old.url)
		c.size -= old.size
		c.evictions++
	}
	c.logger.Debug("frame cached", "url", e.url, "bytes", e.size, "total", c.size)
}

// Stats returns the cache counters and current occupancy.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		Bytes:     c.size,
		MaxBytes:  c.maxBytes,
	}
}
