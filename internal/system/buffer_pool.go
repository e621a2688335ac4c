package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA buffers of identical bounds, e.g. the per-step snapshots a
// sweep hands to the encoder.
type ImagePool struct {
	mu    sync.RWMutex
	pools map[image.Rectangle]*sync.Pool
}

var globalPool = NewImagePool()

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

// GetImage takes a buffer from the shared pool.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage returns a buffer to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

// Get returns a buffer with the given bounds. Its contents are unspecified.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, ok := p.pools[rect]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[rect]
		if !ok {
			pool = &sync.Pool{
				New: func() any { return image.NewRGBA(rect) },
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}
	return pool.Get().(*image.RGBA)
}

// Put recycles img. Buffers of bounds never requested through Get are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}
