// Package render loads frames and composites them onto a drawing surface.
package render

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ivlev/framescrub/internal/frameurl"
	"github.com/ivlev/framescrub/internal/source"
)

// Stats counts what happened to render requests.
type Stats struct {
	Requested  uint64
	Drawn      uint64
	Superseded uint64
	Failed     uint64
}

// Renderer draws the most recently requested frame. Requests share one slot: each Render
// overwrites the slot's target, and a finished load is drawn only if its URL is still the
// target. Under fast scrubbing a frame may appear later than requested, but an older frame
// never replaces a newer one.
type Renderer struct {
	loader      source.Loader
	surface     Surface
	template    string
	totalFrames int
	fit         Fit
	logger      *slog.Logger

	// Surface size captured at construction.
	width, height int

	mu        sync.Mutex
	target    string
	lastDrawn int

	wg         sync.WaitGroup
	requested  atomic.Uint64
	drawn      atomic.Uint64
	superseded atomic.Uint64
	failed     atomic.Uint64
}

type Option func(*Renderer)

func WithFit(f Fit) Option {
	return func(r *Renderer) { r.fit = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a renderer for frames of template drawn onto surface.
func New(loader source.Loader, surface Surface, template string, totalFrames int, opts ...Option) *Renderer {
	r := &Renderer{
		loader:      loader,
		surface:     surface,
		template:    template,
		totalFrames: totalFrames,
		fit:         FitCover,
		logger:      slog.New(slog.DiscardHandler),
		lastDrawn:   -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.width, r.height = surface.Size()
	return r
}

// URL returns the URL of frame.
func (r *Renderer) URL(frame int) string {
	return frameurl.Synthesize(r.template, frame, r.totalFrames)
}

// Render points the slot at frame and starts loading it. It never blocks on the load.
func (r *Renderer) Render(ctx context.Context, frame int) {
	u := r.URL(frame)
	r.requested.Add(1)

	r.mu.Lock()
	r.target = u
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		img, err := r.loader.Load(ctx, u)
		if err != nil {
			r.failed.Add(1)
			r.logger.Debug("frame load failed", "frame", frame, "url", u, "err", err)
			return
		}
		r.complete(frame, u, img)
	}()
}

// complete draws img if u is still the slot's target.
func (r *Renderer) complete(frame int, u string, img image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u != r.target {
		r.superseded.Add(1)
		return
	}
	b := img.Bounds()
	r.surface.Draw(img, Place(r.fit, r.width, r.height, b.Dx(), b.Dy()))
	r.lastDrawn = frame
	r.drawn.Add(1)
}

// LastDrawn returns the most recently drawn frame, or -1.
func (r *Renderer) LastDrawn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDrawn
}

// Wait blocks until every started load has finished.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

func (r *Renderer) Stats() Stats {
	return Stats{
		Requested:  r.requested.Load(),
		Drawn:      r.drawn.Load(),
		Superseded: r.superseded.Load(),
		Failed:     r.failed.Load(),
	}
}
