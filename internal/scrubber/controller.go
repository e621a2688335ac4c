// Package scrubber wires source-set resolution, preloading, the visibility gate, the
// scroll mapping and the renderer into one controller with a Connect/Disconnect lifecycle.
package scrubber

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ivlev/framescrub/internal/config"
	"github.com/ivlev/framescrub/internal/preload"
	"github.com/ivlev/framescrub/internal/render"
	"github.com/ivlev/framescrub/internal/scheduler"
	"github.com/ivlev/framescrub/internal/scrollmap"
	"github.com/ivlev/framescrub/internal/source"
	"github.com/ivlev/framescrub/internal/sourceset"
	"github.com/ivlev/framescrub/internal/visibility"
)

// ErrConnected is returned by Connect on a controller that is already active.
var ErrConnected = errors.New("controller already connected")

// Host is the environment a controller runs in: a page with a viewport, a scrolling host
// element, a drawing surface and a paint-aligned scheduler.
type Host interface {
	// ViewportWidth is read once per Connect to resolve the source set.
	ViewportWidth() int
	// Extent is the host element's box relative to the viewport, read on every computation.
	Extent() scrollmap.Extent
	// ScrollTarget is the page-level scroll event source.
	ScrollTarget() visibility.EventTarget
	// Observer reports the drawing surface's intersection with the viewport.
	Observer() visibility.Observer
	Scheduler() scheduler.Scheduler
	Surface() render.Surface
}

// Stats is a snapshot of controller activity.
type Stats struct {
	Template     string
	Computations uint64
	Coalesced    uint64
	LastFrame    int
	Gate         visibility.State
	Attaches     int
	Render       render.Stats
	Cache        source.CacheStats
}

// Controller is one scrubber instance bound to a Host.
type Controller struct {
	host      Host
	loader    source.Loader
	values    config.Values
	fit       render.Fit
	threshold float64
	workers   int
	maxBytes  int64
	logger    *slog.Logger
	cache     *source.Cache

	mu        sync.Mutex
	cancel    context.CancelFunc
	ctx       context.Context
	template  string
	gate      *visibility.Gate
	renderer  *render.Renderer
	preloader *preload.Preloader

	guard        *scheduler.Guard
	computations atomic.Uint64
	lastFrame    atomic.Int64
}

type Option func(*Controller)

func WithFit(f render.Fit) Option {
	return func(c *Controller) { c.fit = f }
}

func WithThreshold(t float64) Option {
	return func(c *Controller) { c.threshold = t }
}

// WithPreloadWorkers bounds concurrent preload fetches.
func WithPreloadWorkers(n int) Option {
	return func(c *Controller) { c.workers = n }
}

// WithCacheBytes bounds the frame cache. Non-positive means source.DefaultCacheBytes.
func WithCacheBytes(n int64) Option {
	return func(c *Controller) { c.maxBytes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a disconnected controller. Frames are loaded through loader, wrapped in a
// bounded cache unless it already is one.
func New(host Host, loader source.Loader, values config.Values, opts ...Option) *Controller {
	c := &Controller{
		host:      host,
		values:    values,
		fit:       render.FitCover,
		threshold: visibility.DefaultThreshold,
		workers:   preload.DefaultWorkers,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	cache, ok := loader.(*source.Cache)
	if !ok {
		cache = source.NewCache(loader, c.maxBytes, c.logger)
	}
	c.cache, c.loader = cache, cache
	c.lastFrame.Store(-1)
	return c
}

// FromConfig creates a controller using the ambient settings in cfg.
func FromConfig(host Host, loader source.Loader, cfg *config.Config, opts ...Option) (*Controller, error) {
	fit, err := render.ParseFit(cfg.Fit)
	if err != nil {
		return nil, err
	}
	base := []Option{WithFit(fit), WithThreshold(cfg.Threshold), WithCacheBytes(int64(cfg.CacheMB) << 20)}
	return New(host, loader, cfg.Values, append(base, opts...)...), nil
}

// Connect resolves the template, starts preloading if requested and begins observing the
// surface. Scroll handling is attached only while the surface is visible.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrConnected
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.guard = &scheduler.Guard{}
	c.template = sourceset.Resolve(c.values.Sizes, c.values.Srcs, c.host.ViewportWidth())
	c.renderer = render.New(c.loader, c.host.Surface(), c.template, c.values.TotalFrames,
		render.WithFit(c.fit), render.WithLogger(c.logger))

	if c.values.Preload {
		c.preloader = preload.New(c.loader, preload.WithWorkers(c.workers), preload.WithLogger(c.logger))
		c.preloader.Warm(c.ctx, c.template, c.values.TotalFrames)
	}

	c.gate = visibility.NewGate(c.host.ScrollTarget(), c.OnScroll,
		visibility.WithThreshold(c.threshold), visibility.WithLogger(c.logger))
	gate := c.gate
	c.logger.Info("scrubber connected", "template", c.template, "total_frames", c.values.TotalFrames, "preload", c.values.Preload)

	c.mu.Unlock()

	// The observer may deliver its first entry synchronously.
	gate.Watch(c.host.Observer())
	return nil
}

// Disconnect detaches the scroll listener, disconnects the observer and cancels in-flight
// loads and preloading. It is safe to call at any time, any number of times.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	cancel, gate := c.cancel, c.gate
	c.cancel, c.gate = nil, nil
	c.mu.Unlock()

	if gate != nil {
		gate.Close()
	}
	if cancel != nil {
		cancel()
		c.logger.Info("scrubber disconnected", "computations", c.computations.Load())
	}
}

// OnScroll is the scroll listener. It defers the frame computation to the next scheduler
// tick; notifications arriving while one is pending are dropped.
func (c *Controller) OnScroll() {
	c.mu.Lock()
	ctx, r, guard := c.ctx, c.renderer, c.guard
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !guard.TryEnter() {
		return
	}
	c.host.Scheduler().Request(func() {
		defer guard.Leave()
		if ctx.Err() != nil {
			return
		}
		frame := c.host.Extent().Frame(c.values.TotalFrames)
		c.computations.Add(1)
		c.lastFrame.Store(int64(frame))
		r.Render(ctx, frame)
	})
}

// Template returns the template resolved at Connect.
func (c *Controller) Template() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template
}

// Renderer returns the active renderer, or nil before Connect.
func (c *Controller) Renderer() *render.Renderer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderer
}

// Preloader returns the preloader started by Connect, or nil.
func (c *Controller) Preloader() *preload.Preloader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preloader
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		Template:     c.template,
		Computations: c.computations.Load(),
		LastFrame:    int(c.lastFrame.Load()),
		Cache:        c.cache.Stats(),
	}
	if c.guard != nil {
		st.Coalesced = c.guard.Dropped()
	}
	if c.gate != nil {
		st.Gate = c.gate.State()
		st.Attaches = c.gate.Attaches()
	}
	if c.renderer != nil {
		st.Render = c.renderer.Stats()
	}
	return st
}
