// Package headless simulates a page for the scrubber: a viewport scrolled over a document
// containing the host element, with a sticky drawing surface pinned inside it.
package headless

import (
	"sync"

	"github.com/ivlev/framescrub/internal/config"
	"github.com/ivlev/framescrub/internal/render"
	"github.com/ivlev/framescrub/internal/scheduler"
	"github.com/ivlev/framescrub/internal/scrollmap"
	"github.com/ivlev/framescrub/internal/visibility"
)

// Page implements scrubber.Host without a browser. Ticks are driven explicitly.
type Page struct {
	viewport config.Size
	surfaceH float64
	elemTop  float64
	elemH    float64
	length   float64

	mu      sync.Mutex
	scrollY float64

	target   *visibility.Target
	observer *visibility.RectObserver
	loop     *scheduler.Loop
	surface  render.Surface
}

// New builds a page from cfg drawing onto surface. If surface is nil a gg-backed surface of
// cfg.Surface size is created.
func New(cfg *config.Config, surface render.Surface) *Page {
	if surface == nil {
		surface = render.NewGGSurface(cfg.Surface.Width, cfg.Surface.Height)
	}
	_, sh := surface.Size()
	p := &Page{
		viewport: cfg.Viewport,
		surfaceH: float64(sh),
		elemTop:  cfg.Page.Top,
		elemH:    cfg.Page.Height,
		length:   cfg.Page.Length,
		target:   visibility.NewTarget(),
		loop:     scheduler.NewLoop(cfg.Tick),
		surface:  surface,
	}
	if p.length <= 0 {
		p.length = p.elemTop + p.elemH + float64(p.viewport.Height)
	}
	p.observer = visibility.NewRectObserver(p.surfaceRect, p.viewportRect, cfg.RootMargin, cfg.Threshold)
	return p
}

func (p *Page) ViewportWidth() int                   { return p.viewport.Width }
func (p *Page) ScrollTarget() visibility.EventTarget { return p.target }
func (p *Page) Observer() visibility.Observer        { return p.observer }
func (p *Page) Scheduler() scheduler.Scheduler       { return p.loop }
func (p *Page) Surface() render.Surface              { return p.surface }

// Extent implements scrubber.Host.
func (p *Page) Extent() scrollmap.Extent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return scrollmap.Extent{Top: p.elemTop - p.scrollY, Height: p.elemH}
}

// MaxScroll is the largest scroll offset.
func (p *Page) MaxScroll() float64 {
	return max(p.length-float64(p.viewport.Height), 0)
}

// ScrollY returns the current scroll offset.
func (p *Page) ScrollY() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY
}

// ScrollTo moves the viewport, lets the observer see the new layout and fires a scroll event.
func (p *Page) ScrollTo(y float64) {
	y = min(max(y, 0), p.MaxScroll())
	p.mu.Lock()
	p.scrollY = y
	p.mu.Unlock()

	p.observer.Check()
	p.target.Dispatch()
}

// ScrollBy moves the viewport by dy.
func (p *Page) ScrollBy(dy float64) {
	p.ScrollTo(p.ScrollY() + dy)
}

// Tick runs one paint tick and returns the number of callbacks run.
func (p *Page) Tick() int {
	return p.loop.Tick()
}

// Loop exposes the page's scheduler for hosts that drive it with a ticker.
func (p *Page) Loop() *scheduler.Loop {
	return p.loop
}

// Listeners returns the number of attached scroll listeners.
func (p *Page) Listeners() int {
	return p.target.Len()
}

func (p *Page) viewportRect() visibility.Rect {
	return visibility.Rect{W: float64(p.viewport.Width), H: float64(p.viewport.Height)}
}

// surfaceRect places the surface at the element's top, then keeps it pinned to the viewport
// top until the element's bottom edge pushes it up.
func (p *Page) surfaceRect() visibility.Rect {
	top := p.Extent().Top
	y := top
	if y < 0 {
		y = min(0, top+p.elemH-p.surfaceH)
	}
	return visibility.Rect{Y: y, W: float64(p.viewport.Width), H: p.surfaceH}
}
