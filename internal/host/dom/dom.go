//go:build js && wasm

// Package dom binds the scrubber to a browser page through syscall/js: document scroll
// events, an IntersectionObserver on the canvas, requestAnimationFrame and a 2D context.
package dom

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/url"
	"sync"
	"syscall/js"

	"github.com/ivlev/framescrub/internal/render"
	"github.com/ivlev/framescrub/internal/scheduler"
	"github.com/ivlev/framescrub/internal/scrollmap"
	"github.com/ivlev/framescrub/internal/source"
	"github.com/ivlev/framescrub/internal/visibility"
)

// Host is a page element containing a sticky canvas.
type Host struct {
	element    js.Value
	canvas     *Canvas
	threshold  float64
	rootMargin float64
}

// NewHost wraps element and the canvas drawn into. A negative rootMargin means one viewport
// height.
func NewHost(element, canvas js.Value, threshold, rootMargin float64) *Host {
	return &Host{
		element:    element,
		canvas:     NewCanvas(canvas),
		threshold:  threshold,
		rootMargin: rootMargin,
	}
}

func (h *Host) ViewportWidth() int { return js.Global().Get("innerWidth").Int() }
func (h *Host) ScrollTarget() visibility.EventTarget {
	return &EventTarget{target: js.Global().Get("document"), event: "scroll"}
}
func (h *Host) Scheduler() scheduler.Scheduler { return AnimationFrames{} }
func (h *Host) Surface() render.Surface        { return h.canvas }

// Extent reads the element's bounding box.
func (h *Host) Extent() scrollmap.Extent {
	rect := h.element.Call("getBoundingClientRect")
	return scrollmap.Extent{Top: rect.Get("top").Float(), Height: rect.Get("height").Float()}
}

// Observer returns a fresh IntersectionObserver bound to the canvas.
func (h *Host) Observer() visibility.Observer {
	margin := fmt.Sprintf("%gpx", h.rootMargin)
	if h.rootMargin < 0 {
		margin = "100% 0px"
	}
	return &Observer{el: h.canvas.el, threshold: h.threshold, rootMargin: margin}
}

// EventTarget adapts addEventListener/removeEventListener. Both calls go to the same target.
type EventTarget struct {
	target js.Value
	event  string
}

func (t *EventTarget) Subscribe(fn func()) func() {
	cb := js.FuncOf(func(js.Value, []js.Value) any {
		fn()
		return nil
	})
	opts := map[string]any{"passive": true}
	t.target.Call("addEventListener", t.event, cb, opts)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.target.Call("removeEventListener", t.event, cb, opts)
			cb.Release()
		})
	}
}

// Observer wraps an IntersectionObserver watching a single element.
type Observer struct {
	el         js.Value
	threshold  float64
	rootMargin string

	obs js.Value
	cb  js.Func
}

func (o *Observer) Observe(fn func(visibility.Entry)) {
	o.cb = js.FuncOf(func(_ js.Value, args []js.Value) any {
		entries := args[0]
		n := entries.Length()
		if n == 0 {
			return nil
		}
		// Batched entries are in time order; the last one is current.
		e := entries.Index(n - 1)
		fn(visibility.Entry{
			Intersecting: e.Get("isIntersecting").Bool(),
			Ratio:        e.Get("intersectionRatio").Float(),
		})
		return nil
	})
	o.obs = js.Global().Get("IntersectionObserver").New(o.cb, map[string]any{
		"threshold":  o.threshold,
		"rootMargin": o.rootMargin,
	})
	o.obs.Call("observe", o.el)
}

func (o *Observer) Disconnect() {
	if o.obs.IsUndefined() {
		return
	}
	o.obs.Call("disconnect")
	o.obs = js.Undefined()
	o.cb.Release()
}

// AnimationFrames schedules callbacks with requestAnimationFrame.
type AnimationFrames struct{}

func (AnimationFrames) Request(fn func()) {
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	js.Global().Call("requestAnimationFrame", cb)
}

// Canvas draws frames with putImageData on a 2D context.
type Canvas struct {
	el  js.Value
	ctx js.Value

	mu sync.Mutex
}

func NewCanvas(el js.Value) *Canvas {
	return &Canvas{el: el, ctx: el.Call("getContext", "2d")}
}

func (c *Canvas) Size() (int, int) {
	return c.el.Get("width").Int(), c.el.Get("height").Int()
}

func (c *Canvas) Draw(img image.Image, r render.Rect) {
	w, h := c.Size()
	px, at, ok := render.StraightCrop(img, r, w, h)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	arr := js.Global().Get("Uint8ClampedArray").New(len(px.Pix))
	js.CopyBytesToJS(arr, px.Pix)
	data := js.Global().Get("ImageData").New(arr, px.Rect.Dx(), px.Rect.Dy())
	c.ctx.Call("putImageData", data, at.X, at.Y)
}

// BaseLoader resolves relative frame URLs against the document base before fetching.
type BaseLoader struct {
	Base *url.URL
	Next source.Fetcher
}

// NewBaseLoader uses document.baseURI and an HTTP loader backed by fetch.
func NewBaseLoader() *BaseLoader {
	base, _ := url.Parse(js.Global().Get("document").Get("baseURI").String())
	return &BaseLoader{Base: base, Next: &source.HTTPLoader{}}
}

func (l *BaseLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := l.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return source.Decode(bytes.NewReader(data))
}

func (l *BaseLoader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, source.ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if l.Base != nil {
		u = l.Base.ResolveReference(u)
	}
	return l.Next.Fetch(ctx, u.String())
}
