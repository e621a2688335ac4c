package visibility

import "sync"

// Rect is an axis-aligned box in viewport coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Area returns W*H, or 0 for an empty rect.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Expand grows r vertically by margin on both edges.
func (r Rect) Expand(margin float64) Rect {
	return Rect{X: r.X, Y: r.Y - margin, W: r.W, H: r.H + 2*margin}
}

// Intersection computes the entry for element against viewport grown by rootMargin.
func Intersection(element, viewport Rect, rootMargin float64) Entry {
	root := viewport.Expand(rootMargin)
	overlap := element.Intersect(root)
	area := element.Area()
	if area == 0 || overlap.Area() == 0 {
		return Entry{}
	}
	return Entry{Intersecting: true, Ratio: overlap.Area() / area}
}

// RectObserver computes entries geometrically for hosts without a native intersection
// observer. Hosts call Check whenever layout or scroll position changes; an entry is
// delivered on the first check and whenever the visible state flips.
type RectObserver struct {
	element    func() Rect
	viewport   func() Rect
	rootMargin float64
	threshold  float64

	mu        sync.Mutex
	fn        func(Entry)
	delivered bool
	last      bool
}

// NewRectObserver creates an observer for the element and viewport rect getters.
// A negative rootMargin means one viewport height.
func NewRectObserver(element, viewport func() Rect, rootMargin, threshold float64) *RectObserver {
	return &RectObserver{
		element:    element,
		viewport:   viewport,
		rootMargin: rootMargin,
		threshold:  threshold,
	}
}

// Observe implements Observer.
func (o *RectObserver) Observe(fn func(Entry)) {
	o.mu.Lock()
	o.fn = fn
	o.delivered = false
	o.mu.Unlock()
	o.Check()
}

// Disconnect implements Observer.
func (o *RectObserver) Disconnect() {
	o.mu.Lock()
	o.fn = nil
	o.mu.Unlock()
}

// Check recomputes the entry and delivers it if the visible state changed.
func (o *RectObserver) Check() {
	vp := o.viewport()
	margin := o.rootMargin
	if margin < 0 {
		margin = vp.H
	}
	e := Intersection(o.element(), vp, margin)
	visible := e.Intersecting && e.Ratio >= o.threshold-ratioEpsilon

	o.mu.Lock()
	fn := o.fn
	if fn == nil || (o.delivered && visible == o.last) {
		o.mu.Unlock()
		return
	}
	o.delivered = true
	o.last = visible
	o.mu.Unlock()

	fn(e)
}
