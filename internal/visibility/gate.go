// Package visibility toggles an expensive scroll listener based on whether the output
// surface is on (or near) the screen.
package visibility

import (
	"log/slog"
	"sync"
)

// State of a Gate.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// DefaultThreshold requires the surface to be fully visible, as IntersectionObserver's 1.0.
const DefaultThreshold = 1.0

// ratioEpsilon absorbs the rounding browsers apply to intersection ratios, which can report
// 0.99... for a fully visible element.
const ratioEpsilon = 0.01

// Entry is one intersection notification.
type Entry struct {
	Intersecting bool
	Ratio        float64
}

// EventTarget is a shared page-level event source such as document scroll.
// Subscribe registers fn and returns the matching deregistration.
type EventTarget interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Observer delivers intersection entries for one observed element.
type Observer interface {
	Observe(fn func(Entry))
	Disconnect()
}

// Gate attaches listener to target while the last entry met the visibility condition.
type Gate struct {
	target    EventTarget
	listener  func()
	threshold float64
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	detach   func()
	observer Observer
	closed   bool

	attaches int
}

// Option configures a Gate.
type Option func(*Gate)

// WithThreshold sets the minimum intersection ratio that counts as visible.
func WithThreshold(t float64) Option {
	return func(g *Gate) { g.threshold = t }
}

// WithLogger sets the gate's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates an Idle gate.
func NewGate(target EventTarget, listener func(), opts ...Option) *Gate {
	g := &Gate{
		target:    target,
		listener:  listener,
		threshold: DefaultThreshold,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Watch starts delivering obs's entries into the gate. The observer is disconnected by Close.
func (g *Gate) Watch(obs Observer) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		obs.Disconnect()
		return
	}
	g.observer = obs
	g.mu.Unlock()
	obs.Observe(g.Update)
}

// Update applies an entry: attach when it meets the condition, detach otherwise.
func (g *Gate) Update(e Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	visible := e.Intersecting && e.Ratio >= g.threshold-ratioEpsilon
	switch {
	case visible && g.state == Idle:
		g.detach = g.target.Subscribe(g.listener)
		g.state = Listening
		g.attaches++
		g.logger.Debug("visibility gate attached", "ratio", e.Ratio)
	case !visible && g.state == Listening:
		g.release()
		g.logger.Debug("visibility gate detached", "ratio", e.Ratio)
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Attaches returns how many times the listener has been attached.
func (g *Gate) Attaches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attaches
}

// Close disconnects the observer and detaches the listener regardless of state.
// Calling Close more than once is a no-op.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.release()
	obs := g.observer
	g.observer = nil
	g.mu.Unlock()

	if obs != nil {
		obs.Disconnect()
	}
}

func (g *Gate) release() {
	if g.detach != nil {
		g.detach()
		g.detach = nil
	}
	g.state = Idle
}
