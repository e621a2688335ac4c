// Package scheduler provides paint-aligned callback scheduling: callbacks requested during
// one tick run together at the start of the next one.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is one frame at ~60 FPS.
const DefaultInterval = 16 * time.Millisecond

// Scheduler defers a callback to the next paint tick.
type Scheduler interface {
	Request(fn func())
}

// Loop is a Scheduler driven either by Run (a ticker) or by explicit Tick calls.
type Loop struct {
	interval time.Duration

	mu    sync.Mutex
	queue []func()

	ticks atomic.Uint64
}

// NewLoop creates a loop that ticks every interval once Run is called.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{interval: interval}
}

// Request queues fn for the next tick.
func (l *Loop) Request(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

// Tick runs every callback queued before the call. Callbacks requested while the tick is
// running wait for the following tick. It returns the number of callbacks run.
func (l *Loop) Tick() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	l.ticks.Add(1)
	return len(batch)
}

// Ticks returns how many ticks have run.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Run ticks at the loop interval until ctx is done. Callbacks still queued at that point
// are discarded.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.queue = nil
			l.mu.Unlock()
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}
