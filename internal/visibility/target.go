package visibility

import "sync"

// Target is an in-process EventTarget. Hosts without a native event system (terminal,
// headless) dispatch scroll notifications through it.
type Target struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

// NewTarget creates an empty Target.
func NewTarget() *Target {
	return &Target{subs: make(map[int]func())}
}

// Subscribe implements EventTarget. The returned function is safe to call repeatedly.
func (t *Target) Subscribe(fn func()) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// Dispatch calls every subscribed listener.
func (t *Target) Dispatch() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of subscribed listeners.
func (t *Target) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
