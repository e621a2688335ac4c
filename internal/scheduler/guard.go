package scheduler

import "sync/atomic"

// Guard is a non-blocking reentrancy flag. TryEnter succeeds for exactly one caller until
// Leave is called; the losers are expected to drop their work rather than wait.
type Guard struct {
	busy    atomic.Bool
	dropped atomic.Uint64
}

// TryEnter claims the guard. It returns false, and counts a drop, if it is already held.
func (g *Guard) TryEnter() bool {
	if g.busy.CompareAndSwap(false, true) {
		return true
	}
	g.dropped.Add(1)
	return false
}

// Leave releases the guard.
func (g *Guard) Leave() {
	g.busy.Store(false)
}

// Dropped returns how many TryEnter calls lost.
func (g *Guard) Dropped() uint64 {
	return g.dropped.Load()
}
