package jobs

import "sync/atomic"

// guard rejects overlapping runs of one entry point without blocking.
type guard struct {
	busy atomic.Bool
}

func (g *guard) tryAcquire() bool { return g.busy.CompareAndSwap(false, true) }

func (g *guard) release() { g.busy.Store(false) }

// Running reports whether a run currently holds the guard.
func (g *guard) Running() bool { return g.busy.Load() }
