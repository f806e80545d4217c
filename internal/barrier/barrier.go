// Package barrier implements a reusable, cyclic N-party rendezvous
// point, used to synchronize the FeedReader goroutines of a feed group
// after each has read its URLs and before it enqueues the result
// (spec.md §4.3 step 5; §9 open question (c)).
//
// Go's standard library has no reusable barrier primitive (sync.WaitGroup
// is single-use and panics if reused before its counter reaches zero), so
// this is implemented directly on sync.Mutex and sync.Cond, grounded in
// the same generation-counter technique java.util.concurrent.CyclicBarrier
// and Python's asyncio equivalents use.
package barrier

import "sync"

// Barrier lets a fixed number of parties wait for each other at a point,
// then proceeds and resets for the next cycle.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	count      int
	generation uint64
}

// New returns a Barrier for the given number of parties. Parties must be
// at least 1.
func New(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current
// generation, then returns. The barrier resets automatically so the same
// Barrier can be reused for the next cycle.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.count++
	if b.count == b.parties {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

// Parties reports the number of parties configured for this barrier.
func (b *Barrier) Parties() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parties
}
