// Package clock provides the monotonic counter that hands out sorted-run ids.
package clock

import "sync/atomic"

// AtomicClock is a counter safe for concurrent readers. Ids are never reused,
// so the writer may create new runs while the compactor merges older ones.
type AtomicClock struct {
	atomic.Uint64
}

func NewAtomic(init uint64) *AtomicClock {
	var ac AtomicClock
	ac.Set(init)
	return &ac
}

// Val returns the next id to hand out without consuming it.
func (ac *AtomicClock) Val() uint64 {
	return ac.Load()
}

// Next consumes the current id and returns the one after it.
func (ac *AtomicClock) Next() uint64 {
	return ac.Add(1)
}

func (ac *AtomicClock) Set(t uint64) {
	ac.Store(t)
}
