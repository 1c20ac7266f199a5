// Package staging hands DSP modules built off the audio thread to the audio
// thread at a single commit point per block.
package staging

import "sync/atomic"

// Result reports what a CommitPending call changed.
type Result uint8

const (
	// Cleared is set when a removal request emptied the live slot.
	Cleared Result = 1 << iota
	// Loaded is set when a staged value was promoted to live.
	Loaded
)

// Has reports whether r contains all bits of flag.
func (r Result) Has(flag Result) bool { return r&flag == flag }

// Slot holds a live value used by the audio thread and a staged value
// published by a loader goroutine.
//
// Stage and RequestRemoval may be called from any goroutine. CommitPending
// and Live must only be called from the goroutine that runs the audio
// callback.
type Slot[T any] struct {
	staged  atomic.Pointer[T]
	removal atomic.Bool

	live *T
}

// Stage publishes v as the next live value. A previously staged value that
// was never committed is returned so the caller can release it.
func (s *Slot[T]) Stage(v *T) (superseded *T) {
	return s.staged.Swap(v)
}

// RequestRemoval asks the audio thread to drop the live value at its next
// commit point.
func (s *Slot[T]) RequestRemoval() {
	s.removal.Store(true)
}

// CommitPending applies pending removal and then pending promotion.
func (s *Slot[T]) CommitPending() Result {
	var res Result
	if s.removal.CompareAndSwap(true, false) {
		s.live = nil
		res |= Cleared
	}
	if next := s.staged.Swap(nil); next != nil {
		s.live = next
		res |= Loaded
	}
	return res
}

// Live returns the value committed by the last CommitPending, or nil.
func (s *Slot[T]) Live() *T {
	return s.live
}

// Pending reports whether a staged value is waiting for commit.
func (s *Slot[T]) Pending() bool {
	return s.staged.Load() != nil
}

// Staged returns the value waiting for commit without consuming it.
func (s *Slot[T]) Staged() *T {
	return s.staged.Load()
}
