// Package ring provides sample buffers shared between the audio callback and
// other goroutines.
package ring

import (
	"math"
	"sync/atomic"
)

// SPSC is a lock-free single-producer single-consumer sample ring.
//
// The writer never blocks: once the ring is full the oldest samples are
// overwritten. Readers copy the most recent samples using the monotonic
// write index, so a slow reader sees a newer window rather than stale data.
type SPSC struct {
	data  []atomic.Uint32
	mask  uint64
	write atomic.Uint64
}

// NewSPSC returns a ring whose capacity is size rounded up to a power of two.
func NewSPSC(size int) *SPSC {
	capacity := 1
	for capacity < size {
		capacity <<= 1
	}
	return &SPSC{
		data: make([]atomic.Uint32, capacity),
		mask: uint64(capacity - 1),
	}
}

// Cap returns the ring capacity.
func (r *SPSC) Cap() int { return len(r.data) }

// Push appends samples. Only one goroutine may push.
func (r *SPSC) Push(samples []float64) {
	w := r.write.Load()
	for _, v := range samples {
		r.data[w&r.mask].Store(math.Float32bits(float32(v)))
		w++
	}
	r.write.Store(w)
}

// Written returns the total number of samples ever pushed.
func (r *SPSC) Written() uint64 { return r.write.Load() }

// Latest copies the len(dst) most recent samples into dst, oldest first.
// It returns false when fewer samples have been written or dst exceeds the
// capacity.
func (r *SPSC) Latest(dst []float32) bool {
	n := uint64(len(dst))
	if n > uint64(len(r.data)) {
		return false
	}
	w := r.write.Load()
	if w < n {
		return false
	}
	start := w - n
	for i := range dst {
		dst[i] = math.Float32frombits(r.data[(start+uint64(i))&r.mask].Load())
	}
	return true
}

// Reset discards all samples. It must not run concurrently with Push.
func (r *SPSC) Reset() {
	for i := range r.data {
		r.data[i].Store(0)
	}
	r.write.Store(0)
}
