package ring

// FIFO is a fixed-capacity single-goroutine sample queue. It never grows
// after construction.
type FIFO struct {
	buf   []float64
	head  int
	count int
}

// NewFIFO returns an empty queue holding at most capacity samples.
func NewFIFO(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{buf: make([]float64, capacity)}
}

// Len returns the number of queued samples.
func (f *FIFO) Len() int { return f.count }

// Cap returns the fixed capacity.
func (f *FIFO) Cap() int { return len(f.buf) }

// Write appends samples and returns how many fit.
func (f *FIFO) Write(samples []float64) int {
	n := 0
	for _, v := range samples {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = v
		f.count++
		n++
	}
	return n
}

// WriteZeros appends n zero samples, bounded by the free space.
func (f *FIFO) WriteZeros(n int) {
	for i := 0; i < n && f.count < len(f.buf); i++ {
		f.buf[(f.head+f.count)%len(f.buf)] = 0
		f.count++
	}
}

// Read fills dst from the queue and returns the number of samples read. The
// remainder of dst is left untouched.
func (f *FIFO) Read(dst []float64) int {
	n := 0
	for n < len(dst) && f.count > 0 {
		dst[n] = f.buf[f.head]
		f.head = (f.head + 1) % len(f.buf)
		f.count--
		n++
	}
	return n
}

// Reset empties the queue.
func (f *FIFO) Reset() {
	f.head = 0
	f.count = 0
}
