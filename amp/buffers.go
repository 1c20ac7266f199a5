package amp

// channelBuffer is one contiguous allocation viewed as per-channel slices.
// It only ever grows.
type channelBuffer struct {
	backing  []float64
	views    [][]float64
	channels int
	frames   int
}

// ensure guarantees room for channels x frames and returns true when it had
// to reallocate.
func (b *channelBuffer) ensure(channels, frames int) bool {
	if channels <= b.channels && frames <= b.frames {
		return false
	}
	b.channels = max(channels, b.channels)
	b.frames = max(frames, b.frames)
	b.backing = make([]float64, b.channels*b.frames)
	b.views = make([][]float64, b.channels)
	for c := range b.views {
		b.views[c] = b.backing[c*b.frames : (c+1)*b.frames]
	}
	return true
}

// channel returns the first n frames of channel c.
func (b *channelBuffer) channel(c, n int) []float64 {
	return b.views[c][:n]
}

func (b *channelBuffer) capacity() (channels, frames int) {
	return b.channels, b.frames
}
