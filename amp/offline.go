package amp

// Render streams input through e in blocks of at most blockSize frames and
// returns outChannels rendered channels of the input length plus tail
// frames of silence. onBlock, when set, runs after every block with the
// number of frames rendered so far.
func (e *Engine) Render(input [][]float64, blockSize, outChannels, tail int, onBlock func(done int)) [][]float64 {
	if blockSize <= 0 {
		blockSize = e.maxBlockSize
	}
	if outChannels < 1 {
		outChannels = 1
	}
	frames := 0
	if len(input) > 0 {
		frames = len(input[0])
		for _, ch := range input[1:] {
			frames = min(frames, len(ch))
		}
	}
	total := frames + max(tail, 0)

	out := make([][]float64, outChannels)
	for c := range out {
		out[c] = make([]float64, total)
	}
	silence := make([]float64, blockSize)
	inBlock := make([][]float64, max(len(input), 1))
	outBlock := make([][]float64, outChannels)

	for start := 0; start < total; start += blockSize {
		n := min(blockSize, total-start)
		for c := range inBlock {
			switch {
			case len(input) == 0 || start >= frames:
				inBlock[c] = silence[:n]
			case start+n > frames:
				// Straddles the end of the input: pad with silence.
				buf := make([]float64, n)
				copy(buf, input[c][start:frames])
				inBlock[c] = buf
			default:
				inBlock[c] = input[c][start : start+n]
			}
		}
		for c := range outBlock {
			outBlock[c] = out[c][start : start+n]
		}
		e.ProcessBlock(inBlock, outBlock, n)
		if onBlock != nil {
			onBlock(start + n)
		}
	}
	return out
}
