package amp

import (
	"fmt"
	"math"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"

	"github.com/cwbudde/algo-amp/internal/ring"
)

// DefaultNativeRate is assumed for models that do not report a rate.
const DefaultNativeRate = 48000.0

// resamplerPriming is the number of zeros queued ahead of the converted
// output so that ratio jitter of the two stages never starves a block.
const resamplerPriming = 4

type resamplingContainer struct {
	up   *dspresample.Resampler
	down *dspresample.Resampler

	native  []float64
	fifo    *ring.FIFO
	latency int
}

func newResamplingContainer(hostRate, nativeRate float64, maxHostBlock int) (*resamplingContainer, error) {
	up, err := dspresample.NewForRates(hostRate, nativeRate, dspresample.WithQuality(dspresample.QualityBalanced))
	if err != nil {
		return nil, fmt.Errorf("host to native resampler: %w", err)
	}
	down, err := dspresample.NewForRates(nativeRate, hostRate, dspresample.WithQuality(dspresample.QualityBalanced))
	if err != nil {
		return nil, fmt.Errorf("native to host resampler: %w", err)
	}

	c := &resamplingContainer{
		up:     up,
		down:   down,
		native: make([]float64, nativeBlockSize(maxHostBlock, hostRate, nativeRate)+2),
		fifo:   ring.NewFIFO(2*maxHostBlock + 2*resamplerPriming + 16),
	}

	upFactor, _ := up.Ratio()
	_, downFactor := down.Ratio()
	upDelay := float64(len(up.Prototype())-1) / (2 * float64(upFactor))
	downDelay := float64(len(down.Prototype())-1) / (2 * float64(downFactor))
	c.latency = resamplerPriming + int(math.Round(upDelay+downDelay))

	c.fifo.WriteZeros(resamplerPriming)
	return c, nil
}

func (c *resamplingContainer) process(m Model, in, out []float64) {
	x := c.up.Process(in)
	if len(x) > len(c.native) {
		c.native = make([]float64, len(x))
	}
	y := c.native[:len(x)]
	if len(x) > 0 {
		m.Process(x, y)
	}
	c.fifo.Write(c.down.Process(y))
	n := c.fifo.Read(out)
	clear(out[n:])
}

func nativeBlockSize(hostBlock int, hostRate, nativeRate float64) int {
	return int(math.Ceil(float64(hostBlock) * nativeRate / hostRate))
}

// ResamplingModel runs a Model at its native rate regardless of the host
// rate.
type ResamplingModel struct {
	model Model

	nativeRate   float64
	hostRate     float64
	maxBlockSize int

	container *resamplingContainer
}

// NewResamplingModel wraps m. Reset must be called before Process.
func NewResamplingModel(m Model) *ResamplingModel {
	native := m.ExpectedSampleRate()
	if native <= 0 {
		native = DefaultNativeRate
	}
	return &ResamplingModel{model: m, nativeRate: native}
}

// Reset prepares the wrapper for hostRate and blocks of up to maxBlockSize
// frames, then resets and prewarms the wrapped model at its native rate.
func (r *ResamplingModel) Reset(hostRate float64, maxBlockSize int) error {
	r.hostRate = hostRate
	r.maxBlockSize = maxBlockSize
	r.container = nil

	if !r.NeedsResampling() {
		r.model.ResetAndPrewarm(r.nativeRate, maxBlockSize)
		return nil
	}

	c, err := newResamplingContainer(hostRate, r.nativeRate, maxBlockSize)
	if err != nil {
		r.model.ResetAndPrewarm(hostRate, maxBlockSize)
		return err
	}
	r.container = c
	r.model.ResetAndPrewarm(r.nativeRate, len(c.native))
	return nil
}

// Process renders one host-rate block. Blocks larger than the size given to
// Reset are copied through unchanged.
func (r *ResamplingModel) Process(in, out []float64) {
	if len(in) > r.maxBlockSize {
		copy(out, in)
		return
	}
	if r.container == nil {
		r.model.Process(in, out)
		return
	}
	r.container.process(r.model, in, out)
}

// NeedsResampling reports whether host and native rates differ.
func (r *ResamplingModel) NeedsResampling() bool {
	return r.nativeRate != r.hostRate
}

// Latency returns the added delay in host samples.
func (r *ResamplingModel) Latency() int {
	if r.container == nil {
		return 0
	}
	return r.container.latency
}

func (r *ResamplingModel) NativeRate() float64 { return r.nativeRate }

func (r *ResamplingModel) Model() Model { return r.model }

func (r *ResamplingModel) Loudness() (float64, bool) { return r.model.Loudness() }

func (r *ResamplingModel) InputLevel() (float64, bool) { return r.model.InputLevel() }

func (r *ResamplingModel) OutputLevel() (float64, bool) { return r.model.OutputLevel() }
