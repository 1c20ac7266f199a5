package nam

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/fir"

	"github.com/cwbudde/algo-amp/amp"
)

// prewarmSamples is the number of zeros fed through a model after reset.
const prewarmSamples = 4096

// Linear is a FIR model plus an optional constant bias.
type Linear struct {
	weights []float64
	bias    float64
	rate    float64
	meta    Metadata

	filter     *fir.Filter
	sampleRate float64
	scratch    []float64
}

var _ amp.Model = (*Linear)(nil)

// NewLinear builds a model from taps ordered oldest sample first. A rate
// <= 0 means the model does not declare one.
func NewLinear(weights []float64, bias, rate float64) *Linear {
	w := append([]float64(nil), weights...)
	coeffs := make([]float64, len(w))
	for i, v := range w {
		coeffs[len(w)-1-i] = v
	}
	return &Linear{
		weights: w,
		bias:    bias,
		rate:    rate,
		filter:  fir.New(coeffs),
	}
}

// ReceptiveField returns the number of input samples each output depends on.
func (m *Linear) ReceptiveField() int { return len(m.weights) }

func (m *Linear) Metadata() Metadata { return m.meta }

// Process computes out from in. It does not allocate.
func (m *Linear) Process(in, out []float64) {
	if len(in) == 0 {
		return
	}
	m.filter.ProcessBlockTo(out[:len(in)], in)
	if m.bias != 0 {
		for i := range in {
			out[i] += m.bias
		}
	}
}

func (m *Linear) Reset(sampleRate float64, maxBlockSize int) {
	m.sampleRate = sampleRate
	if cap(m.scratch) < maxBlockSize {
		m.scratch = make([]float64, maxBlockSize)
	}
	m.scratch = m.scratch[:maxBlockSize]
	m.filter.Reset()
}

func (m *Linear) ResetAndPrewarm(sampleRate float64, maxBlockSize int) {
	m.Reset(sampleRate, maxBlockSize)
	m.Prewarm()
}

// Prewarm settles the model on silence.
func (m *Linear) Prewarm() {
	if len(m.scratch) == 0 {
		return
	}
	for done := 0; done < prewarmSamples; done += len(m.scratch) {
		clear(m.scratch)
		m.filter.ProcessBlock(m.scratch)
	}
}

// Latency is zero: a Linear model is causal without lookahead.
func (m *Linear) Latency() int { return 0 }

func (m *Linear) InputLevel() (float64, bool) { return optional(m.meta.InputLevelDBu) }

func (m *Linear) OutputLevel() (float64, bool) { return optional(m.meta.OutputLevelDBu) }

func (m *Linear) Loudness() (float64, bool) { return optional(m.meta.Loudness) }

func (m *Linear) ExpectedSampleRate() float64 { return m.rate }

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Loader adapts Load to amp.ModelLoader.
func Loader(path string) (amp.Model, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}
