package amp

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// ToneStack is a multi-band EQ driven by knob values in [0, 10].
type ToneStack interface {
	SetParam(name string, value float64)
	Process(buf []float64)
	Reset(sampleRate float64, maxBlockSize int)
}

// Tone stack parameter names accepted by SetParam.
const (
	ToneBass     = "bass"
	ToneMiddle   = "middle"
	ToneTreble   = "treble"
	TonePresence = "presence"
	ToneDepth    = "depth"
)

type toneBand struct {
	name      string
	freqHz    float64
	q         float64
	dbPerStep float64
	shape     func(freq, gainDB, q, sampleRate float64) biquad.Coefficients

	value   float64
	section biquad.Section
}

// BasicToneStack is five biquad bands in series. A knob value of 5 is flat.
type BasicToneStack struct {
	sampleRate float64
	bands      []*toneBand
}

// NewBasicToneStack returns a flat tone stack.
func NewBasicToneStack() *BasicToneStack {
	ts := &BasicToneStack{
		bands: []*toneBand{
			{name: ToneDepth, freqHz: 90, q: 0.707, dbPerStep: 1.5, shape: design.LowShelf},
			{name: ToneBass, freqHz: 150, q: 0.707, dbPerStep: 4, shape: design.LowShelf},
			{name: ToneMiddle, freqHz: 425, q: 0.7, dbPerStep: 3, shape: peak},
			{name: ToneTreble, freqHz: 1800, q: 0.707, dbPerStep: 2, shape: design.HighShelf},
			{name: TonePresence, freqHz: 4000, q: 0.707, dbPerStep: 1.5, shape: design.HighShelf},
		},
	}
	for _, b := range ts.bands {
		b.value = 5
		b.section.Coefficients = biquad.Coefficients{B0: 1}
	}
	return ts
}

func peak(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	return design.Peak(freq, gainDB, q, sampleRate)
}

// SetParam sets one band. Unknown names are ignored.
func (ts *BasicToneStack) SetParam(name string, value float64) {
	for _, b := range ts.bands {
		if b.name != name {
			continue
		}
		if b.value != value {
			b.value = value
			ts.design(b)
		}
		return
	}
}

// Param returns the current knob value of a band.
func (ts *BasicToneStack) Param(name string) (float64, bool) {
	for _, b := range ts.bands {
		if b.name == name {
			return b.value, true
		}
	}
	return 0, false
}

// Process filters buf in place. Flat bands are skipped.
func (ts *BasicToneStack) Process(buf []float64) {
	for _, b := range ts.bands {
		if b.value == 5 {
			continue
		}
		b.section.ProcessBlock(buf)
	}
}

// Reset redesigns all bands for sampleRate and clears their state.
func (ts *BasicToneStack) Reset(sampleRate float64, _ int) {
	ts.sampleRate = sampleRate
	for _, b := range ts.bands {
		ts.design(b)
		b.section.Reset()
	}
}

func (ts *BasicToneStack) design(b *toneBand) {
	gainDB := (b.value - 5) * b.dbPerStep
	if ts.sampleRate <= 0 || gainDB == 0 {
		b.section.Coefficients = biquad.Coefficients{B0: 1}
		return
	}
	c := b.shape(b.freqHz, gainDB, b.q, ts.sampleRate)
	if c == (biquad.Coefficients{}) {
		c = biquad.Coefficients{B0: 1}
	}
	b.section.Coefficients = c
}
