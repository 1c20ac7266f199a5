package amp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// FilterKind selects the response of a one-pole stage.
type FilterKind int

const (
	HighPass FilterKind = iota
	LowPass
)

// DCBlockerHz is the fixed cutoff of the always-on output high-pass.
const DCBlockerHz = 5.0

// OnePole is a first-order RC-style filter stored in a biquad section.
type OnePole struct {
	kind       FilterKind
	sampleRate float64
	cutoffHz   float64
	section    biquad.Section
}

// NewOnePole returns an unconfigured stage that passes audio through until
// SetParams is called.
func NewOnePole(kind FilterKind) *OnePole {
	f := &OnePole{kind: kind}
	f.section.Coefficients = biquad.Coefficients{B0: 1}
	return f
}

// SetParams updates the coefficients when the sample rate or cutoff changed.
// Filter state is kept.
func (f *OnePole) SetParams(sampleRate, cutoffHz float64) {
	if sampleRate == f.sampleRate && cutoffHz == f.cutoffHz {
		return
	}
	f.sampleRate = sampleRate
	f.cutoffHz = cutoffHz
	f.section.Coefficients = onePoleCoefficients(f.kind, sampleRate, cutoffHz)
}

// Process filters buf in place.
func (f *OnePole) Process(buf []float64) {
	f.section.ProcessBlock(buf)
}

// Reset clears the filter memory.
func (f *OnePole) Reset() {
	f.section.Reset()
}

func onePoleCoefficients(kind FilterKind, sampleRate, cutoffHz float64) biquad.Coefficients {
	if sampleRate <= 0 || cutoffHz <= 0 {
		return biquad.Coefficients{B0: 1}
	}
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	dt := 1.0 / sampleRate
	switch kind {
	case LowPass:
		alpha := dt / (rc + dt)
		return biquad.Coefficients{B0: alpha, A1: -(1 - alpha)}
	default:
		alpha := rc / (rc + dt)
		return biquad.Coefficients{B0: alpha, B1: -alpha, A1: -alpha}
	}
}

// FilterCascade chains identical one-pole stages for a steeper slope.
type FilterCascade struct {
	stages []*OnePole
}

// NewFilterCascade returns n stages of the given kind.
func NewFilterCascade(kind FilterKind, n int) *FilterCascade {
	if n < 1 {
		n = 1
	}
	c := &FilterCascade{stages: make([]*OnePole, n)}
	for i := range c.stages {
		c.stages[i] = NewOnePole(kind)
	}
	return c
}

func (c *FilterCascade) SetParams(sampleRate, cutoffHz float64) {
	for _, s := range c.stages {
		s.SetParams(sampleRate, cutoffHz)
	}
}

func (c *FilterCascade) Process(buf []float64) {
	for _, s := range c.stages {
		s.Process(buf)
	}
}

func (c *FilterCascade) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}
