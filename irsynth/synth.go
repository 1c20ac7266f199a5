// Package irsynth synthesizes guitar cabinet impulse responses.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// CabConfig controls synthetic cabinet IR generation.
//
// The kernel is a direct impulse shaped by a damped cone resonance, a set of
// cone breakup modes and a Butterworth rolloff. MicOffset moves the virtual
// microphone from the dust cap (0) towards the cone edge (1), which delays
// the arrival, darkens the rolloff and weakens the upper breakup modes.
type CabConfig struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	ResonanceHz float64
	ResonanceQ  float64

	BreakupModes  int
	BreakupLowHz  float64
	BreakupHighHz float64

	RolloffHz    float64
	RolloffOrder int
	MicOffset    float64

	NormalizePeak float64
}

// DefaultCabConfig returns a closed-back 1x12 style cabinet.
func DefaultCabConfig() CabConfig {
	return CabConfig{
		SampleRate:    48000,
		DurationS:     0.2,
		Seed:          1,
		ResonanceHz:   110,
		ResonanceQ:    2.5,
		BreakupModes:  24,
		BreakupLowHz:  1200,
		BreakupHighHz: 4800,
		RolloffHz:     5200,
		RolloffOrder:  4,
		MicOffset:     0,
		NormalizePeak: 0.9,
	}
}

func (c *CabConfig) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	nyquist := 0.5 * float64(c.SampleRate)
	if c.ResonanceHz <= 0 || c.ResonanceHz >= nyquist {
		return fmt.Errorf("resonance must be in (0, %g) Hz", nyquist)
	}
	if c.ResonanceQ <= 0 {
		return fmt.Errorf("resonance Q must be > 0")
	}
	if c.BreakupModes < 0 {
		return fmt.Errorf("breakup modes must be >= 0")
	}
	if c.BreakupModes > 0 {
		if c.BreakupLowHz <= 0 || c.BreakupHighHz <= c.BreakupLowHz || c.BreakupHighHz >= nyquist {
			return fmt.Errorf("breakup band must satisfy 0 < low < high < %g Hz", nyquist)
		}
	}
	if c.RolloffHz <= 0 || c.RolloffHz >= nyquist {
		return fmt.Errorf("rolloff must be in (0, %g) Hz", nyquist)
	}
	if c.RolloffOrder < 1 || c.RolloffOrder > 8 {
		return fmt.Errorf("rolloff order must be in [1, 8]")
	}
	if c.MicOffset < 0 || c.MicOffset > 1 {
		return fmt.Errorf("mic offset must be in [0, 1]")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// GenerateCab synthesizes a mono cabinet IR according to cfg.
func GenerateCab(cfg CabConfig) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)

	// Off-axis arrival is up to 0.25 ms later.
	onset := int(math.Round(cfg.MicOffset * 0.00025 * float64(cfg.SampleRate)))
	if onset >= n {
		onset = n - 1
	}
	body := out[onset:]
	body[0] += 1.0

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Cone resonance starts in sine phase so it adds no step at the onset.
	addModeRec(body, 0.6, cfg.ResonanceHz, -0.5*math.Pi,
		modeDecay(cfg.ResonanceHz, cfg.ResonanceQ, cfg.SampleRate), cfg.SampleRate)

	for m := 0; m < cfg.BreakupModes; m++ {
		pos := (float64(m) + 0.5) / float64(cfg.BreakupModes)
		pos += (rng.Float64() - 0.5) / float64(cfg.BreakupModes)
		f := cfg.BreakupLowHz * math.Pow(cfg.BreakupHighHz/cfg.BreakupLowHz, pos)

		amp := (0.04 + 0.12*rng.Float64()) * lerp(1.0, 0.25, cfg.MicOffset*pos)
		q := 8.0 + 14.0*rng.Float64()
		phase := 2.0 * math.Pi * rng.Float64()
		if rng.Intn(2) == 0 {
			amp = -amp
		}
		addModeRec(body, amp, f, phase, modeDecay(f, q, cfg.SampleRate), cfg.SampleRate)
	}

	rolloff := cfg.RolloffHz * lerp(1.0, 0.55, cfg.MicOffset)
	biquad.NewChain(design.ButterworthLP(rolloff, cfg.RolloffOrder, float64(cfg.SampleRate))).ProcessBlock(out)

	highpassDC(out, math.Exp(-2.0*math.Pi*25.0/float64(cfg.SampleRate)))
	applyFadeOut(out, math.Min(0.02, 0.25*cfg.DurationS), cfg.SampleRate)

	peak := maxAbs(out)
	if peak > 0 {
		g := cfg.NormalizePeak / peak
		for i := range out {
			out[i] *= g
		}
	}
	return out, nil
}

// GenerateCabPair returns an on-axis and an off-axis capture of the same
// cabinet. The off-axis capture uses offAxis as MicOffset.
func GenerateCabPair(cfg CabConfig, offAxis float64) ([]float64, []float64, error) {
	on := cfg
	on.MicOffset = 0
	onIR, err := GenerateCab(on)
	if err != nil {
		return nil, nil, err
	}
	off := cfg
	off.MicOffset = offAxis
	offIR, err := GenerateCab(off)
	if err != nil {
		return nil, nil, fmt.Errorf("off-axis: %w", err)
	}
	return onIR, offIR, nil
}

// modeDecay is the per-sample envelope factor of a mode with the given Q.
func modeDecay(freq, q float64, sampleRate int) float64 {
	return math.Exp(-math.Pi * freq / (q * float64(sampleRate)))
}

func addModeRec(out []float64, amp float64, freq float64, phase float64, decay float64, sampleRate int) {
	if len(out) == 0 {
		return
	}
	w := 2.0 * math.Pi * freq / float64(sampleRate)
	cw := math.Cos(w)
	x0 := math.Cos(phase)
	x1 := math.Cos(phase + w)
	env := 1.0

	out[0] += amp * env * x0
	env *= decay
	if len(out) == 1 {
		return
	}
	out[1] += amp * env * x1
	env *= decay
	for i := 2; i < len(out); i++ {
		x2 := 2.0*cw*x1 - x0
		x0 = x1
		x1 = x2
		out[i] += amp * env * x2
		env *= decay
	}
}

func highpassDC(x []float64, r float64) {
	prevIn := 0.0
	prevOut := 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(buf) {
		fadeSamples = len(buf)
	}
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}
