// Package analysis measures how far a rendered signal is from a reference.
package analysis

import (
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/conv"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	freqstats "github.com/cwbudde/algo-dsp/stats/frequency"
	timestats "github.com/cwbudde/algo-dsp/stats/time"
)

// Metrics contains distance and similarity measurements between two audio signals.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE        float64 `json:"time_rmse"`
	EnvelopeRMSEDB  float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB  float64 `json:"spectral_rmse_db"`
	BandRMSEDB      float64 `json:"band_rmse_db"`
	RefDecayDBPerS  float64 `json:"ref_decay_db_per_s"`
	CandDecayDBPerS float64 `json:"cand_decay_db_per_s"`
	DecayDiffDBPerS float64 `json:"decay_diff_db_per_s"`

	// Spectral centroids of the compared frame. Reported only, not scored.
	RefCentroidHz  float64 `json:"ref_centroid_hz"`
	CandCentroidHz float64 `json:"cand_centroid_hz"`

	TimeNorm     float64 `json:"time_norm"`
	EnvelopeNorm float64 `json:"envelope_norm"`
	SpectralNorm float64 `json:"spectral_norm"`
	BandNorm     float64 `json:"band_norm"`
	DecayNorm    float64 `json:"decay_norm"`
	Dominant     string  `json:"dominant"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Score weights of the normalized components. They sum to 1.
const (
	WeightTime     = 0.25
	WeightEnvelope = 0.20
	WeightSpectral = 0.25
	WeightBand     = 0.15
	WeightDecay    = 0.15
)

// octaveCenters are the band centers used for BandRMSEDB.
var octaveCenters = []float64{63, 125, 250, 500, 1000, 2000, 4000, 8000}

const (
	envFrame    = 256
	envHop      = 128
	maxSpecSize = 4096
	minSpecSize = 512

	silenceThreshold = 1e-6
	targetRMS        = 0.1
	minAligned       = 256
	maxCompareS      = 12
)

// component is one scored part of Metrics: its normalized value and weight.
type component struct {
	name   string
	norm   float64
	weight float64
}

// Compare returns objective distance metrics and a combined score in [0,1].
// Lower scores are closer. Both signals are trimmed of leading silence,
// brought to the same RMS and aligned before any distance is measured.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1.0,
	}
	if sampleRate <= 0 {
		return m
	}
	ref, cand := prepare(reference), prepare(candidate)
	if ref == nil || cand == nil {
		return m
	}

	refA, candA, lag := Align(ref, cand, sampleRate)
	m.LagSamples = lag

	n := min(len(refA), len(candA), maxCompareS*sampleRate)
	if n < minAligned {
		return m
	}
	refA, candA = refA[:n], candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA)
	candEnv := rmsEnvelope(candA)
	m.EnvelopeRMSEDB = dbDistance(refEnv, candEnv, linToDB)

	if magRef, magCand, ok := magnitudes(refA, candA); ok {
		m.SpectralRMSEDB = dbDistance(magRef[1:len(magRef)-1], magCand[1:len(magCand)-1], linToDB)
		m.RefCentroidHz = freqstats.Centroid(magRef, float64(sampleRate))
		m.CandCentroidHz = freqstats.Centroid(magCand, float64(sampleRate))
	}
	m.BandRMSEDB = bandRMSEDB(refA, candA, sampleRate)

	hopSec := float64(envHop) / float64(sampleRate)
	m.RefDecayDBPerS = decaySlopeDBPerS(refEnv, hopSec)
	m.CandDecayDBPerS = decaySlopeDBPerS(candEnv, hopSec)
	if isFinite(m.RefDecayDBPerS) && isFinite(m.CandDecayDBPerS) {
		m.DecayDiffDBPerS = math.Abs(m.RefDecayDBPerS - m.CandDecayDBPerS)
	}

	m.TimeNorm = clamp01(m.TimeRMSE / 0.25)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / 30.0)
	m.SpectralNorm = clamp01(m.SpectralRMSEDB / 30.0)
	m.BandNorm = clamp01(m.BandRMSEDB / 20.0)
	m.DecayNorm = clamp01(m.DecayDiffDBPerS / 40.0)

	m.Score, m.Dominant = weigh([]component{
		{"time", m.TimeNorm, WeightTime},
		{"envelope", m.EnvelopeNorm, WeightEnvelope},
		{"spectral", m.SpectralNorm, WeightSpectral},
		{"band", m.BandNorm, WeightBand},
		{"decay", m.DecayNorm, WeightDecay},
	})
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

// weigh sums the weighted components and names the largest one. An all-zero
// set has no dominant component.
func weigh(parts []component) (float64, string) {
	score, worst, dominant := 0.0, 0.0, ""
	for _, p := range parts {
		v := p.norm * p.weight
		score += v
		if v > worst {
			worst, dominant = v, p.name
		}
	}
	return clamp01(score), dominant
}

// prepare drops leading silence and scales x to targetRMS. It returns nil
// for silent input.
func prepare(x []float64) []float64 {
	start := -1
	for i, v := range x {
		if math.Abs(v) > silenceThreshold {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	x = x[start:]

	out := make([]float64, len(x))
	g := 1.0
	if r := timestats.RMS(x); r > 1e-12 {
		g = targetRMS / r
	}
	for i, v := range x {
		out[i] = v * g
	}
	return out
}

// estimateLag returns the lag in [-maxLag, maxLag] maximizing
// sum(ref[i+lag] * cand[i]).
func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	corr, err := conv.CorrelateFFT(ref, cand)
	if err != nil {
		return 0
	}
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := conv.IndexFromLag(lag, len(cand))
		if idx < 0 || idx >= len(corr) {
			continue
		}
		if corr[idx] > best {
			best = corr[idx]
			bestLag = lag
		}
	}
	return bestLag
}

func head(x []float64, n int) []float64 {
	if len(x) > n {
		return x[:n]
	}
	return x
}

// alignByLag drops the leading samples of whichever signal starts late.
func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	switch {
	case lag >= len(ref) || -lag >= len(cand):
		return nil, nil
	case lag >= 0:
		return ref[lag:], cand
	default:
		return ref, cand[-lag:]
	}
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// rmsEnvelope returns the RMS of envFrame-sample frames every envHop samples.
func rmsEnvelope(x []float64) []float64 {
	if len(x) < envFrame {
		return nil
	}
	env := make([]float64, 0, 1+(len(x)-envFrame)/envHop)
	for start := 0; start+envFrame <= len(x); start += envHop {
		env = append(env, timestats.RMS(x[start:start+envFrame]))
	}
	return env
}

// dbDistance is the RMS of the per-element level difference of a and b over
// their common length, with toDB mapping each element to dB.
func dbDistance(a, b []float64, toDB func(float64) float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		d := toDB(a[i]) - toDB(b[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// magnitudes returns the Hann-windowed magnitude spectra of the first
// power-of-two frame (at most maxSpecSize) of a and b.
func magnitudes(a []float64, b []float64) ([]float64, []float64, bool) {
	n := min(len(a), len(b))
	if n < minSpecSize {
		return nil, nil, false
	}
	size := maxSpecSize
	for size > n {
		size >>= 1
	}

	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, nil, false
	}
	hann, err := window.Hann(size)
	if err != nil {
		return nil, nil, false
	}

	frame := make([]float64, size)
	bins := make([]complex128, size/2+1)
	mag := func(x []float64) []float64 {
		for i := range frame {
			frame[i] = x[i] * hann[i]
		}
		if plan.Forward(bins, frame) != nil {
			return nil
		}
		return spectrum.Magnitude(bins)
	}
	magA, magB := mag(a), mag(b)
	if magA == nil || magB == nil {
		return nil, nil, false
	}
	return magA, magB, true
}

// spectralRMSEDB compares the magnitude spectra of a and b bin by bin,
// excluding DC and Nyquist.
func spectralRMSEDB(a []float64, b []float64) float64 {
	magA, magB, ok := magnitudes(a, b)
	if !ok {
		return 0
	}
	return dbDistance(magA[1:len(magA)-1], magB[1:len(magB)-1], linToDB)
}

// bandRMSEDB compares octave band levels of the first two seconds.
func bandRMSEDB(a []float64, b []float64, sampleRate int) float64 {
	n := min(len(a), len(b), 2*sampleRate)
	if n < minSpecSize {
		return 0
	}
	var centers []float64
	for _, f := range octaveCenters {
		if f < 0.45*float64(sampleRate) {
			centers = append(centers, f)
		}
	}
	if len(centers) == 0 {
		return 0
	}
	powers := func(x []float64) []float64 {
		g, err := spectrum.NewMultiGoertzel(centers, float64(sampleRate))
		if err != nil {
			return nil
		}
		g.ProcessBlock(x[:n])
		return g.Powers()
	}
	pa, pb := powers(a), powers(b)
	if pa == nil || pb == nil {
		return 0
	}
	return dbDistance(pa, pb, powToDB)
}

func linToDB(x float64) float64 { return core.LinearToDB(max(x, 1e-12)) }

func powToDB(p float64) float64 { return core.LinearPowerToDB(max(p, 1e-24)) }

// decaySlopeDBPerS fits a line to the envelope in dB from just after its
// peak until it falls 60 dB below the peak. It returns NaN when fewer than
// six frames are available for the fit.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	db := make([]float64, len(env))
	peakIdx := 0
	for i, v := range env {
		db[i] = linToDB(v)
		if db[i] > db[peakIdx] {
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(db)-4 {
		return math.NaN()
	}
	end := start
	for end < len(db) && db[end] >= db[peakIdx]-60.0 {
		end++
	}
	if end-start < 6 {
		return math.NaN()
	}
	return slope(db[start:end], hopSec)
}

// slope is the least-squares slope of y sampled every dx.
func slope(y []float64, dx float64) float64 {
	n := float64(len(y))
	var sx, sy, sxx, sxy float64
	for i, v := range y {
		x := float64(i) * dx
		sx += x
		sy += v
		sxx += x * x
		sxy += x * v
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func clamp01(x float64) float64 { return core.Clamp(x, 0, 1) }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
