package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 1.5, 0.7)
	m := Compare(x, x, sr)
	if m.LagSamples != 0 {
		t.Fatalf("lag = %d, want 0", m.LagSamples)
	}
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	if m.Score < 0.2 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
	same := Compare(a, a, sr)
	if m.Score <= same.Score {
		t.Fatalf("different score %f not above identical score %f", m.Score, same.Score)
	}
}

func TestCompareIgnoresLevel(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 220, 1.0, 0.5)
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 0.25 * a[i]
	}
	if m := Compare(a, b, sr); m.Score > 0.05 {
		t.Fatalf("scaled copy scored %f", m.Score)
	}
}

func TestCompareDegenerateInputs(t *testing.T) {
	if m := Compare(nil, []float64{1}, 48000); m.Score != 1 || m.Similarity != 0 {
		t.Fatalf("empty reference: %+v", m)
	}
	if m := Compare(make([]float64, 1000), make([]float64, 1000), 48000); m.Score != 1 {
		t.Fatalf("silence: %+v", m)
	}
	if m := Compare([]float64{1, 2, 3}, []float64{1, 2, 3}, 48000); m.Score != 1 || m.AlignedFrames != 0 {
		t.Fatalf("too short: %+v", m)
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	if got := estimateLag(ref, cand, maxLag); got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	cand := make([]float64, n)
	copy(cand[-shift:], ref)

	if got := estimateLag(ref, cand, maxLag); got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagMatchesExhaustive(t *testing.T) {
	const (
		n      = 16000
		shift  = 443
		maxLag = 1000
	)
	ref := randomSignal(n, 23)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	want := estimateLagExhaustive(ref, cand, maxLag)
	if got != want {
		t.Fatalf("estimateLag() = %d, exhaustive = %d", got, want)
	}
}

func TestLevelMetricsMeasureGainOffset(t *testing.T) {
	a := randomSignal(4096, 5)
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 2 * a[i]
	}
	want := 20 * math.Log10(2)
	if got := spectralRMSEDB(a, b); math.Abs(got-want) > 1e-6 {
		t.Fatalf("spectralRMSEDB = %g, want %g", got, want)
	}
	if got := bandRMSEDB(a, b, 48000); math.Abs(got-want) > 1e-6 {
		t.Fatalf("bandRMSEDB = %g, want %g", got, want)
	}
	if got := bandRMSEDB(a, a, 48000); got != 0 {
		t.Fatalf("bandRMSEDB of identical signals = %g", got)
	}
}

func estimateLagExhaustive(ref []float64, cand []float64, maxLag int) int {
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var ai, bi int
		if lag >= 0 {
			ai = lag
		} else {
			bi = -lag
		}
		n := min(len(ref)-ai, len(cand)-bi)
		var sum float64
		for i := 0; i < n; i++ {
			sum += ref[ai+i] * cand[bi+i]
		}
		if sum > best {
			best = sum
			bestLag = lag
		}
	}
	return bestLag
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func TestCompareReportsCentroids(t *testing.T) {
	sr := 48000
	low := makeDecaySine(sr, 220, 1.0, 0.5)
	high := makeDecaySine(sr, 1760, 1.0, 0.5)
	m := Compare(low, high, sr)
	if m.RefCentroidHz <= 0 || m.CandCentroidHz <= m.RefCentroidHz {
		t.Fatalf("centroids ref=%g cand=%g", m.RefCentroidHz, m.CandCentroidHz)
	}
}
