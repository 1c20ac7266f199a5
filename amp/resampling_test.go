package amp

import (
	"math"
	"testing"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
)

func TestResamplingModelEqualRatesIsDirect(t *testing.T) {
	m := newIdentityModel(48000)
	m.gain = 0.5
	rm := NewResamplingModel(m)
	if err := rm.Reset(48000, 128); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rm.NeedsResampling() {
		t.Fatal("equal rates must not resample")
	}
	if rm.Latency() != 0 {
		t.Fatalf("latency = %d, want 0", rm.Latency())
	}
	if m.lastRate != 48000 || m.maxBlock != 128 {
		t.Fatalf("model reset with %g/%d", m.lastRate, m.maxBlock)
	}

	in := sine(128, 1000, 0.5, 48000)
	out := make([]float64, 128)
	rm.Process(in, out)
	for i := range in {
		if out[i] != in[i]*0.5 {
			t.Fatalf("sample %d = %g, want %g", i, out[i], in[i]*0.5)
		}
	}
}

func TestResamplingModelDefaultsToNativeRate(t *testing.T) {
	rm := NewResamplingModel(newIdentityModel(-1))
	if rm.NativeRate() != DefaultNativeRate {
		t.Fatalf("native rate = %g, want %g", rm.NativeRate(), DefaultNativeRate)
	}
}

func TestResamplingModelLatencyMatchesPrototypes(t *testing.T) {
	m := newIdentityModel(48000)
	rm := NewResamplingModel(m)
	if err := rm.Reset(44100, 256); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !rm.NeedsResampling() {
		t.Fatal("expected resampling for 44.1k host")
	}

	up, err := dspresample.NewForRates(44100, 48000, dspresample.WithQuality(dspresample.QualityBalanced))
	if err != nil {
		t.Fatal(err)
	}
	down, err := dspresample.NewForRates(48000, 44100, dspresample.WithQuality(dspresample.QualityBalanced))
	if err != nil {
		t.Fatal(err)
	}
	upL, _ := up.Ratio()
	_, downM := down.Ratio()
	delay := float64(len(up.Prototype())-1)/(2*float64(upL)) + float64(len(down.Prototype())-1)/(2*float64(downM))
	want := resamplerPriming + int(math.Round(delay))
	if rm.Latency() != want {
		t.Fatalf("latency = %d, want %d", rm.Latency(), want)
	}
	if m.lastRate != 48000 {
		t.Fatalf("model reset at %g, want native rate", m.lastRate)
	}
	if want := nativeBlockSize(256, 44100, 48000) + 2; m.maxBlock != want {
		t.Fatalf("model max block = %d, want %d", m.maxBlock, want)
	}
}

func TestResamplingModelPreservesLevel(t *testing.T) {
	rm := NewResamplingModel(newIdentityModel(48000))
	if err := rm.Reset(44100, 256); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	x := sine(44100, 500, 0.5, 44100)
	y := make([]float64, len(x))
	for start := 0; start < len(x); start += 256 {
		end := min(start+256, len(x))
		rm.Process(x[start:end], y[start:end])
	}
	tail := y[len(y)/2:]
	got := rms(tail)
	want := 0.5 / math.Sqrt2
	if math.Abs(got-want)/want > 0.05 {
		t.Fatalf("rms = %g, want about %g", got, want)
	}
	for _, v := range y {
		if math.IsNaN(v) {
			t.Fatal("NaN in resampled output")
		}
	}
}

func TestResamplingModelOversizedBlockPassesThrough(t *testing.T) {
	m := newIdentityModel(48000)
	m.gain = 3
	rm := NewResamplingModel(m)
	if err := rm.Reset(44100, 64); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	in := sine(65, 300, 0.2, 44100)
	out := make([]float64, 65)
	rm.Process(in, out)
	if d := maxAbsDiff(in, out); d != 0 {
		t.Fatalf("oversized block altered by %g", d)
	}
}

func TestResamplingModelForwardsLevels(t *testing.T) {
	m := newIdentityModel(48000)
	m.loudness = ptr(-20)
	rm := NewResamplingModel(m)
	if v, ok := rm.Loudness(); !ok || v != -20 {
		t.Fatalf("loudness = %g %v", v, ok)
	}
	if _, ok := rm.InputLevel(); ok {
		t.Fatal("input level should be unknown")
	}
	if rm.Model() != Model(m) {
		t.Fatal("Model must return the wrapped model")
	}
}
