package amp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadImpulseResponseStatus(t *testing.T) {
	dir := t.TempDir()

	if _, status, err := LoadImpulseResponse(filepath.Join(dir, "missing.wav"), 48000); err == nil || status != LoadOpenFailed {
		t.Fatalf("missing file: %s %v", status, err)
	}

	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not a riff file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, status, err := LoadImpulseResponse(garbage, 48000); err == nil || status != LoadInvalidFormat {
		t.Fatalf("garbage file: %s %v", status, err)
	}

	kernel := make([]float64, 2000)
	kernel[0] = 0.9
	kernel[10] = -0.4
	path := writeTempIRWav(t, kernel, 96000)
	ir, status, err := LoadImpulseResponse(path, 48000)
	if err != nil || status != LoadOK {
		t.Fatalf("valid file: %s %v", status, err)
	}
	if ir.SampleRate() != 48000 || ir.RawSampleRate() != 96000 {
		t.Fatalf("rates = %g/%g", ir.SampleRate(), ir.RawSampleRate())
	}
	if len(ir.RawData()) != 2000 || len(ir.Data()) != 1000 {
		t.Fatalf("lengths raw=%d kernel=%d", len(ir.RawData()), len(ir.Data()))
	}
}

func TestNewImpulseResponseStatus(t *testing.T) {
	if _, status, err := NewImpulseResponse(nil, 48000, 48000); err == nil || status != LoadEmpty {
		t.Fatalf("empty kernel: %s %v", status, err)
	}
	if _, status, err := NewImpulseResponse([]float64{1}, 0, 48000); err == nil || status != LoadInvalidRate {
		t.Fatalf("zero rate: %s %v", status, err)
	}
}

func TestImpulseResponseTruncatesLongKernels(t *testing.T) {
	ir, status, err := NewImpulseResponse(make([]float64, 3*MaxIRSamples), 48000, 48000)
	if err != nil {
		t.Fatalf("%s %v", status, err)
	}
	if len(ir.Data()) != MaxIRSamples {
		t.Fatalf("kernel length = %d, want %d", len(ir.Data()), MaxIRSamples)
	}
}

func TestImpulseResponseConvolvesWithLatency(t *testing.T) {
	kernel := []float64{1, 0.5, 0.25}
	ir, _, err := NewImpulseResponse(kernel, 48000, 48000)
	if err != nil {
		t.Fatal(err)
	}
	lat := ir.Latency()
	in := make([]float64, 4*lat)
	in[0] = 1
	out := make([]float64, len(in))
	ir.Process(in, out)
	for i, k := range kernel {
		if d := out[lat+i] - k; d > 1e-9 || d < -1e-9 {
			t.Fatalf("tap %d = %g, want %g", i, out[lat+i], k)
		}
	}
	for i := 0; i < lat; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d before latency = %g", i, out[i])
		}
	}

	ir.Reset()
	clear(in)
	ir.Process(in, out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d after reset = %g", i, v)
		}
	}
}
