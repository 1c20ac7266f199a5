package amp

import (
	"math"
	"strings"
	"testing"
)

// steadyAmplitude filters a one second sine and returns its settled peak
// amplitude estimated from the RMS of the second half.
func steadyAmplitude(process func([]float64), hz float64) float64 {
	x := sine(48000, hz, 1, 48000)
	process(x)
	return rms(x[len(x)/2:]) * math.Sqrt2
}

func TestFilterCascadeLowPass(t *testing.T) {
	c := NewFilterCascade(LowPass, 2)
	c.SetParams(48000, 5000)
	if a := steadyAmplitude(c.Process, 500); a < 0.9 {
		t.Fatalf("500 Hz amplitude %g, want passband", a)
	}
	c.Reset()
	if a := steadyAmplitude(c.Process, 15000); a > 0.2 {
		t.Fatalf("15 kHz amplitude %g, want attenuated", a)
	}
}

func TestFilterCascadeHighPass(t *testing.T) {
	c := NewFilterCascade(HighPass, 2)
	c.SetParams(48000, 200)
	if a := steadyAmplitude(c.Process, 50); a > 0.5 {
		t.Fatalf("50 Hz amplitude %g, want attenuated", a)
	}
	c.Reset()
	if a := steadyAmplitude(c.Process, 2000); a < 0.9 {
		t.Fatalf("2 kHz amplitude %g, want passband", a)
	}
}

func TestDCBlockerRemovesOffset(t *testing.T) {
	f := NewOnePole(HighPass)
	f.SetParams(48000, DCBlockerHz)
	x := make([]float64, 96000)
	for i := range x {
		x[i] = 0.5
	}
	f.Process(x)
	if v := math.Abs(x[len(x)-1]); v > 1e-3 {
		t.Fatalf("residual DC %g", v)
	}
}

func TestOnePoleStateSurvivesUnchangedParams(t *testing.T) {
	a := NewOnePole(LowPass)
	b := NewOnePole(LowPass)
	a.SetParams(48000, 1000)
	b.SetParams(48000, 1000)

	x := sine(512, 440, 0.5, 48000)
	whole := append([]float64(nil), x...)
	a.Process(whole)

	first := append([]float64(nil), x[:256]...)
	second := append([]float64(nil), x[256:]...)
	b.Process(first)
	b.SetParams(48000, 1000)
	b.Process(second)

	if d := maxAbsDiff(whole, append(first, second...)); d > 1e-15 {
		t.Fatalf("split processing differs by %g", d)
	}
}

func TestOnePoleDefaultsToPassthrough(t *testing.T) {
	f := NewOnePole(HighPass)
	x := sine(64, 100, 0.5, 48000)
	y := append([]float64(nil), x...)
	f.Process(y)
	if d := maxAbsDiff(x, y); d != 0 {
		t.Fatalf("unconfigured filter changed the signal by %g", d)
	}
}

func TestGateTriggerHysteresis(t *testing.T) {
	const fs = 48000
	tr := NewGateTrigger()
	tr.SetSampleRate(fs)
	tr.SetParams(DefaultTriggerParams(-30))

	loud := sine(fs/10, 200, 0.5, fs)
	tr.Process(loud)
	if tr.IsAttenuating(12) {
		t.Fatal("attenuating on loud input")
	}

	// The detector needs roughly 70 ms to fall below -30 dB and then holds.
	block := make([]float64, 48)
	attenuatingSince := -1
	for i := 0; i < 500; i++ {
		tr.Process(block)
		ms := i + 1
		if ms <= 50 && tr.IsAttenuating(0) {
			t.Fatalf("gate closed after %d ms, before level and hold time allow", ms)
		}
		if tr.IsAttenuating(12) {
			if attenuatingSince < 0 {
				attenuatingSince = ms
			}
		} else if attenuatingSince >= 0 {
			t.Fatalf("gate chattered open at %d ms after closing at %d ms", ms, attenuatingSince)
		}
	}
	if attenuatingSince < 0 {
		t.Fatal("gate never closed during silence")
	}
	if tr.ReductionDB() != maxGainReductionDB {
		t.Fatalf("reduction = %g, want %g", tr.ReductionDB(), maxGainReductionDB)
	}

	tr.Process(sine(fs/20, 200, 0.5, fs))
	if tr.ReductionDB() != 0 || tr.IsAttenuating(0) {
		t.Fatalf("gate did not reopen, reduction %g", tr.ReductionDB())
	}
}

func TestGateGainAppliesCurve(t *testing.T) {
	tr := NewGateTrigger()
	g := &GateGain{}
	tr.AddListener(g)
	tr.SetSampleRate(48000)
	tr.SetParams(DefaultTriggerParams(-30))

	silence := make([]float64, 48000)
	tr.Process(silence)
	buf := make([]float64, len(silence))
	for i := range buf {
		buf[i] = 1
	}
	g.Process(buf)
	if v := buf[len(buf)-1]; v > 1e-5 {
		t.Fatalf("closed gate passed %g", v)
	}
	if buf[0] != 1 {
		t.Fatalf("open gate scaled the first sample to %g", buf[0])
	}
}

func TestToneStackFlatAtFive(t *testing.T) {
	ts := NewBasicToneStack()
	ts.Reset(48000, 256)
	for _, name := range []string{ToneBass, ToneMiddle, ToneTreble, TonePresence, ToneDepth} {
		ts.SetParam(name, 5)
	}
	x := sine(1024, 440, 0.5, 48000)
	y := append([]float64(nil), x...)
	ts.Process(y)
	if d := maxAbsDiff(x, y); d != 0 {
		t.Fatalf("flat tone stack changed the signal by %g", d)
	}
}

func TestToneStackBands(t *testing.T) {
	ts := NewBasicToneStack()
	ts.Reset(48000, 256)
	ts.SetParam(ToneBass, 10)
	if a := steadyAmplitude(ts.Process, 50); a < 3 {
		t.Fatalf("bass boost at 50 Hz gave amplitude %g", a)
	}

	ts = NewBasicToneStack()
	ts.Reset(48000, 256)
	ts.SetParam(ToneTreble, 0)
	if a := steadyAmplitude(ts.Process, 8000); a > 0.5 {
		t.Fatalf("treble cut at 8 kHz gave amplitude %g", a)
	}

	if v, ok := ts.Param(ToneTreble); !ok || v != 0 {
		t.Fatalf("Param(treble) = %g %v", v, ok)
	}
	if _, ok := ts.Param("volume"); ok {
		t.Fatal("unknown band reported")
	}
}

func TestMeterBallistics(t *testing.T) {
	m := NewMeter()
	m.Reset(48000)
	if m.PeakDB() != MeterFloorDB || m.RMSDB() != MeterFloorDB {
		t.Fatal("fresh meter must read the floor")
	}

	block := sine(480, 1000, 0.5, 48000)
	for i := 0; i < 300; i++ {
		m.Update(block)
	}
	if p := m.PeakDB(); math.Abs(p+6.02) > 0.1 {
		t.Fatalf("peak = %g dB, want -6.02", p)
	}
	if r := m.RMSDB(); math.Abs(r+9.03) > 0.3 {
		t.Fatalf("rms = %g dB, want -9.03", r)
	}

	silence := make([]float64, 480)
	m.Update(silence)
	if p := m.PeakDB(); p >= -6.02 || p < -7 {
		t.Fatalf("peak after one silent block = %g dB", p)
	}
	for i := 0; i < 400; i++ {
		m.Update(silence)
	}
	if m.PeakDB() != MeterFloorDB {
		t.Fatalf("peak after release = %g, want floor", m.PeakDB())
	}
}

func TestParamsValidate(t *testing.T) {
	p := NewDefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	p.UserHPFHz = 10
	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "user_hpf_hz") {
		t.Fatalf("expected user_hpf_hz error, got %v", err)
	}
	p = NewDefaultParams()
	p.OutputMode = OutputMode(7)
	if p.Validate() == nil {
		t.Fatal("expected output mode error")
	}
}

func TestModeNames(t *testing.T) {
	for _, m := range []OutputMode{OutputRaw, OutputNormalized, OutputCalibrated} {
		got, err := ParseOutputMode(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseOutputMode(%q) = %v %v", m.String(), got, err)
		}
	}
	for _, m := range []TunerMonitor{MonitorMute, MonitorBypass, MonitorFull} {
		got, err := ParseTunerMonitor(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseTunerMonitor(%q) = %v %v", m.String(), got, err)
		}
	}
	if _, err := ParseOutputMode("loud"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestEventNames(t *testing.T) {
	ev := EventModelLoaded | EventGateAttenuating
	names := ev.Names()
	if len(names) != 2 || names[0] != "model-loaded" || names[1] != "gate-attenuating" {
		t.Fatalf("names = %v", names)
	}

	var f eventFlags
	f.raise(EventIRLeftLoaded)
	f.raise(EventIRRightCleared)
	if got := f.drain(); got != EventIRLeftLoaded|EventIRRightCleared {
		t.Fatalf("drained %v", got.Names())
	}
	if f.drain() != 0 {
		t.Fatal("second drain must be empty")
	}
}
