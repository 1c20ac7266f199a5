package tuner

import (
	"math"
	"testing"
)

const testRate = 48000.0

type toneFeeder struct {
	a     *Analyzer
	n     int
	block []float64
}

func newToneFeeder(a *Analyzer) *toneFeeder {
	return &toneFeeder{a: a, block: make([]float64, 1024)}
}

func (f *toneFeeder) tone(hz, amp float64, blocks int) {
	for b := 0; b < blocks; b++ {
		for i := range f.block {
			f.block[i] = amp * math.Sin(2*math.Pi*hz*float64(f.n+i)/testRate)
		}
		f.n += len(f.block)
		f.a.PushInputMono(f.block)
		f.a.Update()
	}
}

func (f *toneFeeder) silence(blocks int, onUpdate func(int)) {
	for b := 0; b < blocks; b++ {
		for i := range f.block {
			f.block[i] = 0
		}
		f.n += len(f.block)
		f.a.PushInputMono(f.block)
		f.a.Update()
		if onUpdate != nil {
			onUpdate(b)
		}
	}
}

func TestAnalyzerLocksLowE(t *testing.T) {
	a := New(testRate)
	newToneFeeder(a).tone(82.41, 0.3, 26)

	if !a.HasPitch() {
		t.Fatal("expected pitch after a steady low E")
	}
	if got := a.MidiNote(); got != 40 {
		t.Fatalf("midi note = %d, want 40", got)
	}
	if c := a.Cents(); math.Abs(c) > 5 {
		t.Fatalf("cents = %.2f, want within 5 of zero", c)
	}
	if f := a.Frequency(); math.Abs(f-82.41) > 1.5 {
		t.Fatalf("frequency = %.2f, want about 82.41", f)
	}
	if name := a.NoteName(); name != "E2" {
		t.Fatalf("note name = %q, want E2", name)
	}
}

func TestAnalyzerPrefersLowerOctave(t *testing.T) {
	// 440 Hz lies above the lag search range, so the strongest candidate is a
	// subharmonic and the doubled period wins.
	a := New(testRate)
	newToneFeeder(a).tone(440, 0.3, 26)

	if !a.HasPitch() {
		t.Fatal("expected pitch for a steady A4")
	}
	if got := a.MidiNote(); got != 45 {
		t.Fatalf("midi note = %d, want 45", got)
	}
}

func TestAnalyzerHoldsThenReleasesOnSilence(t *testing.T) {
	a := New(testRate)
	f := newToneFeeder(a)
	f.tone(82.41, 0.3, 26)
	if !a.HasPitch() {
		t.Fatal("expected pitch before silence")
	}

	firstRelease := -1
	f.silence(30, func(i int) {
		has := a.HasPitch()
		if i < 5 && !has {
			t.Fatalf("pitch dropped after %d silent blocks, want hold", i+1)
		}
		if !has && firstRelease < 0 {
			firstRelease = i
		}
		if has && firstRelease >= 0 {
			t.Fatalf("pitch returned at block %d after release at %d", i, firstRelease)
		}
	})
	if firstRelease < 0 || firstRelease > 20 {
		t.Fatalf("pitch released at block %d, want within 20 blocks", firstRelease)
	}
	if a.Frequency() != 0 {
		t.Fatalf("frequency = %g after release, want 0", a.Frequency())
	}
	if a.NoteName() != "-" {
		t.Fatalf("note name = %q after release", a.NoteName())
	}
}

func TestAnalyzerIgnoresQuietInput(t *testing.T) {
	a := New(testRate)
	newToneFeeder(a).tone(82.41, 0.0005, 30)
	if a.HasPitch() {
		t.Fatal("expected no pitch below the analysis floor")
	}
}

func TestAnalyzerNeedsHistory(t *testing.T) {
	a := New(testRate)
	f := newToneFeeder(a)
	f.tone(110, 0.3, 8)
	if a.HasPitch() {
		t.Fatal("expected no pitch before the ring holds a full frame")
	}
}

func TestAnalyzerResetClearsState(t *testing.T) {
	a := New(testRate)
	newToneFeeder(a).tone(82.41, 0.3, 26)
	a.Reset()
	if a.HasPitch() || a.MidiNote() != 0 || a.Cents() != 0 || a.Frequency() != 0 {
		t.Fatalf("reset left state: has=%v midi=%d cents=%g freq=%g",
			a.HasPitch(), a.MidiNote(), a.Cents(), a.Frequency())
	}
	// One more block is not enough history after a reset.
	newToneFeeder(a).tone(82.41, 0.3, 2)
	if a.HasPitch() {
		t.Fatal("expected no pitch right after reset")
	}
}

func TestNoteName(t *testing.T) {
	cases := map[int]string{69: "A4", 40: "E2", 60: "C4", 61: "C#4", 0: "C-1", -1: "-", 128: "-"}
	for midi, want := range cases {
		if got := NoteName(midi); got != want {
			t.Fatalf("NoteName(%d) = %q, want %q", midi, got, want)
		}
	}
}
