// Package tuner estimates the pitch of a guitar signal captured from the
// audio thread and publishes a smoothed note and cents offset for display.
package tuner

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/window"

	"github.com/cwbudde/algo-amp/internal/ring"
)

const (
	bufferSize   = 8192
	analysisSize = 2048
	downsample   = 4

	minHz        = 24.0
	maxHz        = 350.0
	lowPassHz    = 900.0
	lowNoteHz    = 90.0
	historySize  = 3
	octaveFactor = 0.93
	lockSemitone = 0.58

	analysisFloorRMS    = 0.0014
	conditionedFloorRMS = 0.0008
	releaseRMS          = 0.00035
)

// Analyzer is fed from the audio thread with PushInputMono and analyzed from
// one other goroutine with Update. Results can be read from anywhere.
type Analyzer struct {
	samples *ring.SPSC
	hann    []float64
	frame   []float32
	x       []float64
	corr    []float64

	sampleRate atomic.Uint64

	hasPitch atomic.Bool
	midiNote atomic.Int32
	cents    atomic.Uint64
	freq     atomic.Uint64

	decim         int
	holdFrames    int
	smoothedHz    float64
	smoothedCents float64
	history       [historySize]float64
	historyCount  int
	historyIndex  int
	lockedNote    int
	needleHold    int
	lastHz        float64
	prevRMS       float64
	attackIgnore  int
}

// New returns an analyzer for audio at sampleRate.
func New(sampleRate float64) *Analyzer {
	hann, err := window.Hann(analysisSize)
	if err != nil {
		panic(err)
	}
	a := &Analyzer{
		samples: ring.NewSPSC(bufferSize),
		hann:    hann,
		frame:   make([]float32, analysisSize*downsample),
		x:       make([]float64, analysisSize),
		corr:    make([]float64, analysisSize/2+2),
	}
	a.SetSampleRate(sampleRate)
	a.Reset()
	return a
}

// SetSampleRate sets the rate of the pushed audio.
func (a *Analyzer) SetSampleRate(sampleRate float64) {
	a.sampleRate.Store(math.Float64bits(sampleRate))
}

// PushInputMono appends samples. It never blocks or allocates.
func (a *Analyzer) PushInputMono(in []float64) {
	if len(in) == 0 {
		return
	}
	a.samples.Push(in)
}

// Reset clears the captured audio and all tracking state. It must not run
// while the audio thread is pushing.
func (a *Analyzer) Reset() {
	a.samples.Reset()
	a.hasPitch.Store(false)
	a.midiNote.Store(0)
	a.cents.Store(0)
	a.freq.Store(0)
	a.decim = 0
	a.holdFrames = 0
	a.prevRMS = 0
	a.attackIgnore = 0
	a.clearTracking()
}

func (a *Analyzer) clearTracking() {
	a.smoothedHz = 0
	a.smoothedCents = 0
	a.historyCount = 0
	a.historyIndex = 0
	a.lockedNote = -1
	a.needleHold = 0
	a.lastHz = 0
}

// HasPitch reports whether a note is currently displayed.
func (a *Analyzer) HasPitch() bool { return a.hasPitch.Load() }

// MidiNote returns the locked MIDI note number.
func (a *Analyzer) MidiNote() int { return int(a.midiNote.Load()) }

// Cents returns the smoothed deviation from MidiNote in [-50, 50].
func (a *Analyzer) Cents() float64 { return math.Float64frombits(a.cents.Load()) }

// Frequency returns the smoothed frequency estimate in Hz, or 0.
func (a *Analyzer) Frequency() float64 { return math.Float64frombits(a.freq.Load()) }

// Update analyzes the most recent audio. Only every second call does work.
func (a *Analyzer) Update() {
	fs := math.Float64frombits(a.sampleRate.Load())
	if fs <= 0 {
		return
	}
	a.decim = (a.decim + 1) % 2
	if a.decim != 0 {
		return
	}

	valid := false
	rawRMS := 0.0
	if a.samples.Written() > analysisSize*downsample+downsample && a.samples.Latest(a.frame) {
		rawRMS = a.decimate()
		a.detectOnset(rawRMS)

		if a.attackIgnore > 0 {
			a.attackIgnore--
		} else if rawRMS > analysisFloorRMS {
			valid = a.analyze(fs / downsample)
		}
	}
	a.updateHold(valid, rawRMS)
}

func (a *Analyzer) decimate() float64 {
	sum := 0.0
	for i := range a.x {
		s := 0.0
		for d := 0; d < downsample; d++ {
			s += float64(a.frame[i*downsample+d])
		}
		s /= downsample
		a.x[i] = s
		sum += s * s
	}
	return math.Sqrt(sum / analysisSize)
}

func (a *Analyzer) detectOnset(rms float64) {
	onset := math.Max(0.004, a.prevRMS*1.5)
	strong := rms > math.Max(0.008, a.prevRMS*2.2)
	if rms > onset {
		a.attackIgnore = 1
		if strong {
			a.attackIgnore = 2
			if !a.hasPitch.Load() {
				a.lockedNote = -1
			}
			a.historyCount = 0
			a.historyIndex = 0
			a.lastHz = 0
			a.needleHold = max(a.needleHold, 3)
		}
	}
	a.prevRMS = 0.85*a.prevRMS + 0.15*rms
}

// condition removes DC, applies the Hann window and a one-pole low-pass, and
// returns the RMS of the result.
func (a *Analyzer) condition(fs float64) float64 {
	oneMinusAlpha := 1 - math.Exp(-2*math.Pi*lowPassHz/fs)
	mean := 0.0
	for _, v := range a.x {
		mean += v
	}
	mean /= analysisSize

	lp := 0.0
	sum := 0.0
	for i, v := range a.x {
		lp += oneMinusAlpha * ((v-mean)*a.hann[i] - lp)
		a.x[i] = lp
		sum += lp * lp
	}
	return math.Sqrt(sum / analysisSize)
}

func (a *Analyzer) correlation(lag int) float64 {
	var sxy, sxx, syy float64
	for n := 0; n < analysisSize-lag; n++ {
		x, y := a.x[n], a.x[n+lag]
		sxy += x * y
		sxx += x * x
		syy += y * y
	}
	d := math.Sqrt(sxx*syy + 1e-20)
	if d <= 0 {
		return 0
	}
	return sxy / d
}

// analyze runs the lag search on the decimated frame sampled at fs and
// updates the published note. It returns true when a pitch was accepted.
func (a *Analyzer) analyze(fs float64) bool {
	if a.condition(fs) < conditionedFloorRMS {
		return false
	}

	minLag := max(1, int(fs/maxHz))
	maxLag := min(analysisSize/2, max(minLag+1, int(fs/minHz)))
	for lag := minLag - 1; lag <= maxLag+1 && lag < len(a.corr); lag++ {
		if lag >= 1 {
			a.corr[lag] = a.correlation(lag)
		}
	}

	bestLag := minLag
	bestCorr := -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		if a.corr[lag] > bestCorr {
			bestCorr = a.corr[lag]
			bestLag = lag
		}
	}
	// Prefer the doubled period when it is nearly as strong. This biases
	// toward the lower octave and keeps low strings stable.
	if bestLag*2 <= maxLag {
		if c2 := a.corr[bestLag*2]; c2 > bestCorr*octaveFactor {
			bestLag *= 2
			bestCorr = c2
		}
	}

	threshold := 0.68
	if bestLag > int(fs/lowNoteHz) {
		threshold = 0.60
	}
	if bestCorr <= threshold {
		return false
	}

	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		yPrev, y0, yNext := a.corr[bestLag-1], a.corr[bestLag], a.corr[bestLag+1]
		if d := yPrev - 2*y0 + yNext; math.Abs(d) > 1e-12 {
			lag += core.Clamp(0.5*(yPrev-yNext)/d, -0.5, 0.5)
		}
	}
	hz := fs / math.Max(1, lag)
	return a.track(hz)
}

func (a *Analyzer) track(hz float64) bool {
	if a.smoothedHz > 0 && (hz < 0.40*a.smoothedHz || hz > 2.50*a.smoothedHz) {
		return false
	}

	plausible := true
	if a.lastHz > 0 {
		ratio := hz / a.lastHz
		if a.smoothedHz > 0 && a.smoothedHz < lowNoteHz {
			plausible = ratio > 0.35 && ratio < 2.80
		} else {
			plausible = ratio > 0.50 && ratio < 2.00
		}
	}
	a.lastHz = hz
	if !plausible {
		return false
	}

	a.history[a.historyIndex] = hz
	a.historyIndex = (a.historyIndex + 1) % historySize
	if a.historyCount < historySize {
		a.historyCount++
	}
	median := a.median()
	if prev := a.smoothedHz; prev > 0 {
		rel := math.Abs(median-prev) / math.Max(1, prev)
		alpha := 0.18
		if rel > 0.12 {
			alpha = 0.60
		} else if rel > 0.05 {
			alpha = 0.45
		}
		a.smoothedHz = (1-alpha)*prev + alpha*median
	} else {
		a.smoothedHz = median
	}

	midiFloat := 69 + 12*math.Log2(math.Max(1e-6, a.smoothedHz)/440)
	previous := a.lockedNote
	note := previous
	if note < 0 || note > 127 || math.Abs(midiFloat-float64(note)) > lockSemitone {
		note = int(math.Round(midiFloat))
	}
	if note < 0 || note > 127 {
		return false
	}

	if previous >= 0 && note != previous {
		a.needleHold = max(a.needleHold, 3)
		a.smoothedCents = 0
		a.smoothedHz = hz
		a.lastHz = hz
		a.history = [historySize]float64{hz}
		a.historyCount = 1
		a.historyIndex = 1 % historySize
	}
	a.lockedNote = note

	raw := core.Clamp(100*(midiFloat-float64(note)), -50, 50)
	var display float64
	switch {
	case a.needleHold > 0:
		a.needleHold--
		display = a.smoothedCents
	case a.hasPitch.Load():
		alpha := 0.28
		if math.Abs(raw-a.smoothedCents) > 10 {
			alpha = 0.55
		}
		a.smoothedCents = (1-alpha)*a.smoothedCents + alpha*raw
		display = a.smoothedCents
	default:
		a.smoothedCents = raw
		display = raw
	}

	a.midiNote.Store(int32(note))
	a.cents.Store(math.Float64bits(display))
	a.freq.Store(math.Float64bits(a.smoothedHz))
	return true
}

func (a *Analyzer) median() float64 {
	var sorted [historySize]float64
	n := a.historyCount
	copy(sorted[:], a.history[:n])
	sort.Float64s(sorted[:n])
	return sorted[n/2]
}

func (a *Analyzer) updateHold(valid bool, rms float64) {
	low := a.smoothedHz > 0 && a.smoothedHz < lowNoteHz
	if valid {
		a.holdFrames = 10
		if low {
			a.holdFrames = 18
		}
		a.hasPitch.Store(true)
		return
	}

	if a.hasPitch.Load() {
		keep, hold := 0.0016, 5
		if low {
			keep, hold = 0.0009, 8
		}
		if rms > keep {
			a.holdFrames = max(a.holdFrames, hold)
		} else if rms < releaseRMS {
			a.holdFrames = min(a.holdFrames, 2)
		}
	}

	if a.holdFrames > 0 {
		a.holdFrames--
		return
	}
	a.hasPitch.Store(false)
	a.freq.Store(0)
	a.clearTracking()
}
