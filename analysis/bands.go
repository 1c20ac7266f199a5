package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

// Band is a frequency range of a band report.
type Band struct {
	Name string
	LoHz float64
	HiHz float64
}

// Window is a time range of a band report, relative to the aligned start.
type Window struct {
	Name    string
	StartMs float64
	EndMs   float64
}

// GuitarBands split the range of a guitar cabinet.
var GuitarBands = []Band{
	{"low (40-120Hz)", 40, 120},
	{"body (120-400Hz)", 120, 400},
	{"low-mid (400-1kHz)", 400, 1000},
	{"mid (1-2.5kHz)", 1000, 2500},
	{"presence (2.5-5kHz)", 2500, 5000},
	{"fizz (5-10kHz)", 5000, 10000},
	{"air (10-20kHz)", 10000, 20000},
}

// DefaultWindows follow a picked note from attack to release.
var DefaultWindows = []Window{
	{"attack (0-20ms)", 0, 20},
	{"early (20-100ms)", 20, 100},
	{"body (100-500ms)", 100, 500},
	{"sustain (0.5-2s)", 500, 2000},
	{"late (2-6s)", 2000, 6000},
}

const (
	stftSize = 4096
	stftHop  = 2048
)

// BandDiff compares one band of one window.
type BandDiff struct {
	Band   Band
	RMSEDB float64 // per-bin level difference
	RefDB  float64
	CandDB float64
	DiffDB float64 // CandDB - RefDB
}

// WindowReport holds the band comparison of one time window.
type WindowReport struct {
	Window Window
	Frames int
	Bands  []BandDiff
}

// Align trims ref and cand so their best cross-correlation lag is zero.
func Align(ref, cand []float64, sampleRate int) ([]float64, []float64, int) {
	maxLag := max(min(sampleRate/2, len(ref)-1, len(cand)-1), 1)
	lag := estimateLag(head(ref, 4*sampleRate), head(cand, 4*sampleRate), maxLag)
	a, b := alignByLag(ref, cand, lag)
	return a, b, lag
}

// BandReport averages STFT magnitudes of ref and cand per window and
// compares them per band. Windows starting past the shorter signal are
// skipped; windows shorter than one frame use a single zero-padded frame.
func BandReport(ref, cand []float64, sampleRate int, windows []Window, bands []Band) ([]WindowReport, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	plan, err := algofft.NewPlanReal64(stftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	hann, err := window.Hann(stftSize)
	if err != nil {
		return nil, err
	}

	n := min(len(ref), len(cand))
	nBins := stftSize / 2
	binHz := float64(sampleRate) / stftSize

	specRef := make([]complex128, nBins+1)
	specCand := make([]complex128, nBins+1)
	bufRef := make([]float64, stftSize)
	bufCand := make([]float64, stftSize)

	var reports []WindowReport
	for _, tw := range windows {
		start := int(tw.StartMs / 1000.0 * float64(sampleRate))
		end := min(int(tw.EndMs/1000.0*float64(sampleRate)), n)
		if start >= end {
			continue
		}

		avgRef := make([]float64, nBins)
		avgCand := make([]float64, nBins)
		frames := 0
		accumulate := func() error {
			if err := plan.Forward(specRef, bufRef); err != nil {
				return err
			}
			if err := plan.Forward(specCand, bufCand); err != nil {
				return err
			}
			for k := 1; k < nBins; k++ {
				avgRef[k] += cmplx.Abs(specRef[k])
				avgCand[k] += cmplx.Abs(specCand[k])
			}
			frames++
			return nil
		}

		for pos := start; pos+stftSize <= end; pos += stftHop {
			for i := 0; i < stftSize; i++ {
				bufRef[i] = ref[pos+i] * hann[i]
				bufCand[i] = cand[pos+i] * hann[i]
			}
			if err := accumulate(); err != nil {
				return nil, err
			}
		}
		if frames == 0 {
			clear(bufRef)
			clear(bufCand)
			for i := 0; i < end-start; i++ {
				bufRef[i] = ref[start+i] * hann[i]
				bufCand[i] = cand[start+i] * hann[i]
			}
			if err := accumulate(); err != nil {
				return nil, err
			}
		}

		scale := 1.0 / float64(frames)
		for k := range avgRef {
			avgRef[k] *= scale
			avgCand[k] *= scale
		}

		rep := WindowReport{Window: tw, Frames: frames}
		for _, b := range bands {
			loK := max(int(b.LoHz/binHz), 1)
			hiK := min(int(b.HiHz/binHz), nBins-1)
			if loK > hiK {
				continue
			}
			var sumSq, refPow, candPow float64
			cnt := 0
			for k := loK; k <= hiK; k++ {
				d := linToDB(avgRef[k]) - linToDB(avgCand[k])
				sumSq += d * d
				refPow += avgRef[k] * avgRef[k]
				candPow += avgCand[k] * avgCand[k]
				cnt++
			}
			refDB := powToDB(refPow / float64(cnt))
			candDB := powToDB(candPow / float64(cnt))
			rep.Bands = append(rep.Bands, BandDiff{
				Band:   b,
				RMSEDB: math.Sqrt(sumSq / float64(cnt)),
				RefDB:  refDB,
				CandDB: candDB,
				DiffDB: candDB - refDB,
			})
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
