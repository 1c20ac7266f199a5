package amp

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// MeterFloorDB is the lowest level a Meter reports.
const MeterFloorDB = -90.0

const meterReleaseS = 0.3

// Meter tracks peak and RMS levels of a block stream. Update runs on the
// audio thread; the getters may be called from any goroutine.
type Meter struct {
	sampleRate float64

	peak float64
	ms   float64

	peakDB atomic.Uint64
	rmsDB  atomic.Uint64
}

// NewMeter returns a meter reading MeterFloorDB.
func NewMeter() *Meter {
	m := &Meter{}
	m.Reset(48000)
	return m
}

// Reset clears the ballistics for sampleRate.
func (m *Meter) Reset(sampleRate float64) {
	m.sampleRate = sampleRate
	m.peak = 0
	m.ms = 0
	m.peakDB.Store(math.Float64bits(MeterFloorDB))
	m.rmsDB.Store(math.Float64bits(MeterFloorDB))
}

// Update folds one block into the meter.
func (m *Meter) Update(block []float64) {
	if len(block) == 0 || m.sampleRate <= 0 {
		return
	}
	decay := float64(approx.FastExp(float32(-float64(len(block)) / (meterReleaseS * m.sampleRate))))

	blockPeak := 0.0
	sum := 0.0
	for _, v := range block {
		a := math.Abs(v)
		if a > blockPeak {
			blockPeak = a
		}
		sum += v * v
	}
	blockMS := sum / float64(len(block))

	m.peak = core.FlushDenormals(math.Max(blockPeak, m.peak*decay))
	m.ms = core.FlushDenormals(decay*m.ms + (1-decay)*blockMS)

	m.peakDB.Store(math.Float64bits(levelDB(m.peak)))
	m.rmsDB.Store(math.Float64bits(levelDB(math.Sqrt(m.ms))))
}

// PeakDB returns the held peak level.
func (m *Meter) PeakDB() float64 { return math.Float64frombits(m.peakDB.Load()) }

// RMSDB returns the averaged RMS level.
func (m *Meter) RMSDB() float64 { return math.Float64frombits(m.rmsDB.Load()) }

func levelDB(lin float64) float64 {
	if lin <= 0 {
		return MeterFloorDB
	}
	return math.Max(core.LinearToDB(lin), MeterFloorDB)
}
