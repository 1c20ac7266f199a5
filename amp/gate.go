package amp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	maxGainReductionDB = -120.0
	maxLevelPower      = 1e8
	minLevelPower      = 1e-20
)

// TriggerParams configures the gate detector. Times are in seconds.
type TriggerParams struct {
	Time        float64
	ThresholdDB float64
	Ratio       float64
	OpenTime    float64
	HoldTime    float64
	CloseTime   float64
}

// DefaultTriggerParams returns the gate timing used by the engine with the
// given threshold. The small ratio gives a soft quadratic law.
func DefaultTriggerParams(thresholdDB float64) TriggerParams {
	return TriggerParams{
		Time:        0.01,
		ThresholdDB: thresholdDB,
		Ratio:       0.1,
		OpenTime:    0.005,
		HoldTime:    0.01,
		CloseTime:   0.05,
	}
}

type gateState int

const (
	gateOpen gateState = iota
	gateClosing
	gateClosed
	gateOpening
)

// GateTrigger follows the input power and produces a per-sample gain
// reduction curve. It does not modify the audio it analyzes.
type GateTrigger struct {
	params     TriggerParams
	sampleRate float64

	level     float64
	reduction float64
	held      float64
	state     gateState

	curve     []float64
	listeners []*GateGain
}

// NewGateTrigger returns an open gate.
func NewGateTrigger() *GateTrigger {
	return &GateTrigger{params: DefaultTriggerParams(-80)}
}

func (t *GateTrigger) SetParams(p TriggerParams) { t.params = p }

func (t *GateTrigger) SetSampleRate(sampleRate float64) { t.sampleRate = sampleRate }

// AddListener registers a gain stage that receives the reduction curve after
// every Process call.
func (t *GateTrigger) AddListener(g *GateGain) {
	t.listeners = append(t.listeners, g)
}

// Process analyzes buf and publishes the reduction curve to listeners.
func (t *GateTrigger) Process(buf []float64) {
	if cap(t.curve) < len(buf) {
		t.curve = make([]float64, len(buf))
	}
	t.curve = t.curve[:len(buf)]
	if t.sampleRate <= 0 {
		clear(t.curve)
		t.publish()
		return
	}

	dt := 1.0 / t.sampleRate
	alpha := math.Pow(0.5, dt/t.params.Time)
	beta := 1.0 - alpha
	dOpen := -maxGainReductionDB / t.params.OpenTime * dt
	dClose := -maxGainReductionDB / t.params.CloseTime * dt

	for i, x := range buf {
		t.level = math.Min(alpha*t.level+beta*x*x, maxLevelPower)
		levelDB := 10.0 * math.Log10(math.Max(t.level, minLevelPower))

		if t.state == gateOpen {
			t.reduction = 0
			if levelDB < t.params.ThresholdDB {
				t.held += dt
				if t.held >= t.params.HoldTime {
					t.state = gateClosing
				}
			} else {
				t.held = 0
			}
		} else {
			target := t.targetReduction(levelDB)
			switch {
			case target > t.reduction:
				t.reduction = math.Min(target, t.reduction+dOpen)
				t.state = gateOpening
			case target < t.reduction:
				t.reduction = math.Max(target, t.reduction-dClose)
				t.state = gateClosing
			default:
				t.state = gateClosed
			}
			if t.reduction >= 0 {
				t.reduction = 0
				t.state = gateOpen
				t.held = 0
			}
		}
		t.curve[i] = t.reduction
	}
	t.publish()
}

func (t *GateTrigger) publish() {
	for _, g := range t.listeners {
		g.SetReductionDB(t.curve)
	}
}

func (t *GateTrigger) targetReduction(levelDB float64) float64 {
	if levelDB >= t.params.ThresholdDB {
		return 0
	}
	d := levelDB - t.params.ThresholdDB
	return math.Max(-t.params.Ratio*d*d, maxGainReductionDB)
}

// IsAttenuating reports whether the current reduction exceeds thresholdDB.
func (t *GateTrigger) IsAttenuating(thresholdDB float64) bool {
	return t.reduction < -thresholdDB
}

// ReductionDB returns the current gain reduction in dB (<= 0).
func (t *GateTrigger) ReductionDB() float64 { return t.reduction }

// Reset opens the gate and clears the detector.
func (t *GateTrigger) Reset() {
	t.level = 0
	t.reduction = 0
	t.held = 0
	t.state = gateOpen
}

// GateGain applies a reduction curve computed by a GateTrigger.
type GateGain struct {
	curve []float64
}

// SetReductionDB stores a view of the curve. The slice is not copied.
func (g *GateGain) SetReductionDB(curve []float64) { g.curve = curve }

// Process scales buf by the stored curve. Samples past the end of the curve
// are left unchanged.
func (g *GateGain) Process(buf []float64) {
	n := min(len(buf), len(g.curve))
	for i := 0; i < n; i++ {
		if db := g.curve[i]; db != 0 {
			buf[i] *= core.DBToLinear(db)
		}
	}
}
