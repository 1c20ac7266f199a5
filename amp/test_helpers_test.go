package amp

import (
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/internal/audiofile"
)

// identityModel copies its input and reports configurable metadata.
type identityModel struct {
	rate        float64
	gain        float64
	latency     int
	inputLevel  *float64
	outputLevel *float64
	loudness    *float64

	resets   int
	lastRate float64
	maxBlock int
}

func newIdentityModel(rate float64) *identityModel {
	return &identityModel{rate: rate, gain: 1}
}

func (m *identityModel) Process(in, out []float64) {
	for i, v := range in {
		out[i] = v * m.gain
	}
}

func (m *identityModel) Reset(sampleRate float64, maxBlockSize int) {
	m.resets++
	m.lastRate = sampleRate
	m.maxBlock = maxBlockSize
}

func (m *identityModel) ResetAndPrewarm(sampleRate float64, maxBlockSize int) {
	m.Reset(sampleRate, maxBlockSize)
	m.Prewarm()
}

func (m *identityModel) Prewarm() {}

func (m *identityModel) Latency() int { return m.latency }

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func (m *identityModel) InputLevel() (float64, bool)  { return optional(m.inputLevel) }
func (m *identityModel) OutputLevel() (float64, bool) { return optional(m.outputLevel) }
func (m *identityModel) Loudness() (float64, bool)    { return optional(m.loudness) }
func (m *identityModel) ExpectedSampleRate() float64  { return m.rate }

func ptr(v float64) *float64 { return &v }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sine(n int, hz, amp, sampleRate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*hz*float64(i)/sampleRate)
	}
	return out
}

func maxAbsDiff(a, b []float64) float64 {
	n := min(len(a), len(b))
	worst := 0.0
	for i := 0; i < n; i++ {
		worst = math.Max(worst, math.Abs(a[i]-b[i]))
	}
	return worst
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func writeTempIRWav(t *testing.T, data []float64, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ir.wav")
	if err := audiofile.WriteWAV(path, [][]float64{data}, sampleRate); err != nil {
		t.Fatalf("write IR wav: %v", err)
	}
	return path
}

// linearParams turns off the gate so the chain is linear in its input.
func linearParams() *Params {
	p := NewDefaultParams()
	p.GateActive = false
	p.OutputMode = OutputRaw
	return p
}

// render runs x through e in blocks and returns the first output channel.
func render(e *Engine, x []float64, block, outChannels int) []float64 {
	out := make([]float64, len(x))
	outputs := make([][]float64, outChannels)
	for c := range outputs {
		outputs[c] = make([]float64, block)
	}
	for start := 0; start < len(x); start += block {
		n := min(block, len(x)-start)
		e.ProcessBlock([][]float64{x[start : start+n]}, outputs, n)
		copy(out[start:start+n], outputs[0][:n])
	}
	return out
}
