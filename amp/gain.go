package amp

import "github.com/cwbudde/algo-dsp/dsp/core"

// NormalizedLoudnessDB is the loudness target of OutputNormalized.
const NormalizedLoudnessDB = -18.0

// MasterGainDB maps a 0..10 knob to dB: -40..0 dB over 0..5 and 0..+12 dB
// over 5..10.
func MasterGainDB(knob float64) float64 {
	knob = core.Clamp(knob, 0, 10)
	if knob <= 5 {
		return -40 + knob/5*40
	}
	return (knob - 5) / 5 * 12
}

// levelSource reports level metadata of the live model.
type levelSource interface {
	InputLevel() (float64, bool)
	OutputLevel() (float64, bool)
	Loudness() (float64, bool)
}

// InputGainDB returns the input gain including calibration against the
// model's expected input level.
func InputGainDB(p *Params, m levelSource) float64 {
	gain := p.InputLevelDB
	if p.CalibrateInput && m != nil {
		if level, ok := m.InputLevel(); ok {
			gain += p.InputCalibrationDBu - level
		}
	}
	return gain
}

// OutputGainDB returns the output gain for the selected OutputMode.
func OutputGainDB(p *Params, m levelSource) float64 {
	gain := p.OutputLevelDB
	if m == nil {
		return gain
	}
	switch p.OutputMode {
	case OutputNormalized:
		if loudness, ok := m.Loudness(); ok {
			gain += NormalizedLoudnessDB - loudness
		}
	case OutputCalibrated:
		if level, ok := m.OutputLevel(); ok {
			gain += level - p.InputCalibrationDBu
		}
	}
	return gain
}
