package amp

import "fmt"

// OutputMode selects how the output gain accounts for the model's level
// metadata.
type OutputMode int

const (
	OutputRaw OutputMode = iota
	OutputNormalized
	OutputCalibrated
)

func (m OutputMode) String() string {
	switch m {
	case OutputRaw:
		return "raw"
	case OutputNormalized:
		return "normalized"
	case OutputCalibrated:
		return "calibrated"
	default:
		return fmt.Sprintf("output-mode(%d)", int(m))
	}
}

// ParseOutputMode accepts the names returned by String.
func ParseOutputMode(s string) (OutputMode, error) {
	for _, m := range []OutputMode{OutputRaw, OutputNormalized, OutputCalibrated} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown output mode %q", s)
}

// TunerMonitor selects what the output carries while the tuner is active.
type TunerMonitor int

const (
	MonitorMute TunerMonitor = iota
	MonitorBypass
	MonitorFull
)

func (m TunerMonitor) String() string {
	switch m {
	case MonitorMute:
		return "mute"
	case MonitorBypass:
		return "bypass"
	case MonitorFull:
		return "full"
	default:
		return fmt.Sprintf("monitor(%d)", int(m))
	}
}

// ParseTunerMonitor accepts the names returned by String.
func ParseTunerMonitor(s string) (TunerMonitor, error) {
	for _, m := range []TunerMonitor{MonitorMute, MonitorBypass, MonitorFull} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown tuner monitor %q", s)
}

// Params holds every user-facing control of the signal chain.
type Params struct {
	InputLevelDB   float64
	PreModelGainDB float64
	OutputLevelDB  float64

	Bass     float64
	Middle   float64
	Treble   float64
	Presence float64
	Depth    float64
	Master   float64

	GateThresholdDB float64
	GateActive      bool
	ToneStackActive bool
	ModelActive     bool
	IRActive        bool

	IRBlend   float64 // percent, 0 = left only
	UserHPFHz float64
	UserLPFHz float64

	OutputMode          OutputMode
	CalibrateInput      bool
	InputCalibrationDBu float64

	TunerActive  bool
	TunerMonitor TunerMonitor
}

// NewDefaultParams returns the power-on state.
func NewDefaultParams() *Params {
	return &Params{
		Bass:                5,
		Middle:              5,
		Treble:              5,
		Presence:            5,
		Depth:               5,
		Master:              5,
		GateThresholdDB:     -80,
		GateActive:          true,
		ToneStackActive:     true,
		ModelActive:         false,
		IRActive:            true,
		IRBlend:             50,
		UserHPFHz:           20,
		UserLPFHz:           22000,
		OutputMode:          OutputNormalized,
		InputCalibrationDBu: 12,
		TunerMonitor:        MonitorBypass,
	}
}

// Clone returns a copy of p.
func (p *Params) Clone() *Params {
	c := *p
	return &c
}

type paramRange struct {
	name   string
	value  float64
	lo, hi float64
}

// Validate checks every continuous control against its range.
func (p *Params) Validate() error {
	ranges := []paramRange{
		{"input_level_db", p.InputLevelDB, -20, 20},
		{"pre_model_gain_db", p.PreModelGainDB, -40, 20},
		{"output_level_db", p.OutputLevelDB, -40, 40},
		{"bass", p.Bass, 0, 10},
		{"middle", p.Middle, 0, 10},
		{"treble", p.Treble, 0, 10},
		{"presence", p.Presence, 0, 10},
		{"depth", p.Depth, 0, 10},
		{"master", p.Master, 0, 10},
		{"gate_threshold_db", p.GateThresholdDB, -100, 0},
		{"ir_blend", p.IRBlend, 0, 100},
		{"user_hpf_hz", p.UserHPFHz, 20, 500},
		{"user_lpf_hz", p.UserLPFHz, 5000, 22000},
		{"input_calibration_dbu", p.InputCalibrationDBu, -60, 60},
	}
	for _, r := range ranges {
		if r.value < r.lo || r.value > r.hi {
			return fmt.Errorf("%s must be in [%g, %g], got %g", r.name, r.lo, r.hi, r.value)
		}
	}
	if p.OutputMode < OutputRaw || p.OutputMode > OutputCalibrated {
		return fmt.Errorf("invalid output mode %d", p.OutputMode)
	}
	if p.TunerMonitor < MonitorMute || p.TunerMonitor > MonitorFull {
		return fmt.Errorf("invalid tuner monitor %d", p.TunerMonitor)
	}
	return nil
}
