// Package preset loads amp parameter presets and persists engine state.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-amp/amp"
)

// File is the JSON schema for amp presets. Absent fields keep their
// defaults.
type File struct {
	InputLevelDB   *float64 `json:"input_level_db,omitempty"`
	PreModelGainDB *float64 `json:"pre_model_gain_db,omitempty"`
	OutputLevelDB  *float64 `json:"output_level_db,omitempty"`
	Master         *float64 `json:"master,omitempty"`

	GateThresholdDB *float64 `json:"gate_threshold_db,omitempty"`
	GateActive      *bool    `json:"gate_active,omitempty"`
	ToneStackActive *bool    `json:"tone_stack_active,omitempty"`
	ModelActive     *bool    `json:"model_active,omitempty"`
	IRActive        *bool    `json:"ir_active,omitempty"`

	IRBlend   *float64 `json:"ir_blend,omitempty"`
	UserHPFHz *float64 `json:"user_hpf_hz,omitempty"`
	UserLPFHz *float64 `json:"user_lpf_hz,omitempty"`

	OutputMode          string   `json:"output_mode,omitempty"`
	CalibrateInput      *bool    `json:"calibrate_input,omitempty"`
	InputCalibrationDBu *float64 `json:"input_calibration_dbu,omitempty"`

	TunerActive  *bool  `json:"tuner_active,omitempty"`
	TunerMonitor string `json:"tuner_monitor,omitempty"`

	Tone map[string]float64 `json:"tone,omitempty"`

	ModelPath   string `json:"model_path,omitempty"`
	IRLeftPath  string `json:"ir_left_path,omitempty"`
	IRRightPath string `json:"ir_right_path,omitempty"`
}

// Preset is a loaded preset: parameters plus the module files it names.
type Preset struct {
	Params      *amp.Params
	ModelPath   string
	IRLeftPath  string
	IRRightPath string
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
// Module paths are resolved relative to the preset file.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p := amp.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	return &Preset{
		Params:      p,
		ModelPath:   resolve(base, f.ModelPath),
		IRLeftPath:  resolve(base, f.IRLeftPath),
		IRRightPath: resolve(base, f.IRRightPath),
	}, nil
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// ApplyFile applies a parsed preset file onto an existing params object and
// validates the result.
func ApplyFile(dst *amp.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	setFloat(&dst.InputLevelDB, f.InputLevelDB)
	setFloat(&dst.PreModelGainDB, f.PreModelGainDB)
	setFloat(&dst.OutputLevelDB, f.OutputLevelDB)
	setFloat(&dst.Master, f.Master)
	setFloat(&dst.GateThresholdDB, f.GateThresholdDB)
	setBool(&dst.GateActive, f.GateActive)
	setBool(&dst.ToneStackActive, f.ToneStackActive)
	setBool(&dst.ModelActive, f.ModelActive)
	setBool(&dst.IRActive, f.IRActive)
	setFloat(&dst.IRBlend, f.IRBlend)
	setFloat(&dst.UserHPFHz, f.UserHPFHz)
	setFloat(&dst.UserLPFHz, f.UserLPFHz)
	setBool(&dst.CalibrateInput, f.CalibrateInput)
	setFloat(&dst.InputCalibrationDBu, f.InputCalibrationDBu)
	setBool(&dst.TunerActive, f.TunerActive)

	if f.OutputMode != "" {
		m, err := amp.ParseOutputMode(strings.TrimSpace(f.OutputMode))
		if err != nil {
			return err
		}
		dst.OutputMode = m
	}
	if f.TunerMonitor != "" {
		m, err := amp.ParseTunerMonitor(strings.TrimSpace(f.TunerMonitor))
		if err != nil {
			return err
		}
		dst.TunerMonitor = m
	}

	keys := make([]string, 0, len(f.Tone))
	for k := range f.Tone {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		knob := toneKnob(dst, k)
		if knob == nil {
			return fmt.Errorf("invalid tone key %q (expected bass, middle, treble, presence or depth)", k)
		}
		*knob = f.Tone[k]
	}
	return dst.Validate()
}

func toneKnob(p *amp.Params, name string) *float64 {
	switch name {
	case amp.ToneBass:
		return &p.Bass
	case amp.ToneMiddle:
		return &p.Middle
	case amp.ToneTreble:
		return &p.Treble
	case amp.TonePresence:
		return &p.Presence
	case amp.ToneDepth:
		return &p.Depth
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// FromParams returns a File that sets every field of p.
func FromParams(p *amp.Params) *File {
	return &File{
		InputLevelDB:        &p.InputLevelDB,
		PreModelGainDB:      &p.PreModelGainDB,
		OutputLevelDB:       &p.OutputLevelDB,
		Master:              &p.Master,
		GateThresholdDB:     &p.GateThresholdDB,
		GateActive:          &p.GateActive,
		ToneStackActive:     &p.ToneStackActive,
		ModelActive:         &p.ModelActive,
		IRActive:            &p.IRActive,
		IRBlend:             &p.IRBlend,
		UserHPFHz:           &p.UserHPFHz,
		UserLPFHz:           &p.UserLPFHz,
		OutputMode:          p.OutputMode.String(),
		CalibrateInput:      &p.CalibrateInput,
		InputCalibrationDBu: &p.InputCalibrationDBu,
		TunerActive:         &p.TunerActive,
		TunerMonitor:        p.TunerMonitor.String(),
		Tone: map[string]float64{
			amp.ToneBass:     p.Bass,
			amp.ToneMiddle:   p.Middle,
			amp.ToneTreble:   p.Treble,
			amp.TonePresence: p.Presence,
			amp.ToneDepth:    p.Depth,
		},
	}
}

// SaveJSON writes p and the module paths as an indented preset file.
func SaveJSON(path string, pr *Preset) error {
	f := FromParams(pr.Params.Clone())
	f.ModelPath = pr.ModelPath
	f.IRLeftPath = pr.IRLeftPath
	f.IRRightPath = pr.IRRightPath
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
