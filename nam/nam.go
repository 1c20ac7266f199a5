// Package nam reads .nam model files. Only the Linear architecture is
// implemented; other architectures are rejected with
// ErrUnsupportedArchitecture.
package nam

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrUnsupportedArchitecture is returned for architectures other than Linear.
	ErrUnsupportedArchitecture = errors.New("nam: unsupported architecture")
	// ErrInvalidWeights is returned when the weight count does not match the config.
	ErrInvalidWeights = errors.New("nam: invalid weights")
)

// ArchitectureLinear is the architecture name of a plain FIR model.
const ArchitectureLinear = "Linear"

// File is the JSON layout of a .nam file.
type File struct {
	Version      string          `json:"version"`
	Architecture string          `json:"architecture"`
	Config       json.RawMessage `json:"config"`
	Weights      []float64       `json:"weights"`
	Metadata     *Metadata       `json:"metadata,omitempty"`
	SampleRate   *float64        `json:"sample_rate,omitempty"`
}

// Metadata carries the optional level calibration of a model.
type Metadata struct {
	Name           string   `json:"name,omitempty"`
	Loudness       *float64 `json:"loudness,omitempty"`
	InputLevelDBu  *float64 `json:"input_level_dbu,omitempty"`
	OutputLevelDBu *float64 `json:"output_level_dbu,omitempty"`
}

type linearConfig struct {
	ReceptiveField int  `json:"receptive_field"`
	Bias           bool `json:"bias"`
}

// Load opens and parses a .nam file.
func Load(path string) (*Linear, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a .nam document.
func Parse(r io.Reader) (*Linear, error) {
	var file File
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode nam: %w", err)
	}
	if file.Architecture != ArchitectureLinear {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArchitecture, file.Architecture)
	}

	var cfg linearConfig
	if len(file.Config) > 0 {
		if err := json.Unmarshal(file.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decode linear config: %w", err)
		}
	}
	if cfg.ReceptiveField <= 0 {
		return nil, fmt.Errorf("%w: receptive_field must be positive, got %d", ErrInvalidWeights, cfg.ReceptiveField)
	}
	want := cfg.ReceptiveField
	if cfg.Bias {
		want++
	}
	if len(file.Weights) != want {
		return nil, fmt.Errorf("%w: got %d weights, want %d", ErrInvalidWeights, len(file.Weights), want)
	}

	bias := 0.0
	if cfg.Bias {
		bias = file.Weights[cfg.ReceptiveField]
	}
	rate := -1.0
	if file.SampleRate != nil {
		rate = *file.SampleRate
	}
	m := NewLinear(file.Weights[:cfg.ReceptiveField], bias, rate)
	if file.Metadata != nil {
		m.meta = *file.Metadata
	}
	return m, nil
}
