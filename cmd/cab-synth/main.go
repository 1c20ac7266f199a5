package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/algo-amp/internal/audiofile"
	"github.com/cwbudde/algo-amp/internal/cli"
	"github.com/cwbudde/algo-amp/irsynth"
)

// CLI defines the command-line interface
type CLI struct {
	Output        string  `short:"o" default:"cab.wav" help:"Output WAV path"`
	SampleRate    int     `name:"sample-rate" default:"48000" help:"Output sample rate"`
	Duration      float64 `default:"0.2" help:"IR length in seconds"`
	Seed          int64   `default:"1" help:"Random seed for breakup modes"`
	Resonance     float64 `default:"110" help:"Cone resonance (Hz)"`
	ResonanceQ    float64 `name:"resonance-q" default:"2.5" help:"Cone resonance Q"`
	Modes         int     `default:"24" help:"Number of breakup modes"`
	BreakupLow    float64 `name:"breakup-low" default:"1200" help:"Lowest breakup mode (Hz)"`
	BreakupHigh   float64 `name:"breakup-high" default:"4800" help:"Highest breakup mode (Hz)"`
	Rolloff       float64 `default:"5200" help:"Rolloff corner (Hz)"`
	RolloffOrder  int     `name:"rolloff-order" default:"4" help:"Rolloff Butterworth order"`
	MicOffset     float64 `name:"mic-offset" default:"0" help:"Mic position from cap (0) to cone edge (1)"`
	Normalize     float64 `default:"0.9" help:"Peak normalization target"`
	Pair          bool    `help:"Also write an off-axis capture next to the output"`
	PairMicOffset float64 `name:"pair-mic-offset" default:"0.8" help:"Mic offset of the off-axis capture"`
}

func (c *CLI) config() irsynth.CabConfig {
	return irsynth.CabConfig{
		SampleRate:    c.SampleRate,
		DurationS:     c.Duration,
		Seed:          c.Seed,
		ResonanceHz:   c.Resonance,
		ResonanceQ:    c.ResonanceQ,
		BreakupModes:  c.Modes,
		BreakupLowHz:  c.BreakupLow,
		BreakupHighHz: c.BreakupHigh,
		RolloffHz:     c.Rolloff,
		RolloffOrder:  c.RolloffOrder,
		MicOffset:     c.MicOffset,
		NormalizePeak: c.Normalize,
	}
}

func main() {
	var c CLI
	kong.Parse(&c,
		kong.Name("cab-synth"),
		kong.Description("Synthesize a guitar cabinet impulse response"),
		kong.UsageOnError(),
	)
	if err := run(&c); err != nil {
		cli.Fatal(err)
	}
}

func run(c *CLI) error {
	cfg := c.config()
	w := os.Stdout
	cli.PrintTitle(w, "cab-synth")

	if !c.Pair {
		ir, err := irsynth.GenerateCab(cfg)
		if err != nil {
			return err
		}
		return write(c.Output, ir, cfg.SampleRate)
	}

	on, off, err := irsynth.GenerateCabPair(cfg, c.PairMicOffset)
	if err != nil {
		return err
	}
	if err := write(c.Output, on, cfg.SampleRate); err != nil {
		return err
	}
	return write(offAxisPath(c.Output), off, cfg.SampleRate)
}

func write(path string, ir []float64, sampleRate int) error {
	if err := audiofile.WriteWAV(path, [][]float64{ir}, sampleRate); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	peak, rms := stats(ir)
	w := os.Stdout
	cli.PrintKV(w, "Wrote", "%s", path)
	cli.PrintKV(w, "Samples", "%d (%.3f s at %d Hz)", len(ir), float64(len(ir))/float64(sampleRate), sampleRate)
	cli.PrintKV(w, "Peak/RMS", "%.6f / %.6f", peak, rms)
	return nil
}

// offAxisPath inserts "_offaxis" before the extension of path.
func offAxisPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_offaxis" + ext
}

func stats(x []float64) (peak float64, rms float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		peak = math.Max(peak, math.Abs(v))
		sum += v * v
	}
	return peak, math.Sqrt(sum / float64(len(x)))
}
