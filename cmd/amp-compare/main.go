package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/analysis"
	"github.com/cwbudde/algo-amp/internal/audiofile"
	"github.com/cwbudde/algo-amp/internal/cli"
	"github.com/cwbudde/algo-amp/nam"
	"github.com/cwbudde/algo-amp/preset"
)

// CLI defines the command-line interface
type CLI struct {
	Reference  string `short:"r" type:"existingfile" required:"" help:"Reference WAV"`
	Candidate  string `short:"c" type:"existingfile" help:"Candidate WAV; rendered from --input and --preset when empty"`
	Input      string `short:"i" type:"existingfile" help:"Dry input WAV for a rendered candidate"`
	Preset     string `short:"p" type:"existingfile" help:"Preset JSON for a rendered candidate"`
	SampleRate int    `name:"sample-rate" default:"48000" help:"Analysis sample rate in Hz"`
	Bands      bool   `help:"Print a per-band, per-window breakdown"`
	JSON       bool   `help:"Print metrics as JSON"`
	LogLevel   string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
}

func main() {
	var c CLI
	kong.Parse(&c,
		kong.Name("amp-compare"),
		kong.Description("Measure the distance between a reference and a candidate render"),
		kong.UsageOnError(),
	)
	if err := run(&c, os.Stdout); err != nil {
		cli.Fatal(err)
	}
}

func run(c *CLI, w io.Writer) error {
	ref, err := readAt(c.Reference, c.SampleRate)
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}

	var cand []float64
	switch {
	case c.Candidate != "":
		if cand, err = readAt(c.Candidate, c.SampleRate); err != nil {
			return fmt.Errorf("read candidate: %w", err)
		}
	case c.Input != "":
		if cand, err = renderCandidate(c); err != nil {
			return fmt.Errorf("render candidate: %w", err)
		}
	default:
		return fmt.Errorf("either --candidate or --input is required")
	}

	metrics := analysis.Compare(ref, cand, c.SampleRate)
	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}
	printMetrics(w, metrics)

	if c.Bands {
		a, b, _ := analysis.Align(ref, cand, c.SampleRate)
		reports, err := analysis.BandReport(a, b, c.SampleRate, analysis.DefaultWindows, analysis.GuitarBands)
		if err != nil {
			return err
		}
		printBands(w, reports)
	}
	return nil
}

func readAt(path string, sampleRate int) ([]float64, error) {
	x, sr, err := audiofile.ReadWAVMono(path)
	if err != nil {
		return nil, err
	}
	return audiofile.ResampleIfNeeded(x, sr, sampleRate)
}

func renderCandidate(c *CLI) ([]float64, error) {
	log, err := cli.NewLogger(c.LogLevel)
	if err != nil {
		return nil, err
	}
	dry, err := readAt(c.Input, c.SampleRate)
	if err != nil {
		return nil, err
	}
	params := amp.NewDefaultParams()
	var paths amp.Paths
	if c.Preset != "" {
		pr, err := preset.LoadJSON(c.Preset)
		if err != nil {
			return nil, err
		}
		params = pr.Params
		paths = amp.Paths{Model: pr.ModelPath, IRLeft: pr.IRLeftPath, IRRight: pr.IRRightPath}
	}

	e := amp.NewEngine(float64(c.SampleRate), 256, params, amp.Options{Loader: nam.Loader, Logger: log})
	if paths.Model != "" {
		if err := e.LoadModel(paths.Model); err != nil {
			return nil, err
		}
	}
	if paths.IRLeft != "" {
		if _, err := e.LoadIRLeft(paths.IRLeft); err != nil {
			return nil, err
		}
	}
	if paths.IRRight != "" {
		if _, err := e.LoadIRRight(paths.IRRight); err != nil {
			return nil, err
		}
	}
	return e.Render([][]float64{dry}, 256, 1, 0, nil)[0], nil
}

func printMetrics(w io.Writer, m analysis.Metrics) {
	cli.PrintTitle(w, "amp-compare")
	cli.PrintKV(w, "Reference", "%d frames", m.ReferenceFrames)
	cli.PrintKV(w, "Candidate", "%d frames", m.CandidateFrames)
	cli.PrintKV(w, "Aligned", "%d frames", m.AlignedFrames)
	cli.PrintKV(w, "Lag", "%d samples (%.3f ms)", m.LagSamples, 1000.0*float64(m.LagSamples)/float64(m.SampleRate))

	cli.PrintSection(w, "Components")
	fmt.Fprintf(w, "  %-16s %-12s %6s  %6s  %s\n", "Component", "Raw", "Norm", "Weight", "Contribution")
	row := func(name, key, raw string, norm, weight float64) {
		marker := ""
		if m.Dominant == key {
			marker = " ◄"
		}
		fmt.Fprintf(w, "  %-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", name, raw, norm*100, weight, norm*weight, marker)
	}
	row("Time RMSE", "time", fmt.Sprintf("%.6f", m.TimeRMSE), m.TimeNorm, analysis.WeightTime)
	row("Envelope RMSE", "envelope", fmt.Sprintf("%.1f dB", m.EnvelopeRMSEDB), m.EnvelopeNorm, analysis.WeightEnvelope)
	row("Spectral RMSE", "spectral", fmt.Sprintf("%.1f dB", m.SpectralRMSEDB), m.SpectralNorm, analysis.WeightSpectral)
	row("Octave bands", "band", fmt.Sprintf("%.1f dB", m.BandRMSEDB), m.BandNorm, analysis.WeightBand)
	row("Decay diff", "decay", fmt.Sprintf("%.1f dB/s", m.DecayDiffDBPerS), m.DecayNorm, analysis.WeightDecay)

	cli.PrintSection(w, "Result")
	cli.PrintKV(w, "Score", "%.4f (0 best, 1 worst)", m.Score)
	cli.PrintKV(w, "Similarity", "%.2f%%", m.Similarity*100.0)
	cli.PrintKV(w, "Dominant", "%s", orNone(m.Dominant))
	cli.PrintKV(w, "Decay slopes", "ref %.1f dB/s, cand %.1f dB/s", m.RefDecayDBPerS, m.CandDecayDBPerS)
	cli.PrintKV(w, "Centroids", "ref %.0f Hz, cand %.0f Hz", m.RefCentroidHz, m.CandCentroidHz)
}

func printBands(w io.Writer, reports []analysis.WindowReport) {
	for _, r := range reports {
		cli.PrintSection(w, fmt.Sprintf("%s, %d STFT frames", r.Window.Name, r.Frames))
		for _, b := range r.Bands {
			marker := ""
			if b.RMSEDB > 15 {
				marker = " <<<"
			}
			if b.RMSEDB > 25 {
				marker = " <<< !!!"
			}
			fmt.Fprintf(w, "  %-22s RMSE=%5.1fdB  ref=%6.1fdB  cand=%6.1fdB  diff=%+5.1fdB%s\n",
				b.Band.Name, b.RMSEDB, b.RefDB, b.CandDB, b.DiffDB, marker)
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
