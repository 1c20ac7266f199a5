package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/internal/audiofile"
	"github.com/cwbudde/algo-amp/internal/cli"
	"github.com/cwbudde/algo-amp/nam"
	"github.com/cwbudde/algo-amp/preset"
)

// CLI defines the command-line interface
type CLI struct {
	Input      string  `short:"i" type:"existingfile" required:"" help:"Dry input WAV"`
	Target     string  `short:"t" type:"existingfile" required:"" help:"Target render to match"`
	Model      string  `short:"m" type:"existingfile" help:"Model file (.nam)"`
	IRLeft     string  `name:"ir-left" type:"existingfile" help:"Left impulse response WAV"`
	IRRight    string  `name:"ir-right" type:"existingfile" help:"Right impulse response WAV"`
	Preset     string  `short:"p" type:"existingfile" help:"Starting preset JSON"`
	Output     string  `short:"o" default:"matched.json" help:"Best preset JSON"`
	Render     string  `help:"Also render the best match to this WAV"`
	Iterations int     `default:"40" help:"Mayfly iterations"`
	Pop        int     `default:"8" help:"Mayfly population per sex"`
	Variant    string  `default:"desma" enum:"ma,desma,olce,eobbma,gsasma,mpma,aoblmoa" help:"Mayfly variant"`
	Seed       int64   `default:"1" help:"Optimizer seed"`
	MaxSeconds float64 `name:"max-seconds" default:"6" help:"Seconds of input used per evaluation"`
	BlockSize  int     `name:"block-size" default:"256" help:"Frames per processing block"`
	LogLevel   string  `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
}

func main() {
	var c CLI
	kong.Parse(&c,
		kong.Name("amp-match"),
		kong.Description("Fit tone stack and master knobs so a render matches a target"),
		kong.UsageOnError(),
	)
	if err := run(&c); err != nil {
		cli.Fatal(err)
	}
}

func run(c *CLI) error {
	log, err := cli.NewLogger(c.LogLevel)
	if err != nil {
		return err
	}
	if c.BlockSize < 1 || c.Pop < 1 || c.Iterations < 1 {
		return fmt.Errorf("block size, population and iterations must be >= 1")
	}

	dry, sampleRate, err := audiofile.ReadWAVMono(c.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	target, targetRate, err := audiofile.ReadWAVMono(c.Target)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	if target, err = audiofile.ResampleIfNeeded(target, targetRate, sampleRate); err != nil {
		return fmt.Errorf("resample target: %w", err)
	}
	if c.MaxSeconds > 0 {
		n := int(c.MaxSeconds * float64(sampleRate))
		dry = head(dry, n)
		target = head(target, n)
	}

	base := amp.NewDefaultParams()
	paths := amp.Paths{}
	if c.Preset != "" {
		pr, err := preset.LoadJSON(c.Preset)
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}
		base = pr.Params
		paths = amp.Paths{Model: pr.ModelPath, IRLeft: pr.IRLeftPath, IRRight: pr.IRRightPath}
	}
	if c.Model != "" {
		paths.Model = c.Model
		base.ModelActive = true
	}
	if c.IRLeft != "" {
		paths.IRLeft = c.IRLeft
	}
	if c.IRRight != "" {
		paths.IRRight = c.IRRight
	}
	base.TunerActive = false

	e := amp.NewEngine(float64(sampleRate), c.BlockSize, base, amp.Options{Loader: nam.Loader, Logger: log})
	if err := loadModules(e, paths); err != nil {
		return err
	}

	m := &matcher{
		engine:     e,
		base:       base,
		dry:        dry,
		target:     target,
		sampleRate: sampleRate,
		blockSize:  c.BlockSize,
	}
	res, err := m.optimize(optimizeConfig{
		variant:    strings.ToLower(c.Variant),
		pop:        c.Pop,
		iterations: c.Iterations,
		seed:       c.Seed,
		progress: func(eval int, score float64) {
			log.WithFields(logrus.Fields{"eval": eval, "best": score}).Info("improved")
		},
	})
	if err != nil {
		return err
	}

	if err := preset.SaveJSON(c.Output, &preset.Preset{
		Params:      res.params,
		ModelPath:   paths.Model,
		IRLeftPath:  paths.IRLeft,
		IRRightPath: paths.IRRight,
	}); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	if c.Render != "" {
		out := m.render(res.params)
		if err := audiofile.WriteWAV(c.Render, [][]float64{out}, sampleRate); err != nil {
			return fmt.Errorf("write render: %w", err)
		}
	}

	w := os.Stdout
	cli.PrintTitle(w, "amp-match")
	cli.PrintKV(w, "Evaluations", "%d", res.evals)
	cli.PrintKV(w, "Start score", "%.4f", res.start)
	cli.PrintKV(w, "Best score", "%s", cli.GoodStyle.Render(fmt.Sprintf("%.4f (similarity %.1f%%)", res.metrics.Score, 100*res.metrics.Similarity)))
	cli.PrintSection(w, "Knobs")
	for i, k := range knobs {
		cli.PrintKV(w, k.name, "%.2f", res.vals[i])
	}
	cli.PrintKV(w, "Preset", "%s", c.Output)
	return nil
}

func loadModules(e *amp.Engine, paths amp.Paths) error {
	if paths.Model != "" {
		if err := e.LoadModel(paths.Model); err != nil {
			return fmt.Errorf("load model: %w", err)
		}
	}
	if paths.IRLeft != "" {
		if status, err := e.LoadIRLeft(paths.IRLeft); err != nil {
			return fmt.Errorf("load left IR (%s): %w", status, err)
		}
	}
	if paths.IRRight != "" {
		if status, err := e.LoadIRRight(paths.IRRight); err != nil {
			return fmt.Errorf("load right IR (%s): %w", status, err)
		}
	}
	return nil
}

func head(x []float64, n int) []float64 {
	if n > 0 && len(x) > n {
		return x[:n]
	}
	return x
}
