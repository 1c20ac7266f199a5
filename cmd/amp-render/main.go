package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/internal/audiofile"
	"github.com/cwbudde/algo-amp/internal/cli"
	"github.com/cwbudde/algo-amp/nam"
	"github.com/cwbudde/algo-amp/preset"
	"github.com/cwbudde/algo-amp/tuner"
)

// CLI defines the command-line interface
type CLI struct {
	Input     string `short:"i" type:"existingfile" required:"" help:"Dry input WAV"`
	Output    string `short:"o" default:"out.wav" help:"Rendered output WAV"`
	Model     string `short:"m" type:"existingfile" help:"Model file (.nam)"`
	IRLeft    string `name:"ir-left" type:"existingfile" help:"Left impulse response WAV"`
	IRRight   string `name:"ir-right" type:"existingfile" help:"Right impulse response WAV"`
	Preset    string `short:"p" type:"existingfile" help:"Preset JSON; its module paths load unless overridden"`
	State     string `type:"existingfile" help:"Persisted engine state to restore before rendering"`
	SaveState string `name:"save-state" help:"Write the engine state here after rendering"`
	BlockSize int    `name:"block-size" default:"256" help:"Frames per processing block"`
	Channels  int    `default:"2" help:"Output channel count"`
	Tail      bool   `help:"Render the engine tail after the input ends"`
	Tuner     bool   `help:"Run the tuner alongside the full chain and report the detected note"`
	LogLevel  string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
}

func main() {
	var c CLI
	kong.Parse(&c,
		kong.Name("amp-render"),
		kong.Description("Render a dry guitar WAV through the amp chain"),
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
	if c.BlockSize < 1 {
		return fmt.Errorf("block size must be >= 1")
	}

	input, sampleRate, err := audiofile.ReadWAV(c.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	e := amp.NewEngine(float64(sampleRate), c.BlockSize, nil, amp.Options{
		Loader: nam.Loader,
		Logger: log,
	})

	paths := amp.Paths{}
	if c.State != "" {
		s, err := preset.LoadState(c.State)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if err := preset.Restore(e, s, log); err != nil {
			return err
		}
	}
	if c.Preset != "" {
		pr, err := preset.LoadJSON(c.Preset)
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}
		if err := e.SetParams(pr.Params); err != nil {
			return err
		}
		paths = amp.Paths{Model: pr.ModelPath, IRLeft: pr.IRLeftPath, IRRight: pr.IRRightPath}
	}
	paths = override(paths, amp.Paths{Model: c.Model, IRLeft: c.IRLeft, IRRight: c.IRRight})
	if err := loadModules(e, paths); err != nil {
		return err
	}

	p := e.Params()
	if c.Model != "" {
		p.ModelActive = true
	}
	if c.Tuner {
		// Keep the chain audible while the tuner listens.
		p.TunerActive = true
		p.TunerMonitor = amp.MonitorFull
	}
	if err := e.SetParams(p); err != nil {
		return err
	}

	tail := 0
	if c.Tail {
		tail = e.TailSize()
	}
	notes := map[int]int{}
	out := e.Render(input, c.BlockSize, c.Channels, tail, func(done int) {
		if ev := e.DrainEvents(); ev != 0 {
			log.WithFields(logrus.Fields{"frame": done, "events": ev.Names()}).Debug("engine events")
		}
		if c.Tuner {
			e.Tuner().Update()
			if e.Tuner().HasPitch() {
				notes[e.Tuner().MidiNote()]++
			}
		}
	})

	if err := audiofile.WriteWAV(c.Output, out, sampleRate); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if c.SaveState != "" {
		if err := preset.SaveState(c.SaveState, e); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	report(c, e, sampleRate, len(out[0]), notes)
	return nil
}

// override replaces every path of base that is set in top.
func override(base, top amp.Paths) amp.Paths {
	if top.Model != "" {
		base.Model = top.Model
	}
	if top.IRLeft != "" {
		base.IRLeft = top.IRLeft
	}
	if top.IRRight != "" {
		base.IRRight = top.IRRight
	}
	return base
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

func report(c *CLI, e *amp.Engine, sampleRate, frames int, notes map[int]int) {
	w := os.Stdout
	cli.PrintTitle(w, "amp-render")
	cli.PrintKV(w, "Output", "%s", c.Output)
	cli.PrintKV(w, "Frames", "%d (%.3f s at %d Hz)", frames, float64(frames)/float64(sampleRate), sampleRate)

	paths := e.Paths()
	cli.PrintSection(w, "Modules")
	cli.PrintKV(w, "Model", "%s", orNone(paths.Model))
	cli.PrintKV(w, "IR left", "%s", orNone(paths.IRLeft))
	cli.PrintKV(w, "IR right", "%s", orNone(paths.IRRight))
	cli.PrintKV(w, "Latency", "%d samples", e.Latency())

	cli.PrintSection(w, "Meters")
	cli.PrintKV(w, "Input", "peak %.1f dB, rms %.1f dB", e.InputMeter().PeakDB(), e.InputMeter().RMSDB())
	cli.PrintKV(w, "Output", "peak %.1f dB, rms %.1f dB", e.OutputMeter().PeakDB(), e.OutputMeter().RMSDB())

	if c.Tuner {
		cli.PrintSection(w, "Tuner")
		note, count := dominantNote(notes)
		if count == 0 {
			cli.PrintKV(w, "Note", "no pitch")
			return
		}
		cli.PrintKV(w, "Note", "%s (MIDI %d, %d readings)", tuner.NoteName(note), note, count)
		if e.Tuner().HasPitch() {
			cli.PrintKV(w, "Last", "%.2f Hz, %+.1f cents", e.Tuner().Frequency(), e.Tuner().Cents())
		}
	}
}

func dominantNote(notes map[int]int) (note, count int) {
	for n, k := range notes {
		if k > count || (k == count && n < note) {
			note, count = n, k
		}
	}
	return note, count
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
