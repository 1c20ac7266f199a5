package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/analysis"
)

type knobDef struct {
	name string
	set  func(p *amp.Params, v float64)
	get  func(p *amp.Params) float64
}

// knobs are the parameters searched, each over the 0..10 knob range.
var knobs = []knobDef{
	{amp.ToneBass, func(p *amp.Params, v float64) { p.Bass = v }, func(p *amp.Params) float64 { return p.Bass }},
	{amp.ToneMiddle, func(p *amp.Params, v float64) { p.Middle = v }, func(p *amp.Params) float64 { return p.Middle }},
	{amp.ToneTreble, func(p *amp.Params, v float64) { p.Treble = v }, func(p *amp.Params) float64 { return p.Treble }},
	{amp.TonePresence, func(p *amp.Params, v float64) { p.Presence = v }, func(p *amp.Params) float64 { return p.Presence }},
	{amp.ToneDepth, func(p *amp.Params, v float64) { p.Depth = v }, func(p *amp.Params) float64 { return p.Depth }},
	{"master", func(p *amp.Params, v float64) { p.Master = v }, func(p *amp.Params) float64 { return p.Master }},
}

const knobMax = 10.0

// fromNormalized maps an optimizer position in [0,1]^n onto a copy of base.
func fromNormalized(pos []float64, base *amp.Params) (*amp.Params, []float64) {
	p := base.Clone()
	vals := make([]float64, len(knobs))
	for i, k := range knobs {
		x := 0.0
		if i < len(pos) {
			x = math.Min(math.Max(pos[i], 0), 1)
		}
		vals[i] = x * knobMax
		k.set(p, vals[i])
	}
	return p, vals
}

func knobValues(p *amp.Params) []float64 {
	vals := make([]float64, len(knobs))
	for i, k := range knobs {
		vals[i] = k.get(p)
	}
	return vals
}

// matcher renders the dry signal through one engine, resetting it before
// every evaluation.
type matcher struct {
	engine     *amp.Engine
	base       *amp.Params
	dry        []float64
	target     []float64
	sampleRate int
	blockSize  int
}

func (m *matcher) render(p *amp.Params) []float64 {
	m.engine.OnReset(float64(m.sampleRate), m.blockSize)
	if err := m.engine.SetParams(p); err != nil {
		return nil
	}
	return m.engine.Render([][]float64{m.dry}, m.blockSize, 1, 0, nil)[0]
}

func (m *matcher) evaluate(p *amp.Params) analysis.Metrics {
	out := m.render(p)
	if out == nil {
		return analysis.Metrics{SampleRate: m.sampleRate, Score: 1}
	}
	return analysis.Compare(m.target, out, m.sampleRate)
}

type optimizeConfig struct {
	variant    string
	pop        int
	iterations int
	seed       int64
	progress   func(eval int, score float64)
}

type matchResult struct {
	params  *amp.Params
	vals    []float64
	metrics analysis.Metrics
	start   float64
	evals   int
}

func (m *matcher) optimize(cfg optimizeConfig) (*matchResult, error) {
	best := &matchResult{
		params:  m.base.Clone(),
		vals:    knobValues(m.base),
		metrics: m.evaluate(m.base),
		evals:   1,
	}
	best.start = best.metrics.Score

	mcfg, err := newMayflyConfig(cfg.variant, cfg.pop, len(knobs), cfg.iterations)
	if err != nil {
		return nil, err
	}
	mcfg.Rand = rand.New(rand.NewSource(cfg.seed))
	mcfg.ObjectiveFunc = func(pos []float64) float64 {
		p, vals := fromNormalized(pos, m.base)
		metrics := m.evaluate(p)
		best.evals++
		if metrics.Score < best.metrics.Score {
			best.params = p
			best.vals = vals
			best.metrics = metrics
			if cfg.progress != nil {
				cfg.progress(best.evals, metrics.Score)
			}
		}
		return metrics.Score
	}
	if _, err := runMayfly(mcfg); err != nil {
		return nil, err
	}
	return best, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
