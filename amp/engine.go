package amp

import (
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/internal/staging"
	"github.com/cwbudde/algo-amp/tuner"
)

// gateIndicatorDB is the gain reduction above which the gate counts as
// attenuating for display.
const gateIndicatorDB = 12.0

// Options configures an Engine.
type Options struct {
	// Standalone sums input channels without averaging and hard clips the
	// output to [-1, 1].
	Standalone bool
	// Loader builds models for LoadModel.
	Loader ModelLoader
	// ToneStack replaces the default BasicToneStack.
	ToneStack ToneStack
	// Logger receives load and reset messages. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// Paths lists the files behind the modules most recently loaded.
type Paths struct {
	Model   string
	IRLeft  string
	IRRight string
}

// Engine is the mono amp signal chain. ProcessBlock and OnReset belong to
// the audio goroutine; loaders and getters may be called from others.
type Engine struct {
	opts Options
	log  logrus.FieldLogger

	sampleRate   float64
	maxBlockSize int
	tailSize     atomic.Int64
	latency      atomic.Int64

	params atomic.Pointer[Params]

	model   staging.Slot[ResamplingModel]
	irLeft  staging.Slot[ImpulseResponse]
	irRight staging.Slot[ImpulseResponse]

	loadMu  sync.Mutex
	pathsMu sync.Mutex
	paths   Paths

	events          eventFlags
	gateAttenuating atomic.Bool

	toneStack ToneStack
	trigger   *GateTrigger
	gain      *GateGain
	hpf       *FilterCascade
	lpf       *FilterCascade
	dcBlocker *OnePole

	tuner       *tuner.Analyzer
	inputMeter  *Meter
	outputMeter *Meter

	input   channelBuffer
	output  channelBuffer
	scratch channelBuffer
	mono    [1][]float64
}

// NewEngine returns an engine prepared for sampleRate and blocks of up to
// maxBlockSize frames. A nil params starts from NewDefaultParams.
func NewEngine(sampleRate float64, maxBlockSize int, params *Params, opts Options) *Engine {
	if params == nil {
		params = NewDefaultParams()
	}
	e := &Engine{
		opts:        opts,
		log:         opts.Logger,
		toneStack:   opts.ToneStack,
		trigger:     NewGateTrigger(),
		gain:        &GateGain{},
		hpf:         NewFilterCascade(HighPass, 2),
		lpf:         NewFilterCascade(LowPass, 2),
		dcBlocker:   NewOnePole(HighPass),
		tuner:       tuner.New(sampleRate),
		inputMeter:  NewMeter(),
		outputMeter: NewMeter(),
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.toneStack == nil {
		e.toneStack = NewBasicToneStack()
	}
	e.trigger.AddListener(e.gain)
	e.params.Store(params.Clone())
	e.OnReset(sampleRate, maxBlockSize)
	return e
}

// SetParams validates and publishes a copy of p for the next block.
func (e *Engine) SetParams(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.TunerActive && !e.params.Load().TunerActive {
		e.tuner.Reset()
	}
	e.params.Store(p.Clone())
	return nil
}

// Params returns a copy of the current parameters.
func (e *Engine) Params() *Params { return e.params.Load().Clone() }

// OnReset prepares every module for a new sample rate or block size. It must
// not run concurrently with ProcessBlock.
func (e *Engine) OnReset(sampleRate float64, maxBlockSize int) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.sampleRate = sampleRate
	e.maxBlockSize = maxBlockSize
	e.tailSize.Store(int64(10 * int(sampleRate/5)))

	e.inputMeter.Reset(sampleRate)
	e.outputMeter.Reset(sampleRate)
	e.resetModelAndIRs()

	e.toneStack.Reset(sampleRate, maxBlockSize)
	e.trigger.Reset()
	e.trigger.SetSampleRate(sampleRate)
	e.hpf.Reset()
	e.lpf.Reset()
	e.dcBlocker.Reset()
	e.tuner.SetSampleRate(sampleRate)

	e.input.ensure(1, maxBlockSize)
	e.output.ensure(1, maxBlockSize)
	e.scratch.ensure(2, maxBlockSize)
	e.updateLatency()
}

func (e *Engine) resetModelAndIRs() {
	m := e.model.Staged()
	if m == nil {
		m = e.model.Live()
	}
	if m != nil {
		if err := m.Reset(e.sampleRate, e.maxBlockSize); err != nil {
			e.log.WithError(err).Warn("model resampler unavailable, running at host rate")
		}
	}
	e.restageIR(&e.irLeft, "left")
	e.restageIR(&e.irRight, "right")
}

func (e *Engine) restageIR(slot *staging.Slot[ImpulseResponse], side string) {
	ir := slot.Staged()
	if ir == nil {
		ir = slot.Live()
	}
	if ir == nil {
		return
	}
	if ir.SampleRate() == e.sampleRate {
		ir.Reset()
		return
	}
	next, status, err := ir.Resampled(e.sampleRate)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"side":   side,
			"status": status.String(),
		}).WithError(err).Error("impulse response resample failed")
		return
	}
	slot.Stage(next)
}

// TailSize returns the number of samples the chain rings after silence.
func (e *Engine) TailSize() int { return int(e.tailSize.Load()) }

// Latency returns the delay of the live modules in samples.
func (e *Engine) Latency() int { return int(e.latency.Load()) }

func (e *Engine) updateLatency() {
	latency := 0
	if m := e.model.Live(); m != nil {
		latency += m.Latency() + m.Model().Latency()
	}
	irLatency := 0
	for _, ir := range []*ImpulseResponse{e.irLeft.Live(), e.irRight.Live()} {
		if ir != nil {
			irLatency = max(irLatency, ir.Latency())
		}
	}
	e.latency.Store(int64(latency + irLatency))
}

// Tuner returns the pitch analyzer fed while the tuner is active. Its Update
// method must be driven by the caller.
func (e *Engine) Tuner() *tuner.Analyzer { return e.tuner }

func (e *Engine) InputMeter() *Meter { return e.inputMeter }

func (e *Engine) OutputMeter() *Meter { return e.outputMeter }

// GateAttenuating reports whether the gate was attenuating in the last block.
func (e *Engine) GateAttenuating() bool { return e.gateAttenuating.Load() }

// DrainEvents returns and clears the events raised since the last call.
func (e *Engine) DrainEvents() Event { return e.events.drain() }

// Paths returns the files of the most recently loaded modules.
func (e *Engine) Paths() Paths {
	e.pathsMu.Lock()
	defer e.pathsMu.Unlock()
	return e.paths
}

func (e *Engine) setPath(fn func(*Paths)) {
	e.pathsMu.Lock()
	fn(&e.paths)
	e.pathsMu.Unlock()
}

// liveLevels returns the live model as a level source, or a nil interface.
func (e *Engine) liveLevels() levelSource {
	if m := e.model.Live(); m != nil {
		return m
	}
	return nil
}

// ProcessBlock renders nFrames from inputs into every output channel.
func (e *Engine) ProcessBlock(inputs, outputs [][]float64, nFrames int) {
	n := nFrames
	for _, ch := range inputs {
		n = min(n, len(ch))
	}
	for _, ch := range outputs {
		n = min(n, len(ch))
	}
	if n <= 0 {
		return
	}
	p := e.params.Load()

	e.input.ensure(1, n)
	e.output.ensure(1, n)
	e.scratch.ensure(2, n)
	mono := e.input.channel(0, n)

	// Input gain uses the model that was live for the previous block.
	e.downmix(inputs, mono, core.DBToLinear(InputGainDB(p, e.liveLevels())))
	e.commit()

	if p.TunerActive {
		e.tuner.PushInputMono(mono)
		switch p.TunerMonitor {
		case MonitorMute:
			for _, ch := range outputs {
				clear(ch[:n])
			}
			e.updateMeters(mono, outputs, n)
			return
		case MonitorBypass:
			e.mono[0] = mono
			e.processOutput(e.mono[:], outputs, n, OutputGainDB(p, e.liveLevels()))
			e.updateMeters(mono, outputs, n)
			return
		}
	}

	if p.GateActive {
		e.trigger.SetParams(DefaultTriggerParams(p.GateThresholdDB))
		e.trigger.Process(mono)
		e.setGateAttenuating(e.trigger.IsAttenuating(gateIndicatorDB))
	} else {
		e.setGateAttenuating(false)
	}

	out := e.output.channel(0, n)
	if m := e.model.Live(); p.ModelActive && m != nil {
		if p.PreModelGainDB != 0 {
			g := core.DBToLinear(p.PreModelGainDB)
			for i := range mono {
				mono[i] *= g
			}
		}
		m.Process(mono, out)
	} else {
		copy(out, mono)
	}

	if p.GateActive {
		e.gain.Process(out)
	}

	if p.ToneStackActive {
		e.toneStack.SetParam(ToneBass, p.Bass)
		e.toneStack.SetParam(ToneMiddle, p.Middle)
		e.toneStack.SetParam(ToneTreble, p.Treble)
		e.toneStack.SetParam(TonePresence, p.Presence)
		e.toneStack.SetParam(ToneDepth, p.Depth)
		e.toneStack.Process(out)
	}

	if g := core.DBToLinear(MasterGainDB(p.Master)); g != 1 {
		for i := range out {
			out[i] *= g
		}
	}

	if p.IRActive {
		e.processIRs(out, p.IRBlend*0.01)
	}

	e.hpf.SetParams(e.sampleRate, p.UserHPFHz)
	e.hpf.Process(out)
	e.lpf.SetParams(e.sampleRate, p.UserLPFHz)
	e.lpf.Process(out)
	e.dcBlocker.SetParams(e.sampleRate, DCBlockerHz)
	e.dcBlocker.Process(out)

	e.mono[0] = out
	e.processOutput(e.mono[:], outputs, n, OutputGainDB(p, e.liveLevels()))
	e.updateMeters(mono, outputs, n)
}

func (e *Engine) downmix(inputs [][]float64, mono []float64, gain float64) {
	clear(mono)
	if len(inputs) == 0 {
		return
	}
	for _, ch := range inputs {
		for i := range mono {
			mono[i] += ch[i]
		}
	}
	if !e.opts.Standalone {
		gain /= float64(len(inputs))
	}
	for i := range mono {
		mono[i] *= gain
	}
}

func (e *Engine) commit() {
	var ev Event
	res := e.model.CommitPending()
	if res.Has(staging.Cleared) {
		ev |= EventModelCleared
	}
	if res.Has(staging.Loaded) {
		ev |= EventModelLoaded
	}
	changed := res != 0

	res = e.irLeft.CommitPending()
	if res.Has(staging.Cleared) {
		ev |= EventIRLeftCleared
	}
	if res.Has(staging.Loaded) {
		ev |= EventIRLeftLoaded
	}
	changed = changed || res != 0

	res = e.irRight.CommitPending()
	if res.Has(staging.Cleared) {
		ev |= EventIRRightCleared
	}
	if res.Has(staging.Loaded) {
		ev |= EventIRRightLoaded
	}
	changed = changed || res != 0

	if changed {
		e.events.raise(ev)
		e.updateLatency()
	}
}

func (e *Engine) setGateAttenuating(on bool) {
	if on && !e.gateAttenuating.Load() {
		e.events.raise(EventGateAttenuating)
	}
	e.gateAttenuating.Store(on)
}

// processIRs convolves buf in place with the live responses. blend weights
// the right response.
func (e *Engine) processIRs(buf []float64, blend float64) {
	left, right := e.irLeft.Live(), e.irRight.Live()
	n := len(buf)
	switch {
	case left != nil && right != nil:
		l := e.scratch.channel(0, n)
		r := e.scratch.channel(1, n)
		left.Process(buf, l)
		right.Process(buf, r)
		for i := range buf {
			buf[i] = l[i]*(1-blend) + r[i]*blend
		}
	case left != nil:
		l := e.scratch.channel(0, n)
		left.Process(buf, l)
		copy(buf, l)
	case right != nil:
		r := e.scratch.channel(1, n)
		right.Process(buf, r)
		copy(buf, r)
	}
}

// processOutput writes the internal mono signal to every output channel.
// Anything other than one internal channel is not a supported layout and
// produces silence.
func (e *Engine) processOutput(src [][]float64, outputs [][]float64, n int, gainDB float64) {
	if len(src) != 1 {
		for _, ch := range outputs {
			clear(ch[:n])
		}
		return
	}
	g := core.DBToLinear(gainDB)
	in := src[0]
	for _, ch := range outputs {
		for i := 0; i < n; i++ {
			v := in[i] * g
			if e.opts.Standalone {
				v = core.Clamp(v, -1, 1)
			}
			ch[i] = v
		}
	}
}

func (e *Engine) updateMeters(mono []float64, outputs [][]float64, n int) {
	e.inputMeter.Update(mono)
	if len(outputs) > 0 {
		e.outputMeter.Update(outputs[0][:n])
	}
}
