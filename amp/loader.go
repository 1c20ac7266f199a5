package amp

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-amp/internal/staging"
)

// ErrNoModelLoader is returned by LoadModel when Options.Loader is nil.
var ErrNoModelLoader = errors.New("amp: no model loader configured")

// LoadModel builds a model from path with Options.Loader and stages it. On
// failure the live model and the recorded path are unchanged.
func (e *Engine) LoadModel(path string) error {
	if e.opts.Loader == nil {
		return ErrNoModelLoader
	}
	m, err := e.opts.Loader(path)
	if err != nil {
		e.log.WithField("path", path).WithError(err).Error("model load failed")
		return fmt.Errorf("load model %s: %w", path, err)
	}
	return e.stageModel(m, path)
}

// StageModel prepares m for the current sample rate and stages it.
func (e *Engine) StageModel(m Model) error {
	return e.stageModel(m, "")
}

func (e *Engine) stageModel(m Model, path string) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	rm := NewResamplingModel(m)
	if err := rm.Reset(e.sampleRate, e.maxBlockSize); err != nil {
		e.log.WithFields(logrus.Fields{
			"path":        path,
			"native_rate": rm.NativeRate(),
			"host_rate":   e.sampleRate,
		}).WithError(err).Error("model resampler setup failed")
		return fmt.Errorf("prepare model %s: %w", path, err)
	}
	e.model.Stage(rm)
	e.setPath(func(p *Paths) { p.Model = path })

	e.log.WithFields(logrus.Fields{
		"path":        path,
		"native_rate": rm.NativeRate(),
		"host_rate":   e.sampleRate,
		"latency":     rm.Latency() + m.Latency(),
	}).Info("model staged")
	return nil
}

// RemoveModel drops the live model at the next block.
func (e *Engine) RemoveModel() {
	e.model.RequestRemoval()
	e.setPath(func(p *Paths) { p.Model = "" })
}

// LoadIRLeft loads the left cabinet response from a WAV file.
func (e *Engine) LoadIRLeft(path string) (LoadStatus, error) {
	return e.loadIR(&e.irLeft, path, "left", func(p *Paths) { p.IRLeft = path })
}

// LoadIRRight loads the right cabinet response from a WAV file.
func (e *Engine) LoadIRRight(path string) (LoadStatus, error) {
	return e.loadIR(&e.irRight, path, "right", func(p *Paths) { p.IRRight = path })
}

// StageIRLeft stages a response built in memory, resampling it if needed.
func (e *Engine) StageIRLeft(ir *ImpulseResponse) (LoadStatus, error) {
	return e.stageIR(&e.irLeft, ir, "left", func(p *Paths) { p.IRLeft = "" })
}

// StageIRRight stages a response built in memory, resampling it if needed.
func (e *Engine) StageIRRight(ir *ImpulseResponse) (LoadStatus, error) {
	return e.stageIR(&e.irRight, ir, "right", func(p *Paths) { p.IRRight = "" })
}

// RemoveIRLeft drops the live left response at the next block.
func (e *Engine) RemoveIRLeft() {
	e.irLeft.RequestRemoval()
	e.setPath(func(p *Paths) { p.IRLeft = "" })
}

// RemoveIRRight drops the live right response at the next block.
func (e *Engine) RemoveIRRight() {
	e.irRight.RequestRemoval()
	e.setPath(func(p *Paths) { p.IRRight = "" })
}

func (e *Engine) loadIR(slot *staging.Slot[ImpulseResponse], path, side string, record func(*Paths)) (LoadStatus, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	fields := logrus.Fields{"side": side, "path": path}
	ir, status, err := LoadImpulseResponse(path, e.sampleRate)
	if err != nil {
		fields["status"] = status.String()
		e.log.WithFields(fields).WithError(err).Error("impulse response load failed")
		return status, fmt.Errorf("load %s impulse response %s: %w", side, path, err)
	}
	slot.Stage(ir)
	e.setPath(record)

	fields["raw_rate"] = ir.RawSampleRate()
	fields["samples"] = len(ir.Data())
	fields["latency"] = ir.Latency()
	e.log.WithFields(fields).Info("impulse response staged")
	return LoadOK, nil
}

func (e *Engine) stageIR(slot *staging.Slot[ImpulseResponse], ir *ImpulseResponse, side string, record func(*Paths)) (LoadStatus, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if ir.SampleRate() != e.sampleRate {
		next, status, err := ir.Resampled(e.sampleRate)
		if err != nil {
			return status, fmt.Errorf("stage %s impulse response: %w", side, err)
		}
		ir = next
	}
	slot.Stage(ir)
	e.setPath(record)
	e.log.WithFields(logrus.Fields{"side": side, "samples": len(ir.Data())}).Debug("impulse response staged")
	return LoadOK, nil
}
