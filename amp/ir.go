package amp

import (
	"errors"
	"fmt"
	"os"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-amp/internal/audiofile"
)

// MaxIRSamples caps the kernel length at the target rate.
const MaxIRSamples = 8192

const (
	irMinBlockOrder = 6
	irMaxBlockOrder = 13
)

// LoadStatus categorizes the outcome of an impulse response load.
type LoadStatus int

const (
	LoadOK LoadStatus = iota
	LoadOpenFailed
	LoadInvalidFormat
	LoadEmpty
	LoadInvalidRate
	LoadResampleFailed
	LoadConvolverFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadOpenFailed:
		return "open failed"
	case LoadInvalidFormat:
		return "invalid format"
	case LoadEmpty:
		return "empty"
	case LoadInvalidRate:
		return "invalid sample rate"
	case LoadResampleFailed:
		return "resample failed"
	case LoadConvolverFailed:
		return "convolver failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ImpulseResponse convolves a mono signal with a cabinet kernel.
type ImpulseResponse struct {
	raw     []float64
	rawRate float64

	kernel     []float64
	sampleRate float64

	conv *dspconv.PartitionedConvolution
}

// NewImpulseResponse resamples data from rawRate to targetRate, truncates it
// to MaxIRSamples and builds the convolver.
func NewImpulseResponse(data []float64, rawRate, targetRate float64) (*ImpulseResponse, LoadStatus, error) {
	if len(data) == 0 {
		return nil, LoadEmpty, dspconv.ErrEmptyImpulseResponse
	}
	if rawRate <= 0 || targetRate <= 0 {
		return nil, LoadInvalidRate, fmt.Errorf("invalid rates %.0f -> %.0f", rawRate, targetRate)
	}

	kernel, err := audiofile.ResampleIfNeeded(data, int(rawRate), int(targetRate))
	if err != nil {
		return nil, LoadResampleFailed, err
	}
	if len(kernel) > MaxIRSamples {
		kernel = kernel[:MaxIRSamples]
	}
	if len(kernel) == 0 {
		return nil, LoadEmpty, dspconv.ErrEmptyImpulseResponse
	}
	conv, err := dspconv.NewPartitionedConvolution(kernel, irMinBlockOrder, irMaxBlockOrder)
	if err != nil {
		return nil, LoadConvolverFailed, err
	}
	return &ImpulseResponse{
		raw:        data,
		rawRate:    rawRate,
		kernel:     kernel,
		sampleRate: targetRate,
		conv:       conv,
	}, LoadOK, nil
}

// LoadImpulseResponse reads a WAV file. Multi-channel files use the first
// channel.
func LoadImpulseResponse(path string, targetRate float64) (*ImpulseResponse, LoadStatus, error) {
	channels, sr, err := audiofile.ReadWAV(path)
	if err != nil {
		var pathErr *os.PathError
		switch {
		case errors.As(err, &pathErr):
			return nil, LoadOpenFailed, err
		case errors.Is(err, audiofile.ErrEmptyWAV):
			return nil, LoadEmpty, err
		case errors.Is(err, audiofile.ErrInvalidSampleRate):
			return nil, LoadInvalidRate, err
		default:
			return nil, LoadInvalidFormat, err
		}
	}
	return NewImpulseResponse(channels[0], float64(sr), targetRate)
}

// Resampled returns a new response built from the raw kernel for rate.
func (ir *ImpulseResponse) Resampled(rate float64) (*ImpulseResponse, LoadStatus, error) {
	return NewImpulseResponse(ir.raw, ir.rawRate, rate)
}

// Process convolves in into out. len(out) must equal len(in).
func (ir *ImpulseResponse) Process(in, out []float64) {
	if err := ir.conv.ProcessBlock(in, out); err != nil {
		copy(out, in)
	}
}

func (ir *ImpulseResponse) Reset() { ir.conv.Reset() }

// Latency returns the convolver delay in samples.
func (ir *ImpulseResponse) Latency() int { return ir.conv.Latency() }

// SampleRate returns the rate the kernel was prepared for.
func (ir *ImpulseResponse) SampleRate() float64 { return ir.sampleRate }

// RawSampleRate returns the rate of the loaded file.
func (ir *ImpulseResponse) RawSampleRate() float64 { return ir.rawRate }

// Data returns the prepared kernel. It must not be modified.
func (ir *ImpulseResponse) Data() []float64 { return ir.kernel }

// RawData returns the kernel as loaded.
func (ir *ImpulseResponse) RawData() []float64 { return ir.raw }
