// Package audiofile reads and writes the WAV files used by the commands and
// the impulse response loader.
package audiofile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

var (
	// ErrInvalidWAV is returned for files the decoder does not accept.
	ErrInvalidWAV = errors.New("invalid wav file")
	// ErrEmptyWAV is returned for files without sample frames.
	ErrEmptyWAV = errors.New("empty wav data")
	// ErrInvalidSampleRate is returned for non-positive header sample rates.
	ErrInvalidSampleRate = errors.New("invalid wav sample-rate")
)

// ReadWAV returns de-interleaved channels and the file sample rate.
func ReadWAV(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	sr := buf.Format.SampleRate
	if sr <= 0 {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sr)
	}

	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrEmptyWAV, path)
	}
	out := make([][]float64, numCh)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			out[c][i] = float64(buf.Data[i*numCh+c])
		}
	}
	return out, sr, nil
}

// ReadWAVMono returns the channel average of a WAV file.
func ReadWAVMono(path string) ([]float64, int, error) {
	channels, sr, err := ReadWAV(path)
	if err != nil {
		return nil, 0, err
	}
	return Downmix(channels), sr, nil
}

// Downmix averages channels into one.
func Downmix(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}
	out := make([]float64, len(channels[0]))
	for _, ch := range channels {
		for i := range out {
			out[i] += ch[i]
		}
	}
	g := 1.0 / float64(len(channels))
	for i := range out {
		out[i] *= g
	}
	return out
}

// ResampleIfNeeded converts in from fromRate to toRate with the best
// quality profile.
func ResampleIfNeeded(in []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// WriteWAV writes channels as a 16-bit PCM file. All channels must have the
// same length.
func WriteWAV(path string, channels [][]float64, sampleRate int) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels to write")
	}
	frames := len(channels[0])
	for c, ch := range channels {
		if len(ch) != frames {
			return fmt.Errorf("channel %d length %d != %d", c, len(ch), frames)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	numCh := len(channels)
	enc := wav.NewEncoder(f, sampleRate, 16, numCh, 1)
	data := make([]float32, frames*numCh)
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			data[i*numCh+c] = float32(channels[c][i])
		}
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numCh,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
