package amp

// Model is a neural amp model operating at its own native sample rate.
//
// Process must not allocate once Reset or ResetAndPrewarm has sized the model
// for the largest block it will see.
type Model interface {
	Process(in, out []float64)
	Reset(sampleRate float64, maxBlockSize int)
	ResetAndPrewarm(sampleRate float64, maxBlockSize int)
	Prewarm()
	Latency() int

	// InputLevel returns the calibrated input level in dBu, if known.
	InputLevel() (float64, bool)
	// OutputLevel returns the calibrated output level in dBu, if known.
	OutputLevel() (float64, bool)
	// Loudness returns the measured model loudness in dB, if known.
	Loudness() (float64, bool)

	// ExpectedSampleRate returns the rate the model was trained at, or a
	// value <= 0 when the model does not say.
	ExpectedSampleRate() float64
}

// ModelLoader constructs a Model from a file.
type ModelLoader func(path string) (Model, error)
