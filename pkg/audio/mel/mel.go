// Package mel converts between audio, short-time Fourier spectra and mel
// spectrograms.
//
// Default parameters match the corpus spectrograms, which are computed
// from 44.1 kHz stems with a 512-sample hop:
//
//	SampleRate: 44100
//	FFTSize:     2048
//	HopSize:      512
//	NumMels:      128
//	LowFreq:        0
//	HighFreq:   22050
//
// The filterbank uses the HTK mel scale with unit-peak triangles.
//
// Spectra are centred: frame i is the Hann-windowed FFT of the samples
// around i·HopSize, with zero padding at both ends, so a signal of n
// samples has 1 + n/HopSize frames and F frames invert to (F-1)·HopSize
// samples.
package mel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Config controls the transform.
type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	FFTSize    int     `yaml:"fft_size"`
	HopSize    int     `yaml:"hop_size"`
	NumMels    int     `yaml:"num_mels"`
	LowFreq    float64 `yaml:"low_freq"`
	// HighFreq defaults to the Nyquist frequency.
	HighFreq float64 `yaml:"high_freq"`
}

// DefaultConfig returns the corpus spectrogram parameters.
func DefaultConfig() Config {
	return Config{SampleRate: 44100, FFTSize: 2048, HopSize: 512, NumMels: 128}
}

// Transform holds the window, FFT plan and filterbank for one Config. It
// is not safe for concurrent use.
type Transform struct {
	cfg    Config
	window []float64
	fft    *fourier.FFT
	bank   *mat.Dense // NumMels × Bins
}

// New validates cfg and precomputes the transform.
func New(cfg Config) (*Transform, error) {
	if cfg.HighFreq <= 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	switch {
	case cfg.SampleRate <= 0:
		return nil, errors.New("mel: sample rate must be positive")
	case cfg.FFTSize <= 1 || cfg.HopSize <= 0 || cfg.HopSize > cfg.FFTSize:
		return nil, fmt.Errorf("mel: invalid fft size %d / hop %d", cfg.FFTSize, cfg.HopSize)
	case cfg.NumMels <= 0:
		return nil, errors.New("mel: band count must be positive")
	case cfg.LowFreq < 0 || cfg.LowFreq >= cfg.HighFreq:
		return nil, fmt.Errorf("mel: invalid frequency range %g-%g", cfg.LowFreq, cfg.HighFreq)
	}
	return &Transform{
		cfg:    cfg,
		window: hannWindow(cfg.FFTSize),
		fft:    fourier.NewFFT(cfg.FFTSize),
		bank:   filterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}, nil
}

// Config returns the transform parameters with defaults applied.
func (t *Transform) Config() Config { return t.cfg }

// Bins is the number of non-negative frequency bins, FFTSize/2 + 1.
func (t *Transform) Bins() int { return t.cfg.FFTSize/2 + 1 }

// FilterBank returns a copy of the NumMels × Bins filterbank.
func (t *Transform) FilterBank() *mat.Dense { return mat.DenseCopyOf(t.bank) }

// hannWindow is the periodic Hann window.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts an HTK mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// filterBank builds numMels triangular filters over the fftSize/2+1 bins,
// equally spaced on the mel scale between lowFreq and highFreq.
func filterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) *mat.Dense {
	bins := fftSize/2 + 1
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	step := (highMel - lowMel) / float64(numMels+1)

	// Filter edges in fractional bins.
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(lowMel+float64(i)*step) * float64(fftSize) / float64(sampleRate)
	}

	bank := mat.NewDense(numMels, bins, nil)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		for k := int(math.Ceil(left)); k <= int(math.Floor(right)) && k < bins; k++ {
			if k < 0 {
				continue
			}
			f := float64(k)
			var w float64
			switch {
			case f <= center && center > left:
				w = (f - left) / (center - left)
			case f > center && right > center:
				w = (right - f) / (right - center)
			}
			if w > 0 {
				bank.Set(m, k, w)
			}
		}
		// Filters narrower than one bin still cover their nearest bin.
		if mat.Sum(bank.RowView(m)) == 0 {
			k := min(int(math.Round(center)), bins-1)
			bank.Set(m, k, 1)
		}
	}
	return bank
}
