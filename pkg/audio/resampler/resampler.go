// Package resampler converts mono float sample streams between sample
// rates using a pure Go (no cgo) resampler.
//
//	out, err := resampler.Resample(samples, 22050, 44100)
package resampler

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// tailPadding is the run of silence fed after the signal so the filter
// delay line drains.
const tailPadding = 4096

// Resample converts mono samples from rate from to rate to at high
// quality. The result has round(len(samples)·to/from) samples.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	in := make([]float64, len(samples)+tailPadding)
	copy(in, samples)
	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	if out == nil {
		return nil, errors.New("resampler: no output")
	}

	want := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	fitted := make([]float64, want)
	copy(fitted, out)
	return fitted, nil
}
