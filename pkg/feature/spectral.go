package feature

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio/npy"
)

// SpectralWindow is a fixed-length, time-major sequence of mel-band
// magnitudes (decibels) for one track. Data holds Len()*Bands values; row
// t occupies Data[t*Bands : (t+1)*Bands].
type SpectralWindow struct {
	Bands int       `msgpack:"bands"`
	Data  []float32 `msgpack:"data"`
}

// Len returns the number of frames.
func (w SpectralWindow) Len() int {
	if w.Bands == 0 {
		return 0
	}
	return len(w.Data) / w.Bands
}

// Row returns frame t.
func (w SpectralWindow) Row(t int) []float32 {
	return w.Data[t*w.Bands : (t+1)*w.Bands]
}

// NewSpectralWindow fits a time-major frame sequence to n frames. Because
// frames are stored row-major, padding or truncating the flat data on
// frame boundaries is the same policy FitToLength applies to symbolic
// windows.
func NewSpectralWindow(frames []float32, bands, n int) SpectralWindow {
	return SpectralWindow{Bands: bands, Data: FitToLength(frames, n*bands)}
}

// DecodeSpectrogram reads a 2-D numpy array of shape (bands, frames) and
// returns its values time-major, together with the band and frame counts.
// Both float32 and float64 arrays in C or Fortran order are accepted.
func DecodeSpectrogram(r io.Reader) (data []float32, bands, frames int, err error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read npy header: %w", err)
	}
	shape := nr.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, 0, 0, fmt.Errorf("spectrogram must be 2-D, got shape %v", shape)
	}
	bands, frames = shape[0], shape[1]

	var raw []float32
	switch nr.Header.Descr.Type {
	case "<f4", "f4", "|f4":
		if err := nr.Read(&raw); err != nil {
			return nil, 0, 0, fmt.Errorf("read npy data: %w", err)
		}
	case "<f8", "f8", "|f8":
		var wide []float64
		if err := nr.Read(&wide); err != nil {
			return nil, 0, 0, fmt.Errorf("read npy data: %w", err)
		}
		raw = make([]float32, len(wide))
		for i, v := range wide {
			raw[i] = float32(v)
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported npy dtype %q", nr.Header.Descr.Type)
	}
	if len(raw) != bands*frames {
		return nil, 0, 0, fmt.Errorf("npy holds %d values, shape %v wants %d", len(raw), shape, bands*frames)
	}

	data = make([]float32, len(raw))
	fortran := nr.Header.Descr.Fortran
	for b := 0; b < bands; b++ {
		for f := 0; f < frames; f++ {
			var v float32
			if fortran {
				v = raw[f*bands+b]
			} else {
				v = raw[b*frames+f]
			}
			data[f*bands+b] = v
		}
	}
	return data, bands, frames, nil
}
