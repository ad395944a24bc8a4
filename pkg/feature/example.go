package feature

import (
	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/track"
)

// TrackFeatures holds the encoded windows of one role of one recording.
// A modality whose source was missing or unreadable is zero-filled and
// flagged as skipped.
type TrackFeatures struct {
	Role     track.Role       `msgpack:"role"`
	Symbolic SymbolicWindow   `msgpack:"sym"`
	Spectral SpectralWindow   `msgpack:"spec"`
	Theory   TheoryDescriptor `msgpack:"theory"`

	// NextSymbolic and NextSpectral are the windows that follow in the
	// source, used as training targets. Nil when the source ends inside
	// the first window.
	NextSymbolic *SymbolicWindow `msgpack:"next_sym,omitempty"`
	NextSpectral *SpectralWindow `msgpack:"next_spec,omitempty"`

	SymbolicSkipped bool `msgpack:"sym_skipped,omitempty"`
	SpectralSkipped bool `msgpack:"spec_skipped,omitempty"`
}

// Example is one recording's aligned features, one entry per role in
// configuration order.
type Example struct {
	Recording   string          `msgpack:"rec"`
	Fingerprint string          `msgpack:"fp"`
	Tracks      []TrackFeatures `msgpack:"tracks"`
}

// Usable reports whether any track of e has at least one real modality.
func (e Example) Usable() bool {
	for _, t := range e.Tracks {
		if !t.SymbolicSkipped || !t.SpectralSkipped {
			return true
		}
	}
	return false
}

// HasSymbolic reports whether any track of e carries real symbolic data.
func (e Example) HasSymbolic() bool {
	for _, t := range e.Tracks {
		if !t.SymbolicSkipped {
			return true
		}
	}
	return false
}

// HasSpectral reports whether any track of e carries real spectral data.
func (e Example) HasSpectral() bool {
	for _, t := range e.Tracks {
		if !t.SpectralSkipped {
			return true
		}
	}
	return false
}

// Shape describes the tensor layout shared by every example of a corpus.
type Shape struct {
	Length      int `yaml:"length" msgpack:"length"`
	Tracks      int `yaml:"tracks" msgpack:"tracks"`
	Bands       int `yaml:"bands" msgpack:"bands"`
	TheoryWidth int `yaml:"theory_width" msgpack:"theory_width"`
}

// SymbolicWidth is the column count of the symbolic tensor.
func (s Shape) SymbolicWidth() int { return s.Tracks * SymbolicChannels }

// SpectralWidth is the column count of the spectral tensor.
func (s Shape) SpectralWidth() int { return s.Tracks * s.Bands }

// OutputWidth is the column count of a prediction: every track's symbolic
// columns followed by every track's spectral columns.
func (s Shape) OutputWidth() int { return s.SymbolicWidth() + s.SpectralWidth() }

// Tensors are the three model inputs of one example.
type Tensors struct {
	Symbolic *mat.Dense // Length × 3·Tracks
	Spectral *mat.Dense // Length × Bands·Tracks
	Theory   *mat.Dense // 1 × TheoryWidth·Tracks
}

// Inputs lays out e's current windows as model inputs.
func (n Norm) Inputs(e Example, s Shape) Tensors {
	sym := mat.NewDense(s.Length, s.SymbolicWidth(), nil)
	spec := mat.NewDense(s.Length, s.SpectralWidth(), nil)
	theory := mat.NewDense(1, s.TheoryWidth*s.Tracks, nil)
	for i, t := range e.Tracks {
		n.PutSymbolic(sym, i*SymbolicChannels, t.Symbolic)
		n.PutSpectral(spec, i*s.Bands, t.Spectral)
		for j, v := range t.Theory.Vector {
			theory.Set(0, i*s.TheoryWidth+j, float64(v))
		}
	}
	return Tensors{Symbolic: sym, Spectral: spec, Theory: theory}
}

// Target lays out the windows that follow e's current windows in the
// output layout. A track whose source has no continuation uses its
// current window.
func (n Norm) Target(e Example, s Shape) *mat.Dense {
	out := mat.NewDense(s.Length, s.OutputWidth(), nil)
	base := s.SymbolicWidth()
	for i, t := range e.Tracks {
		sym := t.Symbolic
		if t.NextSymbolic != nil {
			sym = *t.NextSymbolic
		}
		spec := t.Spectral
		if t.NextSpectral != nil {
			spec = *t.NextSpectral
		}
		n.PutSymbolic(out, i*SymbolicChannels, sym)
		n.PutSpectral(out, base+i*s.Bands, spec)
	}
	return out
}
