package feature

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SymbolicChannels is the number of columns a track occupies in the
// symbolic tensor: pitch, velocity, time.
const SymbolicChannels = 3

// maxMIDI is the largest 7-bit MIDI data value.
const maxMIDI = 127

// Norm converts between windows and the normalised values the model sees.
//
//	pitch, velocity  value / 127
//	time             inter-event delta in sixteenth notes
//	spectral         dB / DBRange
type Norm struct {
	DBRange float64 `yaml:"db_range"`
}

// DefaultNorm uses an 80 dB range, the floor of a power_to_db spectrogram.
func DefaultNorm() Norm { return Norm{DBRange: 80} }

func (n Norm) dbRange() float64 {
	if n.DBRange <= 0 {
		return 80
	}
	return n.DBRange
}

// PutSymbolic writes w into dst rows [0, w.Len()) and columns
// [col, col+3).
func (n Norm) PutSymbolic(dst *mat.Dense, col int, w SymbolicWindow) {
	sixteenth := float64(w.TicksPerBeat) / 4
	if sixteenth <= 0 {
		sixteenth = DefaultTicksPerBeat / 4
	}
	prev := w.Origin
	for t, note := range w.Notes {
		delta := note.Time - prev
		if delta < 0 {
			delta = 0
		}
		if !note.IsPadding() {
			prev = note.Time
		}
		dst.Set(t, col, float64(note.Pitch)/maxMIDI)
		dst.Set(t, col+1, float64(note.Velocity)/maxMIDI)
		dst.Set(t, col+2, float64(delta)/sixteenth)
	}
}

// PutSpectral writes w into dst rows [0, w.Len()) and columns
// [col, col+w.Bands).
func (n Norm) PutSpectral(dst *mat.Dense, col int, w SpectralWindow) {
	r := n.dbRange()
	for t := 0; t < w.Len(); t++ {
		for b, v := range w.Row(t) {
			dst.Set(t, col+b, float64(v)/r)
		}
	}
}

// Step is a de-normalised symbolic tensor row.
type Step struct {
	Pitch    int
	Velocity int
	// Delta is the step's time channel in ticks at the requested
	// resolution.
	Delta int
}

// Emittable reports whether s describes a sounding note.
func (s Step) Emittable() bool { return s.Pitch > 0 && s.Velocity > 0 }

// SymbolicStep de-normalises the three values of one tensor row using
// ticksPerBeat for the time channel.
func (n Norm) SymbolicStep(pitch, velocity, delta float64, ticksPerBeat int) Step {
	return Step{
		Pitch:    clampMIDI(pitch * maxMIDI),
		Velocity: clampMIDI(velocity * maxMIDI),
		Delta:    int(math.Max(0, math.Round(delta*float64(ticksPerBeat)/4))),
	}
}

// Decibels de-normalises a spectral tensor value.
func (n Norm) Decibels(v float64) float64 { return v * n.dbRange() }

func clampMIDI(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := int(math.Round(v))
	switch {
	case r < 0:
		return 0
	case r > maxMIDI:
		return maxMIDI
	}
	return r
}
