package feature

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPutSymbolic(t *testing.T) {
	w := NewSymbolicWindow([]Note{
		{Pitch: 127, Velocity: 127, Time: 0},
		{Pitch: 127, Velocity: 0, Time: 240},
	}, 480, 3)
	dst := mat.NewDense(3, 3, nil)
	DefaultNorm().PutSymbolic(dst, 0, w)

	want := [][]float64{
		{1, 1, 0},
		{1, 0, 2}, // 240 ticks is two sixteenths at 480 tpb
		{0, 0, 0},
	}
	for r := range want {
		for c := range want[r] {
			if got := dst.At(r, c); math.Abs(got-want[r][c]) > 1e-12 {
				t.Fatalf("At(%d,%d) = %v, want %v", r, c, got, want[r][c])
			}
		}
	}
}

func TestSymbolicStep(t *testing.T) {
	n := DefaultNorm()
	s := n.SymbolicStep(60.0/127, 100.0/127, 1, 480)
	if s.Pitch != 60 || s.Velocity != 100 || s.Delta != 120 {
		t.Fatalf("step = %+v", s)
	}
	s = n.SymbolicStep(2, -1, -3, 480)
	if s.Pitch != 127 || s.Velocity != 0 || s.Delta != 0 {
		t.Fatalf("clamped step = %+v", s)
	}
	if s.Emittable() {
		t.Fatal("zero-velocity step must not be emittable")
	}
	if s := n.SymbolicStep(math.NaN(), 0.5, 0, 480); s.Pitch != 0 {
		t.Fatalf("NaN pitch = %d, want 0", s.Pitch)
	}
}

func TestInputsAndTarget(t *testing.T) {
	shape := Shape{Length: 2, Tracks: 2, Bands: 2, TheoryWidth: 72}
	next := NewSpectralWindow([]float32{-40, -40, -40, -40}, 2, 2)
	ex := Example{Tracks: []TrackFeatures{
		{
			Symbolic: NewSymbolicWindow([]Note{{Pitch: 127, Velocity: 127}}, 480, 2),
			Spectral: NewSpectralWindow([]float32{-80, -80, -80, -80}, 2, 2),
			Theory:   TheoryDescriptor{Vector: make([]float32, 72)},
		},
		{
			Symbolic:     NewSymbolicWindow(nil, 480, 2),
			Spectral:     NewSpectralWindow(nil, 2, 2),
			NextSpectral: &next,
			Theory:       TheoryDescriptor{Vector: make([]float32, 72)},
		},
	}}
	ex.Tracks[1].Theory.Vector[5] = 1

	n := DefaultNorm()
	in := n.Inputs(ex, shape)
	if r, c := in.Symbolic.Dims(); r != 2 || c != 6 {
		t.Fatalf("symbolic dims = %d×%d", r, c)
	}
	if r, c := in.Spectral.Dims(); r != 2 || c != 4 {
		t.Fatalf("spectral dims = %d×%d", r, c)
	}
	if in.Spectral.At(0, 0) != -1 {
		t.Fatalf("spectral(0,0) = %v, want -1", in.Spectral.At(0, 0))
	}
	if in.Theory.At(0, 72+5) != 1 {
		t.Fatal("second track theory not placed")
	}

	target := n.Target(ex, shape)
	if r, c := target.Dims(); r != 2 || c != shape.OutputWidth() {
		t.Fatalf("target dims = %d×%d", r, c)
	}
	// Track 0 has no continuation: target equals its input.
	if target.At(0, 0) != 1 || target.At(0, 6) != -1 {
		t.Fatalf("track 0 target = %v, %v", target.At(0, 0), target.At(0, 6))
	}
	if target.At(1, 6+2) != -0.5 {
		t.Fatalf("track 1 target = %v, want -0.5", target.At(1, 8))
	}
}
