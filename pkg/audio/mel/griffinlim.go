package mel

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// GriffinLim estimates a signal whose STFT magnitude approximates the
// frames × Bins matrix mag, starting from zero phase. length is passed to
// ISTFT.
func (t *Transform) GriffinLim(mag *mat.Dense, iterations, length int) []float64 {
	frames, bins := mag.Dims()
	spec := make([][]complex128, frames)
	for i := range spec {
		spec[i] = make([]complex128, bins)
		for k := range spec[i] {
			spec[i][k] = complex(mag.At(i, k), 0)
		}
	}
	if length <= 0 {
		length = max(0, (frames-1)*t.cfg.HopSize)
	}
	for it := 0; it < iterations; it++ {
		est := t.STFT(t.ISTFT(spec, length))
		for i := range spec {
			if i >= len(est) {
				break
			}
			for k := range spec[i] {
				c := est[i][k]
				a := cmplx.Abs(c)
				if a < 1e-12 {
					spec[i][k] = complex(mag.At(i, k), 0)
					continue
				}
				spec[i][k] = c * complex(mag.At(i, k)/a, 0)
			}
		}
	}
	return t.ISTFT(spec, length)
}

// SpectralConvergence is ‖mag - |STFT(x)|‖ / ‖mag‖ over the common frames.
func (t *Transform) SpectralConvergence(mag *mat.Dense, x []float64) float64 {
	got := Magnitude(t.STFT(x))
	fr, bins := mag.Dims()
	gr, _ := got.Dims()
	n := min(fr, gr)
	var diff, ref mat.Dense
	diff.Sub(mag.Slice(0, n, 0, bins), got.Slice(0, n, 0, bins))
	ref.CloneFrom(mag.Slice(0, n, 0, bins))
	den := mat.Norm(&ref, 2)
	if den == 0 {
		return 0
	}
	return mat.Norm(&diff, 2) / den
}
