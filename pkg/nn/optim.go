package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MSE returns the mean squared error between pred and target and its
// gradient with respect to pred.
func MSE(pred, target mat.Matrix) (float64, *mat.Dense) {
	var diff mat.Dense
	diff.Sub(pred, target)
	r, c := diff.Dims()
	n := float64(r * c)
	loss := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := diff.At(i, j)
			loss += d * d
		}
	}
	diff.Scale(2/n, &diff)
	return loss / n, &diff
}

// Adam is the Adam optimiser over a fixed parameter set.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
	// ClipNorm rescales the global gradient when its L2 norm exceeds it.
	// Zero disables clipping.
	ClipNorm float64

	params []*Param
	m, v   []*mat.Dense
	step   int
}

// NewAdam returns an optimiser with the usual β₁ = 0.9, β₂ = 0.999.
func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, params: params}
	for _, p := range params {
		r, c := p.W.Dims()
		a.m = append(a.m, mat.NewDense(r, c, nil))
		a.v = append(a.v, mat.NewDense(r, c, nil))
	}
	return a
}

// ZeroGrad clears every parameter gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies the accumulated gradients scaled by 1/scale and clears
// them. scale is usually the batch size.
func (a *Adam) Step(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	inv := 1 / scale
	if a.ClipNorm > 0 {
		norm := 0.0
		for _, p := range a.params {
			g := mat.Norm(p.G, 2)
			norm += g * g
		}
		norm = math.Sqrt(norm) * inv
		if norm > a.ClipNorm {
			inv *= a.ClipNorm / norm
		}
	}

	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for i, p := range a.params {
		w, g := p.W.RawMatrix(), p.G.RawMatrix()
		m, v := a.m[i].RawMatrix(), a.v[i].RawMatrix()
		for r := 0; r < w.Rows; r++ {
			for c := 0; c < w.Cols; c++ {
				gv := g.Data[r*g.Stride+c] * inv
				mi, vi, wi := r*m.Stride+c, r*v.Stride+c, r*w.Stride+c
				m.Data[mi] = a.Beta1*m.Data[mi] + (1-a.Beta1)*gv
				v.Data[vi] = a.Beta2*v.Data[vi] + (1-a.Beta2)*gv*gv
				mh := m.Data[mi] / bc1
				vh := v.Data[vi] / bc2
				w.Data[wi] -= a.LR * mh / (math.Sqrt(vh) + a.Eps)
			}
		}
		p.ZeroGrad()
	}
}
