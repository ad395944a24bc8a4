package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// CausalConv is a 1-D convolution over time that only looks backwards:
//
//	y[t] = act(b + Σ_{k<K} x[t-k]·W_k)
//
// with x[t-k] = 0 for t < k. A kernel of 1 is a pointwise projection.
type CausalConv struct {
	name   string
	In     int
	Out    int
	Kernel int
	Act    Activation
	W      *Param // (Kernel·In) × Out, tap k occupies rows [k·In, (k+1)·In)
	B      *Param // 1 × Out
}

// NewCausalConv returns a Glorot-initialised causal convolution.
func NewCausalConv(name string, in, out, kernel int, act Activation, rng *rand.Rand) *CausalConv {
	if kernel < 1 {
		kernel = 1
	}
	c := &CausalConv{
		name:   name,
		In:     in,
		Out:    out,
		Kernel: kernel,
		Act:    act,
		W:      NewParam(name+".w", kernel*in, out),
		B:      NewParam(name+".b", 1, out),
	}
	c.W.glorot(rng, kernel*in, out)
	return c
}

// NewDense returns a pointwise projection.
func NewDense(name string, in, out int, act Activation, rng *rand.Rand) *CausalConv {
	return NewCausalConv(name, in, out, 1, act, rng)
}

// Params implements Stage.
func (c *CausalConv) Params() []*Param { return []*Param{c.W, c.B} }

// Forward implements Stage.
func (c *CausalConv) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	checkWidth(c.name, x, c.In)
	cols := c.unfold(x)
	t, _ := x.Dims()
	y := mat.NewDense(t, c.Out, nil)
	y.Mul(cols, c.W.W)
	addRowVector(y, c.B.W)
	if c.Act != Linear {
		y.Apply(func(_, _ int, v float64) float64 { return c.Act.apply(v) }, y)
	}
	return y, &convTape{c: c, cols: cols, y: y}
}

// unfold lays the K most recent inputs of each step side by side.
func (c *CausalConv) unfold(x *mat.Dense) *mat.Dense {
	if c.Kernel == 1 {
		return x
	}
	t, _ := x.Dims()
	cols := mat.NewDense(t, c.Kernel*c.In, nil)
	for i := 0; i < t; i++ {
		for k := 0; k < c.Kernel && k <= i; k++ {
			for j := 0; j < c.In; j++ {
				cols.Set(i, k*c.In+j, x.At(i-k, j))
			}
		}
	}
	return cols
}

type convTape struct {
	c    *CausalConv
	cols *mat.Dense
	y    *mat.Dense
}

func (tp *convTape) Backward(dy *mat.Dense) *mat.Dense {
	c := tp.c
	dz := mat.DenseCopyOf(dy)
	if c.Act != Linear {
		dz.Apply(func(i, j int, v float64) float64 { return v * c.Act.deriv(tp.y.At(i, j)) }, dz)
	}
	accumulateMul(c.W.G, tp.cols, dz)
	accumulateColumnSums(c.B.G, dz)

	t, _ := dz.Dims()
	var dcols mat.Dense
	dcols.Mul(dz, c.W.W.T())
	if c.Kernel == 1 {
		return &dcols
	}
	dx := mat.NewDense(t, c.In, nil)
	for i := 0; i < t; i++ {
		for k := 0; k < c.Kernel && k <= i; k++ {
			for j := 0; j < c.In; j++ {
				dx.Set(i-k, j, dx.At(i-k, j)+dcols.At(i, k*c.In+j))
			}
		}
	}
	return dx
}
