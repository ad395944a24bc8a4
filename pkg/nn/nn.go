// Package nn provides the sequence stages the fusion model is composed of.
//
// Every stage maps a time-major sequence (rows are time steps, columns are
// features) to another sequence of the same length. Forward returns the
// output together with a Tape that back-propagates an output gradient to
// the input gradient, accumulating parameter gradients into Param.G on the
// way:
//
//	y, tape := stage.Forward(x)
//	loss, dy := nn.MSE(y, target)
//	tape.Backward(dy)
//	opt.Step()
//
// Forward never mutates a stage, so concurrent Forward calls on a trained
// model are safe. Backward mutates gradients and must not run concurrently
// with another Backward over the same parameters.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name string
	W    *mat.Dense
	G    *mat.Dense
}

// NewParam returns a zero r×c parameter.
func NewParam(name string, r, c int) *Param {
	return &Param{Name: name, W: mat.NewDense(r, c, nil), G: mat.NewDense(r, c, nil)}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() { p.G.Zero() }

// glorot fills p with Glorot-uniform values.
func (p *Param) glorot(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	p.uniform(rng, limit)
}

func (p *Param) uniform(rng *rand.Rand, limit float64) {
	raw := p.W.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = (2*rng.Float64() - 1) * limit
	}
}

// Tape back-propagates through one Forward call.
type Tape interface {
	// Backward takes dL/dy and returns dL/dx.
	Backward(dy *mat.Dense) *mat.Dense
}

// Stage is a sequence-to-sequence layer.
type Stage interface {
	Forward(x *mat.Dense) (*mat.Dense, Tape)
	Params() []*Param
}

// Activation names an element-wise nonlinearity.
type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Tanh    Activation = "tanh"
)

// ParseActivation validates an activation name.
func ParseActivation(s string) (Activation, error) {
	switch a := Activation(s); a {
	case Linear, ReLU, Sigmoid, Tanh:
		return a, nil
	case "":
		return Linear, nil
	}
	return "", fmt.Errorf("nn: unknown activation %q", s)
}

func (a Activation) apply(v float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, v)
	case Sigmoid:
		return sigmoid(v)
	case Tanh:
		return math.Tanh(v)
	}
	return v
}

// deriv returns the derivative at the pre-activation whose output is y.
func (a Activation) deriv(y float64) float64 {
	switch a {
	case ReLU:
		if y > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return y * (1 - y)
	case Tanh:
		return 1 - y*y
	}
	return 1
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// addRowVector adds the 1×c row b to every row of m.
func addRowVector(m, b *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)+b.At(0, j))
		}
	}
}

// accumulateColumnSums adds the column sums of m into the 1×c row g.
func accumulateColumnSums(g, m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		g.Set(0, j, g.At(0, j)+s)
	}
}

// accumulateMul adds aᵀ·b into g.
func accumulateMul(g *mat.Dense, a, b mat.Matrix) {
	var p mat.Dense
	p.Mul(a.T(), b)
	g.Add(g, &p)
}

func checkWidth(stage string, x *mat.Dense, want int) {
	if _, c := x.Dims(); c != want {
		panic(fmt.Sprintf("nn: %s: input has %d columns, want %d", stage, c, want))
	}
}
