package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// SimpleRNN is an Elman recurrence returning the full hidden sequence:
//
//	h[t] = tanh(x[t]·Wx + h[t-1]·Wh + b),  h[-1] = 0
type SimpleRNN struct {
	name   string
	In     int
	Hidden int
	Wx     *Param
	Wh     *Param
	B      *Param
}

// NewSimpleRNN returns a Glorot-initialised recurrence.
func NewSimpleRNN(name string, in, hidden int, rng *rand.Rand) *SimpleRNN {
	r := &SimpleRNN{
		name:   name,
		In:     in,
		Hidden: hidden,
		Wx:     NewParam(name+".wx", in, hidden),
		Wh:     NewParam(name+".wh", hidden, hidden),
		B:      NewParam(name+".b", 1, hidden),
	}
	r.Wx.glorot(rng, in, hidden)
	r.Wh.glorot(rng, hidden, hidden)
	return r
}

// Params implements Stage.
func (r *SimpleRNN) Params() []*Param { return []*Param{r.Wx, r.Wh, r.B} }

// Forward implements Stage.
func (r *SimpleRNN) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	checkWidth(r.name, x, r.In)
	t, _ := x.Dims()
	h := mat.NewDense(t, r.Hidden, nil)
	h.Mul(x, r.Wx.W)
	addRowVector(h, r.B.W)
	for i := 0; i < t; i++ {
		for j := 0; j < r.Hidden; j++ {
			z := h.At(i, j)
			if i > 0 {
				for k := 0; k < r.Hidden; k++ {
					z += h.At(i-1, k) * r.Wh.W.At(k, j)
				}
			}
			h.Set(i, j, math.Tanh(z))
		}
	}
	return h, &rnnTape{r: r, x: x, h: h}
}

type rnnTape struct {
	r    *SimpleRNN
	x, h *mat.Dense
}

func (tp *rnnTape) Backward(dy *mat.Dense) *mat.Dense {
	r := tp.r
	t, _ := dy.Dims()
	hid := r.Hidden
	dz := mat.NewDense(t, hid, nil)
	next := make([]float64, hid)
	for i := t - 1; i >= 0; i-- {
		for j := 0; j < hid; j++ {
			hv := tp.h.At(i, j)
			dz.Set(i, j, (dy.At(i, j)+next[j])*(1-hv*hv))
		}
		for k := range next {
			next[k] = 0
		}
		if i == 0 {
			break
		}
		for k := 0; k < hid; k++ {
			hp := tp.h.At(i-1, k)
			for j := 0; j < hid; j++ {
				d := dz.At(i, j)
				r.Wh.G.Set(k, j, r.Wh.G.At(k, j)+hp*d)
				next[k] += d * r.Wh.W.At(k, j)
			}
		}
	}
	accumulateMul(r.Wx.G, tp.x, dz)
	accumulateColumnSums(r.B.G, dz)
	var dx mat.Dense
	dx.Mul(dz, r.Wx.W.T())
	return &dx
}

// LSTM is a long short-term memory recurrence returning the full hidden
// sequence. Gate columns are ordered input, forget, cell, output.
type LSTM struct {
	name   string
	In     int
	Hidden int
	Wx     *Param // In × 4H
	Wh     *Param // H × 4H
	B      *Param // 1 × 4H
}

// NewLSTM returns a Glorot-initialised LSTM with forget-gate bias 1.
func NewLSTM(name string, in, hidden int, rng *rand.Rand) *LSTM {
	l := &LSTM{
		name:   name,
		In:     in,
		Hidden: hidden,
		Wx:     NewParam(name+".wx", in, 4*hidden),
		Wh:     NewParam(name+".wh", hidden, 4*hidden),
		B:      NewParam(name+".b", 1, 4*hidden),
	}
	l.Wx.glorot(rng, in, 4*hidden)
	l.Wh.glorot(rng, hidden, 4*hidden)
	for j := hidden; j < 2*hidden; j++ {
		l.B.W.Set(0, j, 1)
	}
	return l
}

// Params implements Stage.
func (l *LSTM) Params() []*Param { return []*Param{l.Wx, l.Wh, l.B} }

// Forward implements Stage.
func (l *LSTM) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	checkWidth(l.name, x, l.In)
	t, _ := x.Dims()
	hid := l.Hidden
	gates := mat.NewDense(t, 4*hid, nil) // activated gate values
	gates.Mul(x, l.Wx.W)
	addRowVector(gates, l.B.W)
	c := mat.NewDense(t, hid, nil)
	h := mat.NewDense(t, hid, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < 4*hid; j++ {
			a := gates.At(i, j)
			if i > 0 {
				for k := 0; k < hid; k++ {
					a += h.At(i-1, k) * l.Wh.W.At(k, j)
				}
			}
			if j >= 2*hid && j < 3*hid {
				a = math.Tanh(a)
			} else {
				a = sigmoid(a)
			}
			gates.Set(i, j, a)
		}
		for j := 0; j < hid; j++ {
			ig, fg, gg, og := gates.At(i, j), gates.At(i, hid+j), gates.At(i, 2*hid+j), gates.At(i, 3*hid+j)
			prev := 0.0
			if i > 0 {
				prev = c.At(i-1, j)
			}
			cv := fg*prev + ig*gg
			c.Set(i, j, cv)
			h.Set(i, j, og*math.Tanh(cv))
		}
	}
	return h, &lstmTape{l: l, x: x, gates: gates, c: c, h: h}
}

type lstmTape struct {
	l              *LSTM
	x, gates, c, h *mat.Dense
}

func (tp *lstmTape) Backward(dy *mat.Dense) *mat.Dense {
	l := tp.l
	t, _ := dy.Dims()
	hid := l.Hidden
	da := mat.NewDense(t, 4*hid, nil)
	dhNext := make([]float64, hid)
	dcNext := make([]float64, hid)
	for i := t - 1; i >= 0; i-- {
		for j := 0; j < hid; j++ {
			ig, fg, gg, og := tp.gates.At(i, j), tp.gates.At(i, hid+j), tp.gates.At(i, 2*hid+j), tp.gates.At(i, 3*hid+j)
			tc := math.Tanh(tp.c.At(i, j))
			prev := 0.0
			if i > 0 {
				prev = tp.c.At(i-1, j)
			}
			dh := dy.At(i, j) + dhNext[j]
			dc := dh*og*(1-tc*tc) + dcNext[j]
			da.Set(i, j, dc*gg*ig*(1-ig))
			da.Set(i, hid+j, dc*prev*fg*(1-fg))
			da.Set(i, 2*hid+j, dc*ig*(1-gg*gg))
			da.Set(i, 3*hid+j, dh*tc*og*(1-og))
			dcNext[j] = dc * fg
		}
		for k := range dhNext {
			dhNext[k] = 0
		}
		if i == 0 {
			break
		}
		for k := 0; k < hid; k++ {
			hp := tp.h.At(i-1, k)
			for j := 0; j < 4*hid; j++ {
				d := da.At(i, j)
				l.Wh.G.Set(k, j, l.Wh.G.At(k, j)+hp*d)
				dhNext[k] += d * l.Wh.W.At(k, j)
			}
		}
	}
	accumulateMul(l.Wx.G, tp.x, da)
	accumulateColumnSums(l.B.G, da)
	var dx mat.Dense
	dx.Mul(da, l.Wx.W.T())
	return &dx
}
