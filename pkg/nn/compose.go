package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sequential chains stages.
type Sequential []Stage

// Params implements Stage.
func (s Sequential) Params() []*Param {
	var ps []*Param
	for _, st := range s {
		ps = append(ps, st.Params()...)
	}
	return ps
}

// Forward implements Stage.
func (s Sequential) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	tapes := make([]Tape, len(s))
	for i, st := range s {
		x, tapes[i] = st.Forward(x)
	}
	return x, seqTape(tapes)
}

type seqTape []Tape

func (tp seqTape) Backward(dy *mat.Dense) *mat.Dense {
	for i := len(tp) - 1; i >= 0; i-- {
		dy = tp[i].Backward(dy)
	}
	return dy
}

// Residual adds its input to the output of Inner, which must preserve the
// width.
type Residual struct {
	Inner Stage
}

// Params implements Stage.
func (r *Residual) Params() []*Param { return r.Inner.Params() }

// Forward implements Stage.
func (r *Residual) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	y, tp := r.Inner.Forward(x)
	var out mat.Dense
	out.Add(x, y)
	return &out, residualTape{tp}
}

type residualTape struct{ inner Tape }

func (tp residualTape) Backward(dy *mat.Dense) *mat.Dense {
	dx := tp.inner.Backward(dy)
	dx.Add(dx, dy)
	return dx
}

// Identity passes its input through.
type Identity struct{}

// Params implements Stage.
func (Identity) Params() []*Param { return nil }

// Forward implements Stage.
func (Identity) Forward(x *mat.Dense) (*mat.Dense, Tape) { return x, identityTape{} }

type identityTape struct{}

func (identityTape) Backward(dy *mat.Dense) *mat.Dense { return mat.DenseCopyOf(dy) }

// Branch applies Stage to the input columns [From, To).
type Branch struct {
	From, To int
	Stage    Stage
}

// Parallel runs branches over column ranges of one input and concatenates
// their outputs in order.
type Parallel struct {
	In       int
	Branches []Branch
}

// Params implements Stage.
func (p *Parallel) Params() []*Param {
	var ps []*Param
	for _, b := range p.Branches {
		ps = append(ps, b.Stage.Params()...)
	}
	return ps
}

// Forward implements Stage.
func (p *Parallel) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	checkWidth("parallel", x, p.In)
	outs := make([]*mat.Dense, len(p.Branches))
	tapes := make([]Tape, len(p.Branches))
	widths := make([]int, len(p.Branches))
	for i, b := range p.Branches {
		outs[i], tapes[i] = b.Stage.Forward(Columns(x, b.From, b.To))
		_, widths[i] = outs[i].Dims()
	}
	return Concat(outs...), &parallelTape{p: p, tapes: tapes, widths: widths}
}

type parallelTape struct {
	p      *Parallel
	tapes  []Tape
	widths []int
}

func (tp *parallelTape) Backward(dy *mat.Dense) *mat.Dense {
	t, _ := dy.Dims()
	dx := mat.NewDense(t, tp.p.In, nil)
	off := 0
	for i, b := range tp.p.Branches {
		g := tp.tapes[i].Backward(Columns(dy, off, off+tp.widths[i]))
		off += tp.widths[i]
		for r := 0; r < t; r++ {
			for c := b.From; c < b.To; c++ {
				dx.Set(r, c, dx.At(r, c)+g.At(r, c-b.From))
			}
		}
	}
	return dx
}

// Columns returns a copy of columns [from, to) of m.
func Columns(m *mat.Dense, from, to int) *mat.Dense {
	r, _ := m.Dims()
	return mat.DenseCopyOf(m.Slice(0, r, from, to))
}

// Concat joins matrices with equal row counts side by side.
func Concat(ms ...*mat.Dense) *mat.Dense {
	if len(ms) == 0 {
		panic("nn: concat of nothing")
	}
	rows, _ := ms[0].Dims()
	width := 0
	for _, m := range ms {
		r, c := m.Dims()
		if r != rows {
			panic(fmt.Sprintf("nn: concat rows %d != %d", r, rows))
		}
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	off := 0
	for _, m := range ms {
		_, c := m.Dims()
		out.Slice(0, rows, off, off+c).(*mat.Dense).Copy(m)
		off += c
	}
	return out
}

// Broadcast repeats the single row of x n times. The tape sums the
// gradient over rows.
func Broadcast(x *mat.Dense, n int) (*mat.Dense, Tape) {
	r, c := x.Dims()
	if r != 1 {
		panic(fmt.Sprintf("nn: broadcast of %d rows", r))
	}
	out := mat.NewDense(n, c, nil)
	row := x.RawRowView(0)
	for i := 0; i < n; i++ {
		out.SetRow(i, row)
	}
	return out, broadcastTape{}
}

type broadcastTape struct{}

func (broadcastTape) Backward(dy *mat.Dense) *mat.Dense {
	_, c := dy.Dims()
	g := mat.NewDense(1, c, nil)
	accumulateColumnSums(g, dy)
	return g
}

// Chain composes tapes recorded in forward order into one tape.
func Chain(tapes ...Tape) Tape { return seqTape(tapes) }
