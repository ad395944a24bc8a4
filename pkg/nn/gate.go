package nn

import "gonum.org/v1/gonum/mat"

// Gate multiplies a content stage with a gate stage applied to the same
// input: y = content(x) ⊙ gate(x). The gate normally ends in a sigmoid.
type Gate struct {
	Content Stage
	Gate    Stage
}

// Params implements Stage.
func (g *Gate) Params() []*Param { return append(g.Content.Params(), g.Gate.Params()...) }

// Forward implements Stage.
func (g *Gate) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	c, ct := g.Content.Forward(x)
	s, st := g.Gate.Forward(x)
	var y mat.Dense
	y.MulElem(c, s)
	return &y, &gateTape{c: c, s: s, ct: ct, st: st}
}

type gateTape struct {
	c, s   *mat.Dense
	ct, st Tape
}

func (tp *gateTape) Backward(dy *mat.Dense) *mat.Dense {
	var dc, ds mat.Dense
	dc.MulElem(dy, tp.s)
	ds.MulElem(dy, tp.c)
	dx := tp.ct.Backward(&dc)
	dx.Add(dx, tp.st.Backward(&ds))
	return dx
}
