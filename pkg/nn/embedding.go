package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Embedding maps a single-column input of normalised indices to learned
// vectors. Row t of the output is table[round(x[t]·Scale)], clamped to the
// table. The input receives no gradient.
type Embedding struct {
	name  string
	Size  int
	Dim   int
	Scale float64
	Table *Param // Size × Dim
}

// NewEmbedding returns a table of size vectors of width dim. scale maps the
// normalised input back to an index.
func NewEmbedding(name string, size, dim int, scale float64, rng *rand.Rand) *Embedding {
	e := &Embedding{name: name, Size: size, Dim: dim, Scale: scale, Table: NewParam(name+".table", size, dim)}
	e.Table.uniform(rng, 0.05)
	return e
}

// Params implements Stage.
func (e *Embedding) Params() []*Param { return []*Param{e.Table} }

func (e *Embedding) index(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	i := int(math.Round(v * e.Scale))
	return max(0, min(i, e.Size-1))
}

// Forward implements Stage.
func (e *Embedding) Forward(x *mat.Dense) (*mat.Dense, Tape) {
	checkWidth(e.name, x, 1)
	t, _ := x.Dims()
	y := mat.NewDense(t, e.Dim, nil)
	idx := make([]int, t)
	for i := 0; i < t; i++ {
		idx[i] = e.index(x.At(i, 0))
		y.SetRow(i, e.Table.W.RawRowView(idx[i]))
	}
	return y, &embeddingTape{e: e, idx: idx}
}

type embeddingTape struct {
	e   *Embedding
	idx []int
}

func (tp *embeddingTape) Backward(dy *mat.Dense) *mat.Dense {
	g := tp.e.Table.G
	for i, row := range tp.idx {
		for j := 0; j < tp.e.Dim; j++ {
			g.Set(row, j, g.At(row, j)+dy.At(i, j))
		}
	}
	return mat.NewDense(len(tp.idx), 1, nil)
}
