// Package generate runs the fusion model autoregressively over a song
// plan.
//
// Generation is a small state machine. The state holds the current seed,
// the fixed theory tensor, the accumulated symbolic and spectral rows and
// a step counter. Each step predicts from the seed, appends both halves of
// the prediction and makes the trailing window of the prediction the next
// seed. The machine terminates after the plan's last repeat or on the
// first predict failure, in which case the rows accumulated so far are
// returned with the error.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/model"
	"github.com/haivivi/songgen/pkg/songerr"
)

// Predictor is the part of model.Model the generator uses.
type Predictor interface {
	Predict(batch []model.Input) ([]model.Output, error)
}

// Span locates a section's rows in a Result.
type Span struct {
	Section string `json:"section" yaml:"section"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
}

// Result is the generated sequence. Symbolic and Spectral have the same
// row count; both are nil when no step completed.
type Result struct {
	Symbolic *mat.Dense
	Spectral *mat.Dense
	Steps    int
	Spans    []Span
}

// Rows returns the number of generated rows.
func (r Result) Rows() int {
	if r.Symbolic == nil {
		return 0
	}
	n, _ := r.Symbolic.Dims()
	return n
}

// Generator produces songs from a predictor.
type Generator struct {
	predictor Predictor
	onStep    func(section string, repeat, step int)
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithStepObserver registers fn to run after every successful step.
// repeat counts from 0 within the section, step from 0 across the plan.
func WithStepObserver(fn func(section string, repeat, step int)) Option {
	return func(g *Generator) { g.onStep = fn }
}

// WithLogger sets the generator logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// New returns a generator over p.
func New(p Predictor, opts ...Option) *Generator {
	g := &Generator{predictor: p, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

type state struct {
	seed     model.Input
	window   int
	symbolic [][]float64
	spectral [][]float64
	step     int
	spans    []Span
}

// Generate runs plan from seed. On failure the partial result is returned
// together with a model error naming the section and step.
func (g *Generator) Generate(ctx context.Context, seed model.Input, plan Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}
	if seed.Symbolic == nil || seed.Spectral == nil || seed.Theory == nil {
		return Result{}, songerr.Model("generate", errors.New("seed tensor missing"))
	}
	window, _ := seed.Symbolic.Dims()
	st := &state{seed: seed, window: window}

	for _, sec := range plan.Sections {
		start := len(st.symbolic)
		for rep := 0; rep < sec.Repeats; rep++ {
			if err := ctx.Err(); err != nil {
				st.close(sec.Name, start)
				return st.result(), err
			}
			if err := g.advance(st); err != nil {
				st.close(sec.Name, start)
				return st.result(), songerr.Model("generate", fmt.Errorf("section %s repeat %d step %d: %w", sec.Name, rep, st.step, err))
			}
			if g.onStep != nil {
				g.onStep(sec.Name, rep, st.step-1)
			}
		}
		st.close(sec.Name, start)
		g.logger.Debug("section generated", "section", sec.Name, "repeats", sec.Repeats, "rows", len(st.symbolic))
	}
	return st.result(), nil
}

// advance performs one transition.
func (g *Generator) advance(st *state) error {
	out, err := g.predictor.Predict([]model.Input{st.seed})
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return fmt.Errorf("predictor returned %d outputs for 1 input", len(out))
	}
	o := out[0]
	rows, _ := o.Symbolic.Dims()
	if r, _ := o.Spectral.Dims(); r != rows {
		return fmt.Errorf("prediction halves have %d and %d rows", rows, r)
	}
	st.symbolic = appendRows(st.symbolic, o.Symbolic)
	st.spectral = appendRows(st.spectral, o.Spectral)
	st.seed = model.Input{
		Symbolic: trailing(o.Symbolic, st.window),
		Spectral: trailing(o.Spectral, st.window),
		Theory:   st.seed.Theory,
	}
	st.step++
	return nil
}

func (st *state) close(section string, start int) {
	if end := len(st.symbolic); end > start {
		st.spans = append(st.spans, Span{Section: section, Start: start, End: end})
	}
}

func (st *state) result() Result {
	return Result{
		Symbolic: stack(st.symbolic),
		Spectral: stack(st.spectral),
		Steps:    st.step,
		Spans:    st.spans,
	}
}

func appendRows(dst [][]float64, m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		dst = append(dst, mat.Row(nil, i, m))
	}
	return dst
}

// trailing returns the last n rows of m, or all of m when it is shorter.
func trailing(m *mat.Dense, n int) *mat.Dense {
	r, c := m.Dims()
	if r <= n {
		return mat.DenseCopyOf(m)
	}
	return mat.DenseCopyOf(m.Slice(r-n, r, 0, c))
}

func stack(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		out.SetRow(i, r)
	}
	return out
}
