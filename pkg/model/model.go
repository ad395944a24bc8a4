// Package model assembles the hybrid fusion model from nn stages.
//
// Each track has three paths. The symbolic path embeds pitch, appends
// velocity and time, and runs gated causal blocks followed by a pointwise
// head of width 3. The spectral path is a causal convolution, an LSTM and
// a pointwise head of width Bands. The theory path projects the track's
// theory descriptor, repeats it over every step and applies a pointwise
// convolution. All path outputs are concatenated and mapped by a pointwise
// linear layer to the output layout
//
//	[track0 pitch, velocity, time | ... | track0 bands | track1 bands | ...]
//
// which is also the input layout, so outputs can be fed back as the next
// seed.
package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/nn"
	"github.com/haivivi/songgen/pkg/songerr"
)

// Input is one example's model inputs.
type Input = feature.Tensors

// Output is one prediction split into its symbolic (L × 3·Tracks) and
// spectral (L × Bands·Tracks) halves.
type Output struct {
	Symbolic *mat.Dense
	Spectral *mat.Dense
}

type trackPaths struct {
	symbolic     nn.Stage
	spectral     nn.Stage
	theoryDense  *nn.CausalConv
	theoryExpand *nn.CausalConv
}

// Model is a built fusion model. Predict is safe for concurrent use.
type Model struct {
	cfg    Config
	tracks []trackPaths
	fusion *nn.CausalConv
	params []*nn.Param
}

// Builder constructs models from a Config.
type Builder struct {
	cfg Config
	rng *rand.Rand
}

// NewBuilder validates cfg and returns a builder seeded from cfg.Seed.
func NewBuilder(cfg Config) (*Builder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}, nil
}

// New validates cfg and builds a freshly initialised model.
func New(cfg Config) (*Model, error) {
	b, err := NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Build returns a new model with freshly initialised parameters.
func (b *Builder) Build() *Model {
	c := b.cfg
	m := &Model{cfg: c}
	fused := 0
	for i := 0; i < c.Tracks; i++ {
		p := trackPaths{
			symbolic:     b.symbolicPath(fmt.Sprintf("t%d.sym", i)),
			spectral:     b.spectralPath(fmt.Sprintf("t%d.spec", i)),
			theoryDense:  nn.NewDense(fmt.Sprintf("t%d.theory.dense", i), c.TheoryWidth, c.TheoryDense, nn.ReLU, b.rng),
			theoryExpand: nn.NewDense(fmt.Sprintf("t%d.theory.expand", i), c.TheoryDense, c.TheoryFilters, nn.ReLU, b.rng),
		}
		m.tracks = append(m.tracks, p)
		fused += feature.SymbolicChannels + c.Bands + c.TheoryFilters
	}
	m.fusion = nn.NewDense("fusion", fused, c.OutputWidth(), nn.Linear, b.rng)

	for _, p := range m.tracks {
		m.params = append(m.params, p.symbolic.Params()...)
		m.params = append(m.params, p.spectral.Params()...)
		m.params = append(m.params, p.theoryDense.Params()...)
		m.params = append(m.params, p.theoryExpand.Params()...)
	}
	m.params = append(m.params, m.fusion.Params()...)
	return m
}

// symbolicPath: pitch embedding ⊕ velocity, time → gated blocks → head.
func (b *Builder) symbolicPath(name string) nn.Stage {
	c := b.cfg
	stages := nn.Sequential{
		&nn.Parallel{In: feature.SymbolicChannels, Branches: []nn.Branch{
			{From: 0, To: 1, Stage: nn.NewEmbedding(name+".pitch", 128, c.PitchEmbedding, 127, b.rng)},
			{From: 1, To: feature.SymbolicChannels, Stage: nn.Identity{}},
		}},
	}
	width := c.PitchEmbedding + feature.SymbolicChannels - 1
	for i, filters := range c.BlockFilters {
		stages = append(stages, b.gatedBlock(fmt.Sprintf("%s.block%d", name, i), width, filters))
		width = filters
	}
	return append(stages, nn.NewDense(name+".head", width, feature.SymbolicChannels, nn.Linear, b.rng))
}

// gatedBlock is a gated causal convolution with a residual recurrence on
// top.
func (b *Builder) gatedBlock(name string, in, filters int) nn.Stage {
	c := b.cfg
	return nn.Sequential{
		&nn.Gate{
			Content: nn.NewCausalConv(name+".conv", in, filters, c.Kernel, nn.ReLU, b.rng),
			Gate:    nn.NewCausalConv(name+".gate", in, filters, c.Kernel, nn.Sigmoid, b.rng),
		},
		&nn.Residual{Inner: nn.NewSimpleRNN(name+".rnn", filters, filters, b.rng)},
	}
}

func (b *Builder) spectralPath(name string) nn.Stage {
	c := b.cfg
	return nn.Sequential{
		nn.NewCausalConv(name+".conv", c.Bands, c.SpectralFilters, c.Kernel, nn.ReLU, b.rng),
		nn.NewLSTM(name+".lstm", c.SpectralFilters, c.SpectralHidden, b.rng),
		nn.NewDense(name+".head", c.SpectralHidden, c.Bands, nn.Linear, b.rng),
	}
}

// Config returns the configuration the model was built from.
func (m *Model) Config() Config { return m.cfg }

// Params returns the model parameters in a fixed order.
func (m *Model) Params() []*nn.Param { return m.params }

// Predict runs the model on every input of batch. The result has one
// output per input, each with the input's step count.
func (m *Model) Predict(batch []Input) ([]Output, error) {
	out := make([]Output, len(batch))
	for i, in := range batch {
		y, _, err := m.Forward(in)
		if err != nil {
			return nil, songerr.Model("predict", fmt.Errorf("batch item %d: %w", i, err))
		}
		out[i] = m.Split(y)
	}
	return out, nil
}

// Split separates a full-width prediction into its two halves.
func (m *Model) Split(y *mat.Dense) Output {
	sym := m.cfg.Tracks * feature.SymbolicChannels
	return Output{
		Symbolic: nn.Columns(y, 0, sym),
		Spectral: nn.Columns(y, sym, m.cfg.OutputWidth()),
	}
}

// Forward returns the full-width prediction for in and a tape that
// back-propagates into the model parameters.
func (m *Model) Forward(in Input) (y *mat.Dense, tape nn.Tape, err error) {
	steps, err := m.check(in)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			y, tape, err = nil, nil, fmt.Errorf("model: %v", r)
		}
	}()

	c := m.cfg
	widths := make([]int, 0, 3*c.Tracks)
	var (
		symOuts, specOuts, theoryOuts []*mat.Dense
		tapes                         []nn.Tape
	)
	for i, p := range m.tracks {
		so, st := p.symbolic.Forward(nn.Columns(in.Symbolic, i*feature.SymbolicChannels, (i+1)*feature.SymbolicChannels))
		po, pt := p.spectral.Forward(nn.Columns(in.Spectral, i*c.Bands, (i+1)*c.Bands))

		d, dt := p.theoryDense.Forward(nn.Columns(in.Theory, i*c.TheoryWidth, (i+1)*c.TheoryWidth))
		rep, rt := nn.Broadcast(d, steps)
		to, et := p.theoryExpand.Forward(rep)

		symOuts = append(symOuts, so)
		specOuts = append(specOuts, po)
		theoryOuts = append(theoryOuts, to)
		tapes = append(tapes, st, pt, nn.Chain(dt, rt, et))
	}
	for _, group := range [][]*mat.Dense{symOuts, specOuts, theoryOuts} {
		for _, o := range group {
			_, w := o.Dims()
			widths = append(widths, w)
		}
	}

	all := append(append(append([]*mat.Dense{}, symOuts...), specOuts...), theoryOuts...)
	fused := nn.Concat(all...)
	y, ft := m.fusion.Forward(fused)
	return y, &modelTape{tapes: tapes, fusion: ft, widths: widths, tracks: c.Tracks}, nil
}

func (m *Model) check(in Input) (int, error) {
	c := m.cfg
	if in.Symbolic == nil || in.Spectral == nil || in.Theory == nil {
		return 0, fmt.Errorf("model: input tensor missing")
	}
	steps, sw := in.Symbolic.Dims()
	ps, pw := in.Spectral.Dims()
	tr, tw := in.Theory.Dims()
	switch {
	case sw != c.Tracks*feature.SymbolicChannels:
		return 0, fmt.Errorf("model: symbolic input has %d columns, want %d", sw, c.Tracks*feature.SymbolicChannels)
	case pw != c.Tracks*c.Bands:
		return 0, fmt.Errorf("model: spectral input has %d columns, want %d", pw, c.Tracks*c.Bands)
	case ps != steps:
		return 0, fmt.Errorf("model: symbolic has %d steps, spectral %d", steps, ps)
	case tr != 1 || tw != c.Tracks*c.TheoryWidth:
		return 0, fmt.Errorf("model: theory input is %d×%d, want 1×%d", tr, tw, c.Tracks*c.TheoryWidth)
	}
	return steps, nil
}

// modelTape routes the fused gradient back to every path. tapes holds
// (symbolic, spectral, theory) per track; widths holds the fused column
// widths grouped as all symbolic, all spectral, all theory outputs.
type modelTape struct {
	tapes  []nn.Tape
	fusion nn.Tape
	widths []int
	tracks int
}

func (tp *modelTape) Backward(dy *mat.Dense) *mat.Dense {
	dfused := tp.fusion.Backward(dy)
	off := 0
	for g := 0; g < 3; g++ {
		for i := 0; i < tp.tracks; i++ {
			w := tp.widths[g*tp.tracks+i]
			tp.tapes[3*i+g].Backward(nn.Columns(dfused, off, off+w))
			off += w
		}
	}
	return nil
}
