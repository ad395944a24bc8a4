// Package train fits the fusion model to an encoded corpus.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/model"
	"github.com/haivivi/songgen/pkg/nn"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/storage"
)

// Config holds the training hyperparameters.
type Config struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	// ClipNorm bounds the global gradient norm per batch. Zero disables
	// clipping.
	ClipNorm float64 `yaml:"clip_norm"`
	// Seed drives example shuffling.
	Seed uint64 `yaml:"seed"`

	Norm feature.Norm `yaml:"norm"`

	// OnEpoch, when set, is called after every epoch.
	OnEpoch func(epoch int, loss float64) `yaml:"-"`
	Logger  *slog.Logger                  `yaml:"-"`
}

// DefaultConfig returns 20 epochs of batch size 2 at learning rate 1e-3.
func DefaultConfig() Config {
	return Config{Epochs: 20, BatchSize: 2, LearningRate: 1e-3, ClipNorm: 5, Norm: feature.DefaultNorm()}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// History records a training run.
type History struct {
	Examples  int           `json:"examples" yaml:"examples"`
	Batches   int           `json:"batches" yaml:"batches"`
	EpochLoss []float64     `json:"epoch_loss" yaml:"epoch_loss"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// FinalLoss returns the loss of the last epoch, or NaN before any epoch.
func (h History) FinalLoss() float64 {
	if len(h.EpochLoss) == 0 {
		return math.NaN()
	}
	return h.EpochLoss[len(h.EpochLoss)-1]
}

// ErrEmptyCorpus is wrapped by the data error Fit returns when a modality
// has no data.
var ErrEmptyCorpus = errors.New("train: empty corpus")

// Fit builds a model for shape from mcfg and trains it on examples. Each
// example's target is the window following its input window.
func Fit(ctx context.Context, examples []feature.Example, shape feature.Shape, mcfg model.Config, cfg Config) (*model.Model, History, error) {
	cfg = cfg.withDefaults()
	if err := checkCorpus(examples); err != nil {
		return nil, History{}, err
	}

	m, err := model.New(mcfg.WithShape(shape))
	if err != nil {
		return nil, History{}, songerr.Model("build-model", err)
	}

	inputs := make([]model.Input, len(examples))
	targets := make([]*mat.Dense, len(examples))
	for i, ex := range examples {
		inputs[i] = cfg.Norm.Inputs(ex, shape)
		targets[i] = cfg.Norm.Target(ex, shape)
	}

	opt := nn.NewAdam(m.Params(), cfg.LearningRate)
	opt.ClipNorm = cfg.ClipNorm
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	start := time.Now()
	h := History{Examples: len(examples)}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var total float64
		for lo := 0; lo < len(order); lo += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, h, err
			}
			hi := min(lo+cfg.BatchSize, len(order))
			var batchLoss float64
			for _, idx := range order[lo:hi] {
				y, tape, err := m.Forward(inputs[idx])
				if err != nil {
					return nil, h, songerr.Model("train", fmt.Errorf("%s: %w", examples[idx].Recording, err))
				}
				loss, grad := nn.MSE(y, targets[idx])
				if math.IsNaN(loss) || math.IsInf(loss, 0) {
					return nil, h, songerr.Model("train", fmt.Errorf("epoch %d: loss diverged", epoch))
				}
				tape.Backward(grad)
				batchLoss += loss
			}
			opt.Step(float64(hi - lo))
			total += batchLoss
			h.Batches++
		}
		mean := total / float64(len(order))
		h.EpochLoss = append(h.EpochLoss, mean)
		cfg.Logger.Info("epoch", "epoch", epoch, "of", cfg.Epochs, "loss", mean)
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(epoch, mean)
		}
	}
	h.Duration = time.Since(start)
	return m, h, nil
}

func checkCorpus(examples []feature.Example) error {
	if len(examples) == 0 {
		return fatalData(fmt.Errorf("%w: no examples", ErrEmptyCorpus))
	}
	var sym, spec bool
	for _, ex := range examples {
		sym = sym || ex.HasSymbolic()
		spec = spec || ex.HasSpectral()
	}
	switch {
	case !sym:
		return fatalData(fmt.Errorf("%w: no symbolic data", ErrEmptyCorpus))
	case !spec:
		return fatalData(fmt.Errorf("%w: no spectral data", ErrEmptyCorpus))
	}
	return nil
}

func fatalData(err error) error {
	e := songerr.Data("train", "", "", err)
	e.Fatal = true
	return e
}

// Persist writes m to path in store.
func Persist(ctx context.Context, store storage.FileStore, path string, m *model.Model) error {
	return model.Save(ctx, store, path, m)
}
