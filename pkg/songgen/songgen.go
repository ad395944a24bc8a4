// Package songgen is the request/response surface over the pipeline. A
// Service trains the fusion model from a corpus and generates songs from
// the persisted model:
//
//	svc := songgen.New(cfg, store, songgen.WithCache(cache))
//	resp := svc.Generate(ctx, songgen.Request{OutputPath: "out/song"})
//	if resp.Err != nil { ... }
//
// Generate never returns a Go error; failures are reported in
// Response.Error so that a front end can forward the response as is.
package songgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/songgen/pkg/corpus"
	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/generate"
	"github.com/haivivi/songgen/pkg/model"
	"github.com/haivivi/songgen/pkg/render"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/storage"
	"github.com/haivivi/songgen/pkg/train"
)

// Config wires the pipeline stages together.
type Config struct {
	Corpus   corpus.Layout  `yaml:"corpus"`
	Features feature.Config `yaml:"features"`
	Norm     feature.Norm   `yaml:"norm"`
	// Model sizes the network; its shape fields are overwritten from
	// Features.
	Model  model.Config  `yaml:"model"`
	Train  train.Config  `yaml:"train"`
	Render render.Config `yaml:"render"`
	Plan   generate.Plan `yaml:"plan"`

	// ModelPath is the artifact path inside the FileStore.
	ModelPath string `yaml:"model_path"`
	// OutputDir receives songs whose request has no OutputPath; files are
	// named after the run id.
	OutputDir string `yaml:"output_dir"`
}

// DefaultConfig returns the default pipeline configuration with an
// unset corpus.
func DefaultConfig() Config {
	fc := feature.DefaultConfig()
	return Config{
		Features:  fc,
		Norm:      feature.DefaultNorm(),
		Model:     model.DefaultConfig(fc.Shape()),
		Train:     train.DefaultConfig(),
		Render:    render.DefaultConfig(),
		Plan:      generate.DefaultPlan(),
		ModelPath: "fusion.msgpack",
		OutputDir: ".",
	}
}

// Service runs training and generation.
type Service struct {
	cfg    Config
	store  storage.FileStore
	cache  *feature.Cache
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache lets corpus encoding reuse cached examples.
func WithCache(c *feature.Cache) Option { return func(s *Service) { s.cache = c } }

// WithLogger sets the logger handed to every stage.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New returns a service persisting its model in store.
func New(cfg Config, store storage.FileStore, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

func (s *Service) encoder(logger *slog.Logger) (*feature.Encoder, error) {
	opts := []feature.Option{feature.WithLogger(logger)}
	if s.cache != nil {
		opts = append(opts, feature.WithCache(s.cache))
	}
	enc, err := feature.NewEncoder(s.cfg.Corpus, s.cfg.Features, opts...)
	if err != nil {
		return nil, songerr.Data("configure", "", "", err)
	}
	return enc, nil
}

// EncodeCorpus encodes every recording of the configured corpus.
func (s *Service) EncodeCorpus(ctx context.Context) ([]feature.Example, error) {
	enc, err := s.encoder(s.logger)
	if err != nil {
		return nil, err
	}
	return enc.EncodeCorpus(ctx)
}

// TrainReport summarises a training run.
type TrainReport struct {
	ModelPath string        `json:"model_path" yaml:"model_path"`
	History   train.History `json:"history" yaml:"history"`
}

// Train encodes the corpus, fits a model and persists it at ModelPath.
func (s *Service) Train(ctx context.Context) (TrainReport, error) {
	examples, err := s.EncodeCorpus(ctx)
	if err != nil {
		return TrainReport{}, err
	}
	tcfg := s.cfg.Train
	tcfg.Norm = s.norm()
	if tcfg.Logger == nil {
		tcfg.Logger = s.logger
	}
	m, hist, err := train.Fit(ctx, examples, s.shape(), s.cfg.Model, tcfg)
	if err != nil {
		return TrainReport{History: hist}, err
	}
	if err := train.Persist(ctx, s.store, s.cfg.ModelPath, m); err != nil {
		return TrainReport{History: hist}, err
	}
	s.logger.Info("saved model", "path", s.cfg.ModelPath, "final_loss", hist.FinalLoss())
	return TrainReport{ModelPath: s.cfg.ModelPath, History: hist}, nil
}

func (s *Service) shape() feature.Shape { return s.cfg.Features.Shape() }

func (s *Service) norm() feature.Norm {
	if s.cfg.Norm.DBRange <= 0 {
		return feature.DefaultNorm()
	}
	return s.cfg.Norm
}

// Request asks for one song. Every field is optional.
type Request struct {
	// OutputPath is the base path of the .mid and .wav outputs.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	// Plan overrides the configured song plan.
	Plan *generate.Plan `json:"plan,omitempty" yaml:"plan,omitempty"`
	// Seed makes the seed-example draw reproducible.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Response reports the outcome of Generate. Error is empty on success.
type Response struct {
	ID           string                `json:"id" yaml:"id"`
	MIDIPath     string                `json:"midi_path,omitempty" yaml:"midi_path,omitempty"`
	WAVPath      string                `json:"wav_path,omitempty" yaml:"wav_path,omitempty"`
	Steps        int                   `json:"steps" yaml:"steps"`
	Sections     []generate.Span       `json:"sections,omitempty" yaml:"sections,omitempty"`
	Seeds        []generate.SeedSource `json:"seeds,omitempty" yaml:"seeds,omitempty"`
	SilentTracks []string              `json:"silent_tracks,omitempty" yaml:"silent_tracks,omitempty"`
	SampleRate   int                   `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Samples      int                   `json:"samples,omitempty" yaml:"samples,omitempty"`
	Duration     time.Duration         `json:"duration" yaml:"duration"`
	Error        string                `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the typed error behind Error.
	Err error `json:"-" yaml:"-"`
}

// Generate produces one song: load the model, encode the corpus, compose
// a seed, run the plan and render. A failure at any stage ends the run;
// the response then carries the steps completed so far and the error.
func (s *Service) Generate(ctx context.Context, req Request) Response {
	start := s.now()
	resp := Response{ID: s.newID()}
	logger := s.logger.With("run", resp.ID)

	fail := func(err error) Response {
		resp.Err = err
		resp.Error = err.Error()
		resp.Duration = s.now().Sub(start)
		attrs := []any{"error", err}
		var se *songerr.Error
		if errors.As(err, &se) {
			attrs = append(attrs, se.LogAttrs()...)
		}
		logger.Error("generation failed", attrs...)
		return resp
	}

	plan := s.cfg.Plan
	if req.Plan != nil {
		plan = *req.Plan
	}
	if len(plan.Sections) == 0 {
		plan = generate.DefaultPlan()
	}
	if err := plan.Validate(); err != nil {
		return fail(err)
	}

	m, err := model.Load(ctx, s.store, s.cfg.ModelPath)
	if err != nil {
		return fail(err)
	}
	shape := s.shape()
	if err := checkShape(m.Config(), shape); err != nil {
		return fail(err)
	}

	enc, err := s.encoder(logger)
	if err != nil {
		return fail(err)
	}
	examples, err := enc.EncodeCorpus(ctx)
	if err != nil {
		return fail(err)
	}

	seed := uint64(start.UnixNano())
	if req.Seed != nil {
		seed = uint64(*req.Seed)
	}
	ex, sources, err := generate.ComposeSeed(examples, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	if err != nil {
		return fail(songerr.Data("seed", "", "", err))
	}
	resp.Seeds = sources
	for _, src := range sources {
		logger.Debug("seed track", "role", src.Role, "recording", src.Recording)
	}

	norm := s.norm()
	gen := generate.New(m,
		generate.WithLogger(logger),
		generate.WithStepObserver(func(section string, repeat, step int) {
			logger.Debug("generated step", "section", section, "repeat", repeat, "step", step)
		}))
	res, err := gen.Generate(ctx, norm.Inputs(ex, shape), plan)
	resp.Steps, resp.Sections = res.Steps, res.Spans
	if err != nil {
		return fail(err)
	}

	out := req.OutputPath
	if out == "" {
		out = filepath.Join(s.cfg.OutputDir, resp.ID)
	}
	rcfg := s.cfg.Render
	rep, err := render.New(rcfg, enc.Config().Roles, norm, render.WithLogger(logger)).Render(ctx, res, out)
	if err != nil {
		return fail(err)
	}
	resp.MIDIPath, resp.WAVPath = rep.MIDIPath, rep.WAVPath
	resp.SampleRate, resp.Samples = rep.SampleRate, rep.Samples
	for _, r := range rep.SilentTracks {
		resp.SilentTracks = append(resp.SilentTracks, string(r))
	}
	resp.Duration = s.now().Sub(start)
	logger.Info("generated song", "steps", resp.Steps, "midi", resp.MIDIPath, "wav", resp.WAVPath, "duration", resp.Duration)
	return resp
}

// checkShape rejects a model trained on a differently shaped corpus.
func checkShape(mc model.Config, shape feature.Shape) error {
	if mc.Tracks != shape.Tracks || mc.Bands != shape.Bands || mc.TheoryWidth != shape.TheoryWidth {
		return songerr.Model("load-model", fmt.Errorf(
			"model expects %d tracks, %d bands, theory width %d; corpus has %d, %d, %d",
			mc.Tracks, mc.Bands, mc.TheoryWidth, shape.Tracks, shape.Bands, shape.TheoryWidth))
	}
	return nil
}
