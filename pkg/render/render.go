// Package render exports a generated song as a multi-track MIDI file and
// a mixed mono WAV file.
//
// Symbolic export never fails partially: either every track is written or
// the whole export fails with a fatal render error. Spectral inversion is
// per track; a track whose spectrum cannot be inverted is logged, rendered
// as silence and reported in Report.SilentTracks.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/audio/resampler"
	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/generate"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/track"
)

// Config controls both exports.
type Config struct {
	MIDI   MIDIConfig   `yaml:"midi"`
	Invert InvertConfig `yaml:"invert"`
	// OutputRate resamples the mix before writing when it differs from
	// the spectrogram sample rate. Zero keeps the spectrogram rate.
	OutputRate int `yaml:"output_rate"`
	// Workers bounds concurrent track inversions. Zero means one per
	// track.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default export settings.
func DefaultConfig() Config {
	return Config{MIDI: DefaultMIDIConfig(), Invert: DefaultInvertConfig()}
}

// Report describes what was written.
type Report struct {
	MIDIPath     string       `json:"midi_path" yaml:"midi_path"`
	WAVPath      string       `json:"wav_path" yaml:"wav_path"`
	SampleRate   int          `json:"sample_rate" yaml:"sample_rate"`
	Samples      int          `json:"samples" yaml:"samples"`
	SilentTracks []track.Role `json:"silent_tracks,omitempty" yaml:"silent_tracks,omitempty"`
}

// Renderer writes generated songs.
type Renderer struct {
	cfg    Config
	roles  []track.Role
	norm   feature.Norm
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.logger = l } }

// New returns a renderer for songs with the given track roles.
func New(cfg Config, roles []track.Role, norm feature.Norm, opts ...Option) *Renderer {
	r := &Renderer{cfg: cfg, roles: roles, norm: norm, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Paths derives the MIDI and WAV output paths from a base path: any
// extension on base is replaced by .mid and .wav.
func Paths(base string) (midiPath, wavPath string) {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + ".mid", stem + ".wav"
}

// Render writes res next to base. The returned error is fatal; per-track
// inversion failures only appear in the report.
func (r *Renderer) Render(ctx context.Context, res generate.Result, base string) (Report, error) {
	midiPath, wavPath := Paths(base)
	rep := Report{MIDIPath: midiPath, WAVPath: wavPath}
	if res.Rows() == 0 {
		return rep, fatal(songerr.Render("render", "", errors.New("nothing generated")))
	}
	if dir := filepath.Dir(midiPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return rep, fatal(songerr.Render("write-midi", "", err))
		}
	}

	if err := r.writeMIDI(midiPath, res.Symbolic); err != nil {
		return rep, err
	}

	tracks, silent, rate, err := r.invertAll(ctx, res.Spectral)
	if err != nil {
		return rep, err
	}
	rep.SilentTracks = silent

	mix := Mix(tracks)
	if out := r.cfg.OutputRate; out > 0 && out != rate {
		if mix, err = resampler.Resample(mix, rate, out); err != nil {
			return rep, fatal(songerr.Render("resample", "", err))
		}
		rate = out
	}
	if err := WriteWAV(wavPath, mix, rate); err != nil {
		return rep, fatal(songerr.Render("write-wav", "", err))
	}
	rep.SampleRate, rep.Samples = rate, len(mix)
	r.logger.Info("rendered song",
		"midi", midiPath,
		"wav", wavPath,
		"samples", len(mix),
		"sample_rate", rate,
		"silent_tracks", len(silent))
	return rep, nil
}

func (r *Renderer) writeMIDI(path string, symbolic *mat.Dense) error {
	var buf bytes.Buffer
	if err := WriteMIDI(&buf, symbolic, r.roles, r.norm, r.cfg.MIDI); err != nil {
		return fatal(songerr.Render("write-midi", "", err))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fatal(songerr.Render("write-midi", "", err))
	}
	return nil
}

// invertAll inverts each role's column block of spectral concurrently.
// Every worker owns its own Inverter because mel transforms keep scratch
// state.
func (r *Renderer) invertAll(ctx context.Context, spectral *mat.Dense) ([][]float64, []track.Role, int, error) {
	frames, cols := spectral.Dims()
	if len(r.roles) == 0 || cols%len(r.roles) != 0 {
		return nil, nil, 0, fatal(songerr.Render("invert", "", fmt.Errorf("spectral tensor has %d columns for %d roles", cols, len(r.roles))))
	}
	bands := cols / len(r.roles)
	icfg := r.cfg.Invert
	icfg.Mel.NumMels = bands
	probe, err := NewInverter(icfg, r.norm)
	if err != nil {
		return nil, nil, 0, fatal(songerr.Render("invert", "", err))
	}

	tracks := make([][]float64, len(r.roles))
	failed := make([]bool, len(r.roles))
	g, ctx := errgroup.WithContext(ctx)
	if r.cfg.Workers > 0 {
		g.SetLimit(r.cfg.Workers)
	}
	for i, role := range r.roles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inv := probe
			if i > 0 {
				var err error
				if inv, err = NewInverter(icfg, r.norm); err != nil {
					return fatal(songerr.Render("invert", string(role), err))
				}
			}
			block := spectral.Slice(0, frames, i*bands, (i+1)*bands).(*mat.Dense)
			samples, err := inv.Invert(block)
			if err != nil {
				rerr := songerr.Render("invert", string(role), err)
				r.logger.Warn("track rendered as silence", rerr.LogAttrs()...)
				failed[i] = true
				return nil
			}
			tracks[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}

	var silent []track.Role
	for i, f := range failed {
		if f {
			silent = append(silent, r.roles[i])
		}
	}
	return tracks, silent, probe.SampleRate(), nil
}

func fatal(e *songerr.Error) *songerr.Error {
	e.Fatal = true
	return e
}
